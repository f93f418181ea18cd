package api

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// RegisterRoutes wires the API surface onto the app. The limiter storage is
// shared across instances (Postgres-backed) so the per-IP cap holds behind a
// load balancer too.
func RegisterRoutes(app *fiber.App, h *Handler, limiterStorage fiber.Storage) {
	app.Use(recover.New())

	app.Get("/health", h.Health)

	requestLimiter := limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		Storage:    limiterStorage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return ErrorResponse(c, http.StatusTooManyRequests, "TOO_MANY_REQUESTS",
				"Too many requests, try again later")
		},
	})

	v1 := app.Group("/api/v1", requestLimiter, ContentNegotiationMiddleware(), ActorMiddleware())

	v1.Get("/calendar", h.ListVisibleEvents)

	v1.Post("/events", h.CreateEvent)
	v1.Get("/events", h.ListOwnEvents)
	v1.Get("/events/:id", h.GetEvent)
	v1.Patch("/events/:id", h.UpdateEvent)
	v1.Delete("/events/:id", h.DeleteEvent)

	v1.Post("/shares", h.CreateShare)
	v1.Post("/shares/:id/respond", h.RespondShare)
	v1.Post("/shares/:id/revoke", h.RevokeShare)

	v1.Post("/projections", h.CreateProjection)
	v1.Post("/projections/:id/promote", h.PromoteProjection)
	v1.Post("/projections/:id/respond", h.RespondProjection)
	v1.Post("/projections/:id/revoke", h.RevokeProjection)

	v1.Post("/groups", h.CreateGroup)
	v1.Post("/groups/:id/members", h.InviteMember)
	v1.Post("/groups/:id/invites", h.InviteByEmail)
	v1.Post("/invites/:id/redeem", h.RedeemInvite)
	v1.Post("/members/:id/respond", h.RespondMembership)
	v1.Delete("/members/:id", h.RemoveMember)
	v1.Patch("/members/:id/role", h.ChangeMemberRole)

	v1.Get("/notifications", h.ListUnreadNotifications)
	v1.Post("/notifications/:id/read", h.MarkNotificationRead)
}
