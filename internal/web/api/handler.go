package api

import (
	"log/slog"
	"net/http"
	"time"

	"calshare/internal/calendar"
	"calshare/internal/database"
	"calshare/internal/event"
	"calshare/internal/membership"
	"calshare/internal/notifications"
	"calshare/internal/projection"
	"calshare/internal/service"
	"calshare/internal/sharing"
	"calshare/internal/validator"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	logger        *slog.Logger
	validate      *validator.Validator
	db            *database.Database
	events        *event.Manager
	sharing       *sharing.Manager
	projections   *projection.Manager
	memberships   *membership.Manager
	calendar      *calendar.Manager
	notifications *notifications.Manager
	limiter       *service.RateLimiter
}

type HandlerParams struct {
	Logger        *slog.Logger
	Validate      *validator.Validator
	DB            *database.Database
	Events        *event.Manager
	Sharing       *sharing.Manager
	Projections   *projection.Manager
	Memberships   *membership.Manager
	Calendar      *calendar.Manager
	Notifications *notifications.Manager
	Limiter       *service.RateLimiter
}

func NewHandler(params HandlerParams) *Handler {
	return &Handler{
		logger:        params.Logger,
		validate:      params.Validate,
		db:            params.DB,
		events:        params.Events,
		sharing:       params.Sharing,
		projections:   params.Projections,
		memberships:   params.Memberships,
		calendar:      params.Calendar,
		notifications: params.Notifications,
		limiter:       params.Limiter,
	}
}

// Health reports liveness of the service and its database.
func (h *Handler) Health(c *fiber.Ctx) error {
	if err := h.db.Ping(c.Context()); err != nil {
		return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  "database connection failed",
		})
	}

	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
