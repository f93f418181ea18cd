package api

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const actorHeader = "X-Actor-ID"

const actorLocalsKey = "actorID"

// ContentNegotiationMiddleware ensures that the client accepts JSON responses.
func ContentNegotiationMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		acceptHeader := c.Get("Accept")
		if acceptHeader != "" && acceptHeader != "*/*" && acceptHeader != "application/json" {
			return ErrorResponse(c, http.StatusNotAcceptable, "NOT_ACCEPTABLE",
				"Supported types: application/json")
		}
		return c.Next()
	}
}

// ActorMiddleware resolves the acting user from the X-Actor-ID header.
// Authentication is a deployment concern handled upstream of this service;
// the header carries the already-authenticated principal.
func ActorMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(actorHeader)
		if raw == "" {
			return ErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED",
				"Missing "+actorHeader+" header")
		}

		actorID, err := uuid.Parse(raw)
		if err != nil {
			return ErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED",
				"Invalid "+actorHeader+" header")
		}

		c.Locals(actorLocalsKey, actorID)
		return c.Next()
	}
}

// Actor returns the acting user set by ActorMiddleware.
func Actor(c *fiber.Ctx) uuid.UUID {
	actorID, _ := c.Locals(actorLocalsKey).(uuid.UUID)
	return actorID
}
