package api

import (
	"net/http"
	"time"

	"calshare/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type notificationResponse struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	IsRead    bool      `json:"is_read"`
	ActionURL string    `json:"action_url"`
	CreatedAt time.Time `json:"created_at"`
}

func newNotificationResponse(n notifications.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      string(n.Type),
		IsRead:    n.IsRead,
		ActionURL: n.ActionURL,
		CreatedAt: n.CreatedAt,
	}
}

func (h *Handler) ListUnreadNotifications(c *fiber.Ctx) error {
	unread, err := h.notifications.Unread(c.Context(), Actor(c))
	if err != nil {
		return domainError(c, h.logger, err)
	}

	items := make([]notificationResponse, 0, len(unread))
	for _, n := range unread {
		items = append(items, newNotificationResponse(n))
	}

	return ListResponse(c, items)
}

func (h *Handler) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid notification ID")
	}

	if err := h.notifications.MarkRead(c.Context(), id, Actor(c)); err != nil {
		return domainError(c, h.logger, err)
	}

	return c.SendStatus(http.StatusNoContent)
}
