package api

import (
	"net/http"
	"time"

	"calshare/internal/database"
	"calshare/internal/projection"
	"calshare/internal/util"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type projectionResponse struct {
	ID            uuid.UUID                `json:"id"`
	EventID       uuid.UUID                `json:"event_id"`
	TargetUserID  uuid.UUID                `json:"target_user_id"`
	TargetGroupID util.Optional[uuid.UUID] `json:"target_group_id,omitempty"`
	Scope         string                   `json:"scope"`
	Status        string                   `json:"status"`
	CreatedBy     uuid.UUID                `json:"created_by"`
	Version       int64                    `json:"version"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
}

func newProjectionResponse(p database.EventProjection) projectionResponse {
	return projectionResponse{
		ID:            p.ID,
		EventID:       p.EventID,
		TargetUserID:  p.TargetUserID,
		TargetGroupID: p.TargetGroupID,
		Scope:         string(p.Scope),
		Status:        string(p.Status),
		CreatedBy:     p.CreatedByUserID,
		Version:       p.Version,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

type createProjectionRequest struct {
	EventID       uuid.UUID  `json:"event_id" validate:"required"`
	TargetUserID  uuid.UUID  `json:"target_user_id" validate:"required"`
	TargetGroupID *uuid.UUID `json:"target_group_id"`
	Scope         string     `json:"scope" validate:"required,projection_scope"`
	Suggested     bool       `json:"suggested"`
}

// CreateProjection offers a single event to a target user at a given scope.
// With suggested set the offer stays a draft the owner can promote later.
func (h *Handler) CreateProjection(c *fiber.Ctx) error {
	var req createProjectionRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
	}
	if err := h.validate.Validate(req); err != nil {
		return domainError(c, h.logger, err)
	}

	actor := Actor(c)
	if err := h.limiter.CheckProjectionOffer(c.Context(), actor); err != nil {
		return domainError(c, h.logger, err)
	}

	created, err := h.projections.Create(c.Context(), projection.CreateParams{
		EventID:       req.EventID,
		TargetUserID:  req.TargetUserID,
		TargetGroupID: optionalOf(req.TargetGroupID),
		Scope:         database.ProjectionScope(req.Scope),
		Suggested:     req.Suggested,
		Creator:       actor,
	})
	if err != nil {
		return domainError(c, h.logger, err)
	}

	return c.Status(http.StatusCreated).JSON(newProjectionResponse(created))
}

// PromoteProjection turns a suggested draft into a pending consent ask.
func (h *Handler) PromoteProjection(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid projection ID")
	}

	promoted, err := h.projections.Promote(c.Context(), id, Actor(c))
	if err != nil {
		return domainError(c, h.logger, err)
	}

	return c.JSON(newProjectionResponse(promoted))
}

type respondProjectionRequest struct {
	Accept bool `json:"accept"`
}

func (h *Handler) RespondProjection(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid projection ID")
	}

	var req respondProjectionRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
	}

	updated, err := h.projections.Respond(c.Context(), id, Actor(c), req.Accept)
	if err != nil {
		return domainError(c, h.logger, err)
	}

	return c.JSON(newProjectionResponse(updated))
}

func (h *Handler) RevokeProjection(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid projection ID")
	}

	revoked, err := h.projections.Revoke(c.Context(), id, Actor(c))
	if err != nil {
		return domainError(c, h.logger, err)
	}

	return c.JSON(newProjectionResponse(revoked))
}
