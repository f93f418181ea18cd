package api

import (
	"net/http"
	"time"

	"calshare/internal/database"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type agreementResponse struct {
	ID         uuid.UUID `json:"id"`
	OwnerID    uuid.UUID `json:"owner_user_id"`
	ViewerID   uuid.UUID `json:"viewer_user_id"`
	Permission string    `json:"permission"`
	Status     string    `json:"status"`
	Version    int64     `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func newAgreementResponse(a database.SharingAgreement) agreementResponse {
	return agreementResponse{
		ID:         a.ID,
		OwnerID:    a.OwnerUserID,
		ViewerID:   a.ViewerUserID,
		Permission: string(a.Permission),
		Status:     string(a.Status),
		Version:    a.Version,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

type createShareRequest struct {
	ViewerUserID uuid.UUID `json:"viewer_user_id" validate:"required"`
	Permission   string    `json:"permission" validate:"required,agreement_permission"`
}

// CreateShare offers (or re-offers) the actor's calendar to a viewer. The
// resulting agreement is pending until the viewer accepts.
func (h *Handler) CreateShare(c *fiber.Ctx) error {
	var req createShareRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
	}
	if err := h.validate.Validate(req); err != nil {
		return domainError(c, h.logger, err)
	}

	actor := Actor(c)
	if err := h.limiter.CheckShareOffer(c.Context(), actor); err != nil {
		return domainError(c, h.logger, err)
	}

	agreement, err := h.sharing.Upsert(c.Context(), actor, req.ViewerUserID,
		database.AgreementPermission(req.Permission))
	if err != nil {
		return domainError(c, h.logger, err)
	}

	return c.Status(http.StatusCreated).JSON(newAgreementResponse(agreement))
}

type respondShareRequest struct {
	Status string `json:"status" validate:"required,oneof=active revoked"`
}

// RespondShare is the viewer-side consent action: accept (active) or
// decline/terminate (revoked).
func (h *Handler) RespondShare(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid agreement ID")
	}

	var req respondShareRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
	}
	if err := h.validate.Validate(req); err != nil {
		return domainError(c, h.logger, err)
	}

	agreement, err := h.sharing.Respond(c.Context(), id, Actor(c),
		database.AgreementStatus(req.Status))
	if err != nil {
		return domainError(c, h.logger, err)
	}

	return c.JSON(newAgreementResponse(agreement))
}

// RevokeShare is the owner-side teardown. Revocation takes effect on the
// next read; there is no grace period.
func (h *Handler) RevokeShare(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid agreement ID")
	}

	agreement, err := h.sharing.RevokeAsOwner(c.Context(), id, Actor(c))
	if err != nil {
		return domainError(c, h.logger, err)
	}

	return c.JSON(newAgreementResponse(agreement))
}
