package api

import (
	"net/http"
	"time"

	"calshare/internal/database"
	"calshare/internal/membership"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type groupResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type memberResponse struct {
	ID        uuid.UUID `json:"id"`
	GroupID   uuid.UUID `json:"group_id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newMemberResponse(m database.GroupMember) memberResponse {
	return memberResponse{
		ID:        m.ID,
		GroupID:   m.GroupID,
		UserID:    m.UserID,
		Role:      string(m.Role),
		Status:    string(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type createGroupRequest struct {
	Name string `json:"name" validate:"required,max=256"`
}

func (h *Handler) CreateGroup(c *fiber.Ctx) error {
	var req createGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
	}
	if err := h.validate.Validate(req); err != nil {
		return domainError(c, h.logger, err)
	}

	group, err := h.memberships.CreateGroup(c.Context(), req.Name, Actor(c))
	if err != nil {
		return domainError(c, h.logger, err)
	}

	return c.Status(http.StatusCreated).JSON(groupResponse{
		ID:        group.ID,
		Name:      group.Name,
		CreatedAt: group.CreatedAt,
	})
}

type inviteMemberRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	Role   string    `json:"role" validate:"required,member_role"`
}

// InviteMember creates a pending membership for a known user. Membership is
// consent-gated: the invitee must accept before gaining (or granting) any
// visibility.
func (h *Handler) InviteMember(c *fiber.Ctx) error {
	groupID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid group ID")
	}

	var req inviteMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
	}
	if err := h.validate.Validate(req); err != nil {
		return domainError(c, h.logger, err)
	}

	actor := Actor(c)
	if err := h.limiter.CheckGroupInvite(c.Context(), actor); err != nil {
		return domainError(c, h.logger, err)
	}

	member, err := h.memberships.Invite(c.Context(), membership.InviteParams{
		GroupID: groupID,
		UserID:  req.UserID,
		Role:    database.MemberRole(req.Role),
		Inviter: actor,
	})
	if err != nil {
		return domainError(c, h.logger, err)
	}

	return c.Status(http.StatusCreated).JSON(newMemberResponse(member))
}

type emailInviteRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Role           string `json:"role" validate:"required,member_role"`
	ExpiresInHours int    `json:"expires_in_hours" validate:"omitempty,min=1,max=720"`
}

type emailInviteResponse struct {
	ID        uuid.UUID `json:"id"`
	GroupID   uuid.UUID `json:"group_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// InviteByEmail issues a token invite for someone without a known user ID.
// The raw token is returned once and never stored.
func (h *Handler) InviteByEmail(c *fiber.Ctx) error {
	groupID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid group ID")
	}

	var req emailInviteRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
	}
	if err := h.validate.Validate(req); err != nil {
		return domainError(c, h.logger, err)
	}

	actor := Actor(c)
	if err := h.limiter.CheckGroupInvite(c.Context(), actor); err != nil {
		return domainError(c, h.logger, err)
	}

	expiresIn := 7 * 24 * time.Hour
	if req.ExpiresInHours > 0 {
		expiresIn = time.Duration(req.ExpiresInHours) * time.Hour
	}

	invite, token, err := h.memberships.InviteByEmail(c.Context(), membership.EmailInviteParams{
		GroupID:   groupID,
		Email:     req.Email,
		Role:      database.MemberRole(req.Role),
		Inviter:   actor,
		ExpiresIn: expiresIn,
	})
	if err != nil {
		return domainError(c, h.logger, err)
	}

	return c.Status(http.StatusCreated).JSON(emailInviteResponse{
		ID:        invite.ID,
		GroupID:   invite.GroupID,
		Email:     invite.Email,
		Role:      string(invite.Role),
		Token:     token,
		ExpiresAt: invite.ExpiresAt,
	})
}

type redeemInviteRequest struct {
	Token string `json:"token" validate:"required"`
}

func (h *Handler) RedeemInvite(c *fiber.Ctx) error {
	inviteID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid invite ID")
	}

	var req redeemInviteRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
	}
	if err := h.validate.Validate(req); err != nil {
		return domainError(c, h.logger, err)
	}

	member, err := h.memberships.RedeemInvite(c.Context(), inviteID, req.Token, Actor(c))
	if err != nil {
		return domainError(c, h.logger, err)
	}

	return c.Status(http.StatusCreated).JSON(newMemberResponse(member))
}

type respondMembershipRequest struct {
	Accept bool `json:"accept"`
}

func (h *Handler) RespondMembership(c *fiber.Ctx) error {
	memberID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid member ID")
	}

	var req respondMembershipRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
	}

	if err := h.memberships.Respond(c.Context(), memberID, Actor(c), req.Accept); err != nil {
		return domainError(c, h.logger, err)
	}

	return c.SendStatus(http.StatusNoContent)
}

func (h *Handler) RemoveMember(c *fiber.Ctx) error {
	memberID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid member ID")
	}

	if err := h.memberships.Remove(c.Context(), memberID, Actor(c)); err != nil {
		return domainError(c, h.logger, err)
	}

	return c.SendStatus(http.StatusNoContent)
}

type changeRoleRequest struct {
	Role string `json:"role" validate:"required,member_role"`
}

func (h *Handler) ChangeMemberRole(c *fiber.Ctx) error {
	memberID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid member ID")
	}

	var req changeRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
	}
	if err := h.validate.Validate(req); err != nil {
		return domainError(c, h.logger, err)
	}

	if err := h.memberships.ChangeRole(c.Context(), memberID, database.MemberRole(req.Role), Actor(c)); err != nil {
		return domainError(c, h.logger, err)
	}

	return c.SendStatus(http.StatusNoContent)
}
