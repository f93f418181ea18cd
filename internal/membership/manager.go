// Package membership is the registry of group membership: who belongs to
// which group, in which role, and whether that membership currently counts.
// Only active rows participate in visibility resolution; everything else is
// history.
package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"calshare/internal/audit"
	"calshare/internal/database"
	"calshare/internal/notifications"
	"calshare/internal/util"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrDuplicateMembership = errors.New("membership: an active or pending membership already exists")
	ErrInvalidTransition   = errors.New("membership: illegal status transition")
	ErrForbidden           = errors.New("membership: actor lacks authority for this change")
	ErrInviteExpired       = errors.New("membership: invite expired or already used")
)

// roleRank orders roles for authority checks: owner > admin > member > viewer.
func roleRank(role database.MemberRole) int {
	switch role {
	case database.MemberRoleOwner:
		return 3
	case database.MemberRoleAdmin:
		return 2
	case database.MemberRoleMember:
		return 1
	default:
		return 0
	}
}

type Store interface {
	CreateGroup(ctx context.Context, params database.CreateGroupParams) (database.Group, error)
	GetGroupByID(ctx context.Context, id uuid.UUID) (database.Group, error)
	CreateGroupMember(ctx context.Context, params database.CreateGroupMemberParams) (database.GroupMember, error)
	GetLiveGroupMember(ctx context.Context, groupID, userID uuid.UUID) (database.GroupMember, error)
	GetGroupMemberByID(ctx context.Context, id uuid.UUID) (database.GroupMember, error)
	ListGroupMembers(ctx context.Context, params database.ListGroupMembersParams) ([]database.GroupMember, error)
	SetGroupMemberStatus(ctx context.Context, params database.SetGroupMemberStatusParams) (database.GroupMember, error)
	SetGroupMemberRole(ctx context.Context, params database.SetGroupMemberRoleParams) (database.GroupMember, error)
	CreateGroupInvite(ctx context.Context, params database.CreateGroupInviteParams) (database.GroupInvite, error)
	GetGroupInviteByID(ctx context.Context, id uuid.UUID) (database.GroupInvite, error)
	MarkGroupInviteUsed(ctx context.Context, id uuid.UUID) error
}

type Auditor interface {
	LogEvent(ctx context.Context, params audit.LogEventParams) error
}

type Notifier interface {
	Notify(ctx context.Context, params notifications.NotifyParams) error
}

type Manager struct {
	logger   *slog.Logger
	store    Store
	auditor  Auditor
	notifier Notifier
}

func NewManager(logger *slog.Logger, store Store, auditor Auditor, notifier Notifier) Manager {
	return Manager{logger: logger, store: store, auditor: auditor, notifier: notifier}
}

// CreateGroup creates the group and enrolls the creator as its active owner.
func (m *Manager) CreateGroup(ctx context.Context, name string, creator uuid.UUID) (database.Group, error) {
	group, err := m.store.CreateGroup(ctx, database.CreateGroupParams{Name: name})
	if err != nil {
		return group, err
	}

	if _, err := m.store.CreateGroupMember(ctx, database.CreateGroupMemberParams{
		GroupID: group.ID,
		UserID:  creator,
		Role:    database.MemberRoleOwner,
		Status:  database.MemberStatusActive,
	}); err != nil {
		return group, err
	}

	return group, nil
}

// IsActiveMember answers the visibility resolver's membership question.
func (m *Manager) IsActiveMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	member, err := m.store.GetLiveGroupMember(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, database.ErrGroupMemberNotFound) {
			return false, nil
		}
		return false, err
	}
	return member.Status == database.MemberStatusActive, nil
}

// RoleOf returns the active role, or None when the user holds no active
// membership in the group.
func (m *Manager) RoleOf(ctx context.Context, groupID, userID uuid.UUID) (util.Optional[database.MemberRole], error) {
	member, err := m.store.GetLiveGroupMember(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, database.ErrGroupMemberNotFound) {
			return util.None[database.MemberRole](), nil
		}
		return util.None[database.MemberRole](), err
	}
	if member.Status != database.MemberStatusActive {
		return util.None[database.MemberRole](), nil
	}
	return util.Some(member.Role), nil
}

// HasEditAuthority reports whether the user may mutate content owned by the
// group: an active membership at member rank or above.
func (m *Manager) HasEditAuthority(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	role, err := m.RoleOf(ctx, groupID, userID)
	if err != nil {
		return false, err
	}
	return role.IsSet && roleRank(role.Val) >= roleRank(database.MemberRoleMember), nil
}

type InviteParams struct {
	GroupID uuid.UUID
	UserID  uuid.UUID
	Role    database.MemberRole
	Inviter uuid.UUID
}

// Invite creates a pending membership. Fails on a live (pending or active)
// row for the pair; a removed member gets a fresh pending row so the history
// of the earlier membership survives.
func (m *Manager) Invite(ctx context.Context, params InviteParams) (database.GroupMember, error) {
	inviterRole, err := m.RoleOf(ctx, params.GroupID, params.Inviter)
	if err != nil {
		return database.GroupMember{}, err
	}
	if !inviterRole.IsSet || roleRank(inviterRole.Val) < roleRank(database.MemberRoleAdmin) {
		return database.GroupMember{}, ErrForbidden
	}

	if _, err := m.store.GetLiveGroupMember(ctx, params.GroupID, params.UserID); err == nil {
		return database.GroupMember{}, ErrDuplicateMembership
	} else if !errors.Is(err, database.ErrGroupMemberNotFound) {
		return database.GroupMember{}, err
	}

	member, err := m.store.CreateGroupMember(ctx, database.CreateGroupMemberParams{
		GroupID: params.GroupID,
		UserID:  params.UserID,
		Role:    params.Role,
		Status:  database.MemberStatusPending,
	})
	if err != nil {
		return member, err
	}

	if err := m.auditor.LogEvent(ctx, audit.LogEventParams{
		ActorID: params.Inviter,
		Type:    audit.EventTypeMemberInvited,
		Data:    map[string]any{"group_id": params.GroupID, "user_id": params.UserID, "role": params.Role},
	}); err != nil {
		m.logger.Warn("failed to audit member invite", "error", err)
	}

	if err := m.notifier.Notify(ctx, notifications.NotifyParams{
		UserID:  params.UserID,
		Type:    notifications.NotificationTypeGroupInvite,
		Title:   "Group invitation",
		Message: "You have been invited to join a group",
	}); err != nil {
		m.logger.Warn("failed to notify invitee", "error", err)
	}

	return member, nil
}

// Respond lets the invitee resolve their own pending membership:
// pending -> active (accept) or pending -> removed (decline).
func (m *Manager) Respond(ctx context.Context, memberID, actor uuid.UUID, accept bool) error {
	member, err := m.store.GetGroupMemberByID(ctx, memberID)
	if err != nil {
		return err
	}
	if member.UserID != actor {
		return ErrForbidden
	}
	if member.Status != database.MemberStatusPending {
		return ErrInvalidTransition
	}

	status := database.MemberStatusRemoved
	auditType := audit.EventTypeMemberDeclined
	if accept {
		status = database.MemberStatusActive
		auditType = audit.EventTypeMemberAccepted
	}

	if _, err := m.store.SetGroupMemberStatus(ctx, database.SetGroupMemberStatusParams{
		ID:      memberID,
		Status:  status,
		Version: member.Version,
	}); err != nil {
		return err
	}

	if err := m.auditor.LogEvent(ctx, audit.LogEventParams{
		ActorID: actor,
		Type:    auditType,
		Data:    map[string]any{"group_id": member.GroupID, "member_id": memberID},
	}); err != nil {
		m.logger.Warn("failed to audit membership response", "error", err)
	}

	return nil
}

// Remove transitions an active membership to removed. Members may leave on
// their own; removing someone else requires admin rank or above.
func (m *Manager) Remove(ctx context.Context, memberID, actor uuid.UUID) error {
	member, err := m.store.GetGroupMemberByID(ctx, memberID)
	if err != nil {
		return err
	}
	if member.Status != database.MemberStatusActive {
		return ErrInvalidTransition
	}

	if member.UserID != actor {
		actorRole, err := m.RoleOf(ctx, member.GroupID, actor)
		if err != nil {
			return err
		}
		if !actorRole.IsSet || roleRank(actorRole.Val) < roleRank(database.MemberRoleAdmin) {
			return ErrForbidden
		}
	}

	if _, err := m.store.SetGroupMemberStatus(ctx, database.SetGroupMemberStatusParams{
		ID:      memberID,
		Status:  database.MemberStatusRemoved,
		Version: member.Version,
	}); err != nil {
		return err
	}

	if err := m.auditor.LogEvent(ctx, audit.LogEventParams{
		ActorID: actor,
		Type:    audit.EventTypeMemberRemoved,
		Data:    map[string]any{"group_id": member.GroupID, "member_id": memberID, "user_id": member.UserID},
	}); err != nil {
		m.logger.Warn("failed to audit member removal", "error", err)
	}

	return nil
}

// ChangeRole requires admin rank. The group owner role can only be assigned
// by the current owner.
func (m *Manager) ChangeRole(ctx context.Context, memberID uuid.UUID, role database.MemberRole, actor uuid.UUID) error {
	member, err := m.store.GetGroupMemberByID(ctx, memberID)
	if err != nil {
		return err
	}
	if member.Status != database.MemberStatusActive {
		return ErrInvalidTransition
	}

	actorRole, err := m.RoleOf(ctx, member.GroupID, actor)
	if err != nil {
		return err
	}
	required := database.MemberRoleAdmin
	if role == database.MemberRoleOwner {
		required = database.MemberRoleOwner
	}
	if !actorRole.IsSet || roleRank(actorRole.Val) < roleRank(required) {
		return ErrForbidden
	}

	if _, err := m.store.SetGroupMemberRole(ctx, database.SetGroupMemberRoleParams{
		ID:      memberID,
		Role:    role,
		Version: member.Version,
	}); err != nil {
		return err
	}

	if err := m.auditor.LogEvent(ctx, audit.LogEventParams{
		ActorID: actor,
		Type:    audit.EventTypeMemberRoleChanged,
		Data:    map[string]any{"group_id": member.GroupID, "member_id": memberID, "role": role},
	}); err != nil {
		m.logger.Warn("failed to audit role change", "error", err)
	}

	return nil
}

const inviteTokenLength = 32

type EmailInviteParams struct {
	GroupID   uuid.UUID
	Email     string
	Role      database.MemberRole
	Inviter   uuid.UUID
	ExpiresIn time.Duration
}

// InviteByEmail issues a token invite for someone without a known user ID.
// The raw token goes out of band (mail delivery is external); only its bcrypt
// hash is stored.
func (m *Manager) InviteByEmail(ctx context.Context, params EmailInviteParams) (database.GroupInvite, string, error) {
	inviterRole, err := m.RoleOf(ctx, params.GroupID, params.Inviter)
	if err != nil {
		return database.GroupInvite{}, "", err
	}
	if !inviterRole.IsSet || roleRank(inviterRole.Val) < roleRank(database.MemberRoleAdmin) {
		return database.GroupInvite{}, "", ErrForbidden
	}

	token, err := util.RandomString(inviteTokenLength)
	if err != nil {
		return database.GroupInvite{}, "", fmt.Errorf("membership: failed to generate invite token: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return database.GroupInvite{}, "", fmt.Errorf("membership: failed to hash invite token: %w", err)
	}

	invite, err := m.store.CreateGroupInvite(ctx, database.CreateGroupInviteParams{
		GroupID:   params.GroupID,
		Email:     params.Email,
		Role:      params.Role,
		TokenHash: string(hash),
		ExpiresAt: time.Now().UTC().Add(params.ExpiresIn),
	})
	if err != nil {
		return invite, "", err
	}

	if err := m.auditor.LogEvent(ctx, audit.LogEventParams{
		ActorID: params.Inviter,
		Type:    audit.EventTypeMemberInvited,
		Data:    map[string]any{"group_id": params.GroupID, "email": params.Email, "role": params.Role},
	}); err != nil {
		m.logger.Warn("failed to audit email invite", "error", err)
	}

	return invite, token, nil
}

// RedeemInvite turns a valid token invite into a pending membership for the
// redeeming user.
func (m *Manager) RedeemInvite(ctx context.Context, inviteID uuid.UUID, token string, userID uuid.UUID) (database.GroupMember, error) {
	invite, err := m.store.GetGroupInviteByID(ctx, inviteID)
	if err != nil {
		return database.GroupMember{}, err
	}
	if invite.UsedAt.IsSet || time.Now().UTC().After(invite.ExpiresAt) {
		return database.GroupMember{}, ErrInviteExpired
	}
	if err := bcrypt.CompareHashAndPassword([]byte(invite.TokenHash), []byte(token)); err != nil {
		return database.GroupMember{}, ErrForbidden
	}

	if _, err := m.store.GetLiveGroupMember(ctx, invite.GroupID, userID); err == nil {
		return database.GroupMember{}, ErrDuplicateMembership
	} else if !errors.Is(err, database.ErrGroupMemberNotFound) {
		return database.GroupMember{}, err
	}

	if err := m.store.MarkGroupInviteUsed(ctx, invite.ID); err != nil {
		return database.GroupMember{}, err
	}

	return m.store.CreateGroupMember(ctx, database.CreateGroupMemberParams{
		GroupID: invite.GroupID,
		UserID:  userID,
		Role:    invite.Role,
		Status:  database.MemberStatusPending,
	})
}
