package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"calshare/internal/util"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Group struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type MemberRole string

const (
	MemberRoleOwner  MemberRole = "owner"
	MemberRoleAdmin  MemberRole = "admin"
	MemberRoleMember MemberRole = "member"
	MemberRoleViewer MemberRole = "viewer"
)

type MemberStatus string

const (
	MemberStatusPending MemberStatus = "pending"
	MemberStatusActive  MemberStatus = "active"
	MemberStatusRemoved MemberStatus = "removed"
)

// GroupMember rows are never deleted; removal is a status transition so the
// consent history stays auditable. Re-inviting a removed member creates a
// fresh pending row.
type GroupMember struct {
	ID        uuid.UUID
	GroupID   uuid.UUID
	UserID    uuid.UUID
	Role      MemberRole
	Status    MemberStatus
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

const groupMemberColumns = `id, group_id, user_id, role, status, version, created_at, updated_at`

func scanGroupMember(row pgx.Row) (GroupMember, error) {
	var m GroupMember
	err := row.Scan(&m.ID, &m.GroupID, &m.UserID, &m.Role, &m.Status, &m.Version, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

type GroupInvite struct {
	ID        uuid.UUID
	GroupID   uuid.UUID
	Email     string
	Role      MemberRole
	TokenHash string
	ExpiresAt time.Time
	UsedAt    util.Optional[time.Time]
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateGroupParams struct {
	Name string
}

func (db *Database) CreateGroup(ctx context.Context, params CreateGroupParams) (Group, error) {
	group := Group{
		ID:        uuid.New(),
		Name:      params.Name,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if _, err := db.Pool.Exec(ctx, `INSERT INTO tbl_group (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		group.ID, group.Name, group.CreatedAt, group.UpdatedAt); err != nil {
		return group, fmt.Errorf("database: failed to insert group: %w", err)
	}
	return group, nil
}

func (db *Database) GetGroupByID(ctx context.Context, id uuid.UUID) (Group, error) {
	var group Group
	err := db.Pool.QueryRow(ctx, `SELECT id, name, created_at, updated_at FROM tbl_group WHERE id = $1`, id).
		Scan(&group.ID, &group.Name, &group.CreatedAt, &group.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return group, ErrGroupNotFound
		}
		return group, fmt.Errorf("database: failed to scan group: %w", err)
	}
	return group, nil
}

type CreateGroupMemberParams struct {
	GroupID uuid.UUID
	UserID  uuid.UUID
	Role    MemberRole
	Status  MemberStatus
}

func (db *Database) CreateGroupMember(ctx context.Context, params CreateGroupMemberParams) (GroupMember, error) {
	member := GroupMember{
		ID:        uuid.New(),
		GroupID:   params.GroupID,
		UserID:    params.UserID,
		Role:      params.Role,
		Status:    params.Status,
		Version:   1,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if _, err := db.Pool.Exec(ctx, `INSERT INTO tbl_group_member (`+groupMemberColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		member.ID, member.GroupID, member.UserID, member.Role, member.Status, member.Version, member.CreatedAt, member.UpdatedAt); err != nil {
		return member, fmt.Errorf("database: failed to insert group member: %w", err)
	}
	return member, nil
}

// GetLiveGroupMember returns the pending or active membership row for the
// pair, skipping removed rows.
func (db *Database) GetLiveGroupMember(ctx context.Context, groupID, userID uuid.UUID) (GroupMember, error) {
	member, err := scanGroupMember(db.Pool.QueryRow(ctx,
		`SELECT `+groupMemberColumns+` FROM tbl_group_member WHERE group_id = $1 AND user_id = $2 AND status <> 'removed'`, groupID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return member, ErrGroupMemberNotFound
		}
		return member, fmt.Errorf("database: failed to scan group member: %w", err)
	}
	return member, nil
}

func (db *Database) GetGroupMemberByID(ctx context.Context, id uuid.UUID) (GroupMember, error) {
	member, err := scanGroupMember(db.Pool.QueryRow(ctx,
		`SELECT `+groupMemberColumns+` FROM tbl_group_member WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return member, ErrGroupMemberNotFound
		}
		return member, fmt.Errorf("database: failed to scan group member: %w", err)
	}
	return member, nil
}

type ListGroupMembersParams struct {
	GroupID util.Optional[uuid.UUID]
	UserID  util.Optional[uuid.UUID]
	Status  util.Optional[MemberStatus]
}

func (db *Database) ListGroupMembers(ctx context.Context, params ListGroupMembersParams) ([]GroupMember, error) {
	var query strings.Builder
	query.WriteString(`SELECT ` + groupMemberColumns + ` FROM tbl_group_member WHERE 1=1`)
	var args []any
	argNum := 1

	if params.GroupID.IsSet {
		query.WriteString(fmt.Sprintf(" AND group_id = $%d", argNum))
		args = append(args, params.GroupID.Val)
		argNum++
	}
	if params.UserID.IsSet {
		query.WriteString(fmt.Sprintf(" AND user_id = $%d", argNum))
		args = append(args, params.UserID.Val)
		argNum++
	}
	if params.Status.IsSet {
		query.WriteString(fmt.Sprintf(" AND status = $%d", argNum))
		args = append(args, params.Status.Val)
		argNum++
	}

	query.WriteString(" ORDER BY created_at ASC")

	rows, err := db.Pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list group members: %w", err)
	}
	defer rows.Close()

	var members []GroupMember
	for rows.Next() {
		member, err := scanGroupMember(rows)
		if err != nil {
			return nil, fmt.Errorf("database: failed to scan group member: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate group members: %w", err)
	}
	return members, nil
}

type SetGroupMemberStatusParams struct {
	ID      uuid.UUID
	Status  MemberStatus
	Version int64
}

// SetGroupMemberStatus is version-guarded like agreement and projection
// writes, so a racing accept and remove on the same row serialize instead of
// silently overwriting each other.
func (db *Database) SetGroupMemberStatus(ctx context.Context, params SetGroupMemberStatusParams) (GroupMember, error) {
	member, err := scanGroupMember(db.Pool.QueryRow(ctx,
		`UPDATE tbl_group_member SET status = $1, version = version + 1, updated_at = $2 WHERE id = $3 AND version = $4 RETURNING `+groupMemberColumns,
		params.Status, time.Now().UTC(), params.ID, params.Version))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := db.GetGroupMemberByID(ctx, params.ID); getErr != nil {
				return member, getErr
			}
			return member, ErrVersionConflict
		}
		return member, fmt.Errorf("database: failed to set group member status (id=%s): %w", params.ID, err)
	}
	return member, nil
}

type SetGroupMemberRoleParams struct {
	ID      uuid.UUID
	Role    MemberRole
	Version int64
}

func (db *Database) SetGroupMemberRole(ctx context.Context, params SetGroupMemberRoleParams) (GroupMember, error) {
	member, err := scanGroupMember(db.Pool.QueryRow(ctx,
		`UPDATE tbl_group_member SET role = $1, version = version + 1, updated_at = $2 WHERE id = $3 AND version = $4 RETURNING `+groupMemberColumns,
		params.Role, time.Now().UTC(), params.ID, params.Version))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := db.GetGroupMemberByID(ctx, params.ID); getErr != nil {
				return member, getErr
			}
			return member, ErrVersionConflict
		}
		return member, fmt.Errorf("database: failed to set group member role (id=%s): %w", params.ID, err)
	}
	return member, nil
}

type CreateGroupInviteParams struct {
	GroupID   uuid.UUID
	Email     string
	Role      MemberRole
	TokenHash string
	ExpiresAt time.Time
}

func (db *Database) CreateGroupInvite(ctx context.Context, params CreateGroupInviteParams) (GroupInvite, error) {
	invite := GroupInvite{
		ID:        uuid.New(),
		GroupID:   params.GroupID,
		Email:     params.Email,
		Role:      params.Role,
		TokenHash: params.TokenHash,
		ExpiresAt: params.ExpiresAt,
		UsedAt:    util.None[time.Time](),
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if _, err := db.Pool.Exec(ctx, `INSERT INTO tbl_group_invite (id, group_id, email, role, token_hash, expires_at, used_at, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		invite.ID, invite.GroupID, invite.Email, invite.Role, invite.TokenHash, invite.ExpiresAt, invite.UsedAt, invite.CreatedAt, invite.UpdatedAt); err != nil {
		return invite, fmt.Errorf("database: failed to insert group invite: %w", err)
	}
	return invite, nil
}

func (db *Database) GetGroupInviteByID(ctx context.Context, id uuid.UUID) (GroupInvite, error) {
	var invite GroupInvite
	err := db.Pool.QueryRow(ctx, `SELECT id, group_id, email, role, token_hash, expires_at, used_at, created_at, updated_at FROM tbl_group_invite WHERE id = $1`, id).
		Scan(&invite.ID, &invite.GroupID, &invite.Email, &invite.Role, &invite.TokenHash, &invite.ExpiresAt, &invite.UsedAt, &invite.CreatedAt, &invite.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return invite, ErrGroupInviteNotFound
		}
		return invite, fmt.Errorf("database: failed to scan group invite: %w", err)
	}
	return invite, nil
}

func (db *Database) MarkGroupInviteUsed(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `UPDATE tbl_group_invite SET used_at = $1, updated_at = $1 WHERE id = $2 AND used_at IS NULL`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("database: failed to mark group invite used (id=%s): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGroupInviteNotFound
	}
	return nil
}
