package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"calshare/internal/util"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ProjectionScope string

const (
	ProjectionScopeDateOnly ProjectionScope = "date_only"
	ProjectionScopeTitle    ProjectionScope = "title"
	ProjectionScopeFull     ProjectionScope = "full"
)

type ProjectionStatus string

const (
	ProjectionStatusSuggested ProjectionStatus = "suggested"
	ProjectionStatusPending   ProjectionStatus = "pending"
	ProjectionStatusAccepted  ProjectionStatus = "accepted"
	ProjectionStatusDeclined  ProjectionStatus = "declined"
	ProjectionStatusRevoked   ProjectionStatus = "revoked"
)

// EventProjection is the event-level visibility grant. Unique per (event,
// target user, optional target group calendar). Rows survive decline/revoke
// as an audit trail; only the accepted status grants anything.
type EventProjection struct {
	ID              uuid.UUID
	EventID         uuid.UUID
	TargetUserID    uuid.UUID
	TargetGroupID   util.Optional[uuid.UUID]
	Scope           ProjectionScope
	Status          ProjectionStatus
	CreatedByUserID uuid.UUID
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

const eventProjectionColumns = `id, event_id, target_user_id, target_group_id, scope, status, created_by_user_id, version, created_at, updated_at`

func scanEventProjection(row pgx.Row) (EventProjection, error) {
	var p EventProjection
	err := row.Scan(&p.ID, &p.EventID, &p.TargetUserID, &p.TargetGroupID, &p.Scope, &p.Status,
		&p.CreatedByUserID, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

type CreateEventProjectionParams struct {
	EventID         uuid.UUID
	TargetUserID    uuid.UUID
	TargetGroupID   util.Optional[uuid.UUID]
	Scope           ProjectionScope
	Status          ProjectionStatus
	CreatedByUserID uuid.UUID
}

func (db *Database) CreateEventProjection(ctx context.Context, params CreateEventProjectionParams) (EventProjection, error) {
	projection := EventProjection{
		ID:              uuid.New(),
		EventID:         params.EventID,
		TargetUserID:    params.TargetUserID,
		TargetGroupID:   params.TargetGroupID,
		Scope:           params.Scope,
		Status:          params.Status,
		CreatedByUserID: params.CreatedByUserID,
		Version:         1,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}

	if _, err := db.Pool.Exec(ctx, `INSERT INTO tbl_event_projection (`+eventProjectionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		projection.ID, projection.EventID, projection.TargetUserID, projection.TargetGroupID, projection.Scope,
		projection.Status, projection.CreatedByUserID, projection.Version, projection.CreatedAt, projection.UpdatedAt); err != nil {
		return projection, fmt.Errorf("database: failed to insert event projection: %w", err)
	}
	return projection, nil
}

func (db *Database) GetEventProjectionByID(ctx context.Context, id uuid.UUID) (EventProjection, error) {
	projection, err := scanEventProjection(db.Pool.QueryRow(ctx, `SELECT `+eventProjectionColumns+` FROM tbl_event_projection WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return projection, ErrProjectionNotFound
		}
		return projection, fmt.Errorf("database: failed to scan event projection: %w", err)
	}
	return projection, nil
}

type GetEventProjectionForTargetParams struct {
	EventID       uuid.UUID
	TargetUserID  uuid.UUID
	TargetGroupID util.Optional[uuid.UUID]
}

func (db *Database) GetEventProjectionForTarget(ctx context.Context, params GetEventProjectionForTargetParams) (EventProjection, error) {
	var projection EventProjection
	var err error
	if params.TargetGroupID.IsSet {
		projection, err = scanEventProjection(db.Pool.QueryRow(ctx,
			`SELECT `+eventProjectionColumns+` FROM tbl_event_projection WHERE event_id = $1 AND target_user_id = $2 AND target_group_id = $3`,
			params.EventID, params.TargetUserID, params.TargetGroupID.Val))
	} else {
		projection, err = scanEventProjection(db.Pool.QueryRow(ctx,
			`SELECT `+eventProjectionColumns+` FROM tbl_event_projection WHERE event_id = $1 AND target_user_id = $2 AND target_group_id IS NULL`,
			params.EventID, params.TargetUserID))
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return projection, ErrProjectionNotFound
		}
		return projection, fmt.Errorf("database: failed to scan event projection: %w", err)
	}
	return projection, nil
}

// GetAcceptedProjection returns the accepted projection an event carries for
// a target user regardless of calendar scope, preferring the widest detail
// scope when multiple rows are accepted.
func (db *Database) GetAcceptedProjection(ctx context.Context, eventID, targetUserID uuid.UUID) (EventProjection, error) {
	projection, err := scanEventProjection(db.Pool.QueryRow(ctx,
		`SELECT `+eventProjectionColumns+` FROM tbl_event_projection
		 WHERE event_id = $1 AND target_user_id = $2 AND status = 'accepted'
		 ORDER BY CASE scope WHEN 'full' THEN 3 WHEN 'title' THEN 2 ELSE 1 END DESC
		 LIMIT 1`,
		eventID, targetUserID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return projection, ErrProjectionNotFound
		}
		return projection, fmt.Errorf("database: failed to scan accepted projection: %w", err)
	}
	return projection, nil
}

type ListEventProjectionsParams struct {
	EventID      util.Optional[uuid.UUID]
	TargetUserID util.Optional[uuid.UUID]
	Status       util.Optional[ProjectionStatus]
}

func (db *Database) ListEventProjections(ctx context.Context, params ListEventProjectionsParams) ([]EventProjection, error) {
	query := `SELECT ` + eventProjectionColumns + ` FROM tbl_event_projection WHERE 1=1`
	var args []any
	argNum := 1

	if params.EventID.IsSet {
		query += fmt.Sprintf(" AND event_id = $%d", argNum)
		args = append(args, params.EventID.Val)
		argNum++
	}
	if params.TargetUserID.IsSet {
		query += fmt.Sprintf(" AND target_user_id = $%d", argNum)
		args = append(args, params.TargetUserID.Val)
		argNum++
	}
	if params.Status.IsSet {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, params.Status.Val)
		argNum++
	}

	query += " ORDER BY created_at ASC"

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list event projections: %w", err)
	}
	defer rows.Close()

	var projections []EventProjection
	for rows.Next() {
		projection, err := scanEventProjection(rows)
		if err != nil {
			return nil, fmt.Errorf("database: failed to scan event projection: %w", err)
		}
		projections = append(projections, projection)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate event projections: %w", err)
	}
	return projections, nil
}

type SetEventProjectionStatusParams struct {
	ID      uuid.UUID
	Status  ProjectionStatus
	Version int64
}

// SetEventProjectionStatus is version-guarded like agreement writes. Revokes
// take effect on commit; nothing in the read path caches projection rows, so
// the next visibility check observes the new status.
func (db *Database) SetEventProjectionStatus(ctx context.Context, params SetEventProjectionStatusParams) (EventProjection, error) {
	projection, err := scanEventProjection(db.Pool.QueryRow(ctx,
		`UPDATE tbl_event_projection SET status = $1, version = version + 1, updated_at = $2 WHERE id = $3 AND version = $4 RETURNING `+eventProjectionColumns,
		params.Status, time.Now().UTC(), params.ID, params.Version))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := db.GetEventProjectionByID(ctx, params.ID); getErr != nil {
				return projection, getErr
			}
			return projection, ErrVersionConflict
		}
		return projection, fmt.Errorf("database: failed to set event projection status (id=%s): %w", params.ID, err)
	}
	return projection, nil
}

type ResetEventProjectionParams struct {
	ID      uuid.UUID
	Scope   ProjectionScope
	Status  ProjectionStatus
	Version int64
}

// ResetEventProjection reuses a declined or revoked row for a fresh consent
// ask with a new scope.
func (db *Database) ResetEventProjection(ctx context.Context, params ResetEventProjectionParams) (EventProjection, error) {
	projection, err := scanEventProjection(db.Pool.QueryRow(ctx,
		`UPDATE tbl_event_projection SET status = $1, scope = $2, version = version + 1, updated_at = $3 WHERE id = $4 AND version = $5 RETURNING `+eventProjectionColumns,
		params.Status, params.Scope, time.Now().UTC(), params.ID, params.Version))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := db.GetEventProjectionByID(ctx, params.ID); getErr != nil {
				return projection, getErr
			}
			return projection, ErrVersionConflict
		}
		return projection, fmt.Errorf("database: failed to reset event projection (id=%s): %w", params.ID, err)
	}
	return projection, nil
}
