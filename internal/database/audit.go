package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"calshare/internal/util"

	"github.com/google/uuid"
)

type AuditLogEvent struct {
	ID          uuid.UUID
	ActorUserID uuid.UUID
	EventType   string
	EventData   json.RawMessage
	CreatedAt   time.Time
}

type CreateAuditLogEventParams struct {
	ActorUserID uuid.UUID
	EventType   string
	EventData   json.RawMessage
}

func (db *Database) CreateAuditLogEvent(ctx context.Context, params CreateAuditLogEventParams) (AuditLogEvent, error) {
	event := AuditLogEvent{
		ID:          uuid.New(),
		ActorUserID: params.ActorUserID,
		EventType:   params.EventType,
		EventData:   params.EventData,
		CreatedAt:   time.Now().UTC(),
	}

	if _, err := db.Pool.Exec(ctx, `INSERT INTO tbl_audit_log_event (id, actor_user_id, event_type, event_data, created_at) VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.ActorUserID, event.EventType, event.EventData, event.CreatedAt); err != nil {
		return event, fmt.Errorf("database: failed to insert audit log event: %w", err)
	}
	return event, nil
}

type ListAuditLogEventsParams struct {
	ActorUserID util.Optional[uuid.UUID]
	EventType   util.Optional[string]
	Limit       util.Optional[uint16]
}

func (db *Database) ListAuditLogEvents(ctx context.Context, params ListAuditLogEventsParams) ([]AuditLogEvent, error) {
	query := `SELECT id, actor_user_id, event_type, event_data, created_at FROM tbl_audit_log_event WHERE 1=1`
	var args []any
	argNum := 1

	if params.ActorUserID.IsSet {
		query += fmt.Sprintf(" AND actor_user_id = $%d", argNum)
		args = append(args, params.ActorUserID.Val)
		argNum++
	}
	if params.EventType.IsSet {
		query += fmt.Sprintf(" AND event_type = $%d", argNum)
		args = append(args, params.EventType.Val)
		argNum++
	}

	query += " ORDER BY created_at DESC"

	if params.Limit.IsSet {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, params.Limit.Val)
		argNum++
	}

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list audit log events: %w", err)
	}
	defer rows.Close()

	var events []AuditLogEvent
	for rows.Next() {
		var event AuditLogEvent
		if err := rows.Scan(&event.ID, &event.ActorUserID, &event.EventType, &event.EventData, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("database: failed to scan audit log event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate audit log events: %w", err)
	}
	return events, nil
}
