// Package audit appends consent decisions to a durable trail. Every status
// transition on an agreement, projection, or membership lands here so the
// history of who consented to what is reconstructible after the fact.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"calshare/internal/database"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTypeEventCreated EventType = "event.created"
	EventTypeEventUpdated EventType = "event.updated"
	EventTypeEventDeleted EventType = "event.deleted"

	EventTypeAgreementCreated  EventType = "agreement.created"
	EventTypeAgreementAccepted EventType = "agreement.accepted"
	EventTypeAgreementDeclined EventType = "agreement.declined"
	EventTypeAgreementRevoked  EventType = "agreement.revoked"
	EventTypeAgreementRenewed  EventType = "agreement.renewed"

	EventTypeProjectionCreated   EventType = "projection.created"
	EventTypeProjectionSuggested EventType = "projection.suggested"
	EventTypeProjectionAccepted  EventType = "projection.accepted"
	EventTypeProjectionDeclined  EventType = "projection.declined"
	EventTypeProjectionRevoked   EventType = "projection.revoked"

	EventTypeMemberInvited     EventType = "membership.invited"
	EventTypeMemberAccepted    EventType = "membership.accepted"
	EventTypeMemberDeclined    EventType = "membership.declined"
	EventTypeMemberRemoved     EventType = "membership.removed"
	EventTypeMemberRoleChanged EventType = "membership.role_changed"
)

type Store interface {
	CreateAuditLogEvent(ctx context.Context, params database.CreateAuditLogEventParams) (database.AuditLogEvent, error)
}

type Auditor struct {
	logger *slog.Logger
	store  Store
}

func NewAuditor(logger *slog.Logger, store Store) Auditor {
	return Auditor{logger: logger, store: store}
}

type LogEventParams struct {
	ActorID uuid.UUID
	Type    EventType
	Data    map[string]any
}

func (a *Auditor) LogEvent(ctx context.Context, params LogEventParams) error {
	data, err := json.Marshal(params.Data)
	if err != nil {
		return fmt.Errorf("audit: failed to marshal event data: %w", err)
	}

	if _, err = a.store.CreateAuditLogEvent(ctx, database.CreateAuditLogEventParams{
		ActorUserID: params.ActorID,
		EventType:   string(params.Type),
		EventData:   data,
	}); err != nil {
		return fmt.Errorf("audit: failed to append event: %w", err)
	}

	a.logger.Debug("audit event recorded", "type", params.Type, "actor", params.ActorID)
	return nil
}
