// Package projection manages event-level visibility grants: explicit,
// revocable, per-target rows carrying a detail scope. A projection is the
// finer-grained override of the whole-calendar sharing agreement.
package projection

import (
	"context"
	"errors"
	"log/slog"

	"calshare/internal/audit"
	"calshare/internal/database"
	"calshare/internal/notifications"
	"calshare/internal/util"

	"github.com/google/uuid"
)

var (
	ErrForbidden         = errors.New("projection: actor lacks authority for this transition")
	ErrInvalidTransition = errors.New("projection: illegal status transition")
	ErrSelfProjection    = errors.New("projection: cannot project an event to its owner")
)

type Store interface {
	GetCalendarEventByID(ctx context.Context, id uuid.UUID) (database.CalendarEvent, error)
	CreateEventProjection(ctx context.Context, params database.CreateEventProjectionParams) (database.EventProjection, error)
	GetEventProjectionByID(ctx context.Context, id uuid.UUID) (database.EventProjection, error)
	GetEventProjectionForTarget(ctx context.Context, params database.GetEventProjectionForTargetParams) (database.EventProjection, error)
	ListEventProjections(ctx context.Context, params database.ListEventProjectionsParams) ([]database.EventProjection, error)
	SetEventProjectionStatus(ctx context.Context, params database.SetEventProjectionStatusParams) (database.EventProjection, error)
	ResetEventProjection(ctx context.Context, params database.ResetEventProjectionParams) (database.EventProjection, error)
}

// Events provides the write-authority check over the owning entity.
type Events interface {
	CanEdit(ctx context.Context, event database.CalendarEvent, actor uuid.UUID) (bool, error)
}

type Auditor interface {
	LogEvent(ctx context.Context, params audit.LogEventParams) error
}

type Notifier interface {
	Notify(ctx context.Context, params notifications.NotifyParams) error
}

type Mirror interface {
	ProjectionChanged(ctx context.Context, projection database.EventProjection) error
}

type Manager struct {
	logger   *slog.Logger
	store    Store
	events   Events
	auditor  Auditor
	notifier Notifier
	mirror   Mirror
}

func NewManager(logger *slog.Logger, store Store, events Events, auditor Auditor, notifier Notifier, mirror Mirror) Manager {
	return Manager{logger: logger, store: store, events: events, auditor: auditor, notifier: notifier, mirror: mirror}
}

type CreateParams struct {
	EventID       uuid.UUID
	TargetUserID  uuid.UUID
	TargetGroupID util.Optional[uuid.UUID]
	Scope         database.ProjectionScope
	// Suggested marks a proposal that does not yet ask the target for
	// consent; the owner can promote it to pending later.
	Suggested bool
	Creator   uuid.UUID
}

// Create issues a new consent ask for (event, target). The creator must hold
// edit authority over the event's owner. A declined or revoked row for the
// same target is reset to pending rather than duplicated, preserving the
// uniqueness invariant.
func (m *Manager) Create(ctx context.Context, params CreateParams) (database.EventProjection, error) {
	calendarEvent, err := m.store.GetCalendarEventByID(ctx, params.EventID)
	if err != nil {
		return database.EventProjection{}, err
	}

	if calendarEvent.OwnerUserID.IsSet && calendarEvent.OwnerUserID.Val == params.TargetUserID {
		return database.EventProjection{}, ErrSelfProjection
	}

	ok, err := m.events.CanEdit(ctx, calendarEvent, params.Creator)
	if err != nil {
		return database.EventProjection{}, err
	}
	if !ok {
		return database.EventProjection{}, ErrForbidden
	}

	status := database.ProjectionStatusPending
	auditType := audit.EventTypeProjectionCreated
	if params.Suggested {
		status = database.ProjectionStatusSuggested
		auditType = audit.EventTypeProjectionSuggested
	}

	existing, err := m.store.GetEventProjectionForTarget(ctx, database.GetEventProjectionForTargetParams{
		EventID:       params.EventID,
		TargetUserID:  params.TargetUserID,
		TargetGroupID: params.TargetGroupID,
	})
	switch {
	case err == nil:
		if existing.Status == database.ProjectionStatusPending || existing.Status == database.ProjectionStatusAccepted {
			// A live grant already covers this target.
			return existing, nil
		}
		projection, err := m.store.ResetEventProjection(ctx, database.ResetEventProjectionParams{
			ID:      existing.ID,
			Scope:   params.Scope,
			Status:  status,
			Version: existing.Version,
		})
		if err != nil {
			return projection, err
		}
		m.recordChange(ctx, params.Creator, auditType, projection)
		m.notifyTarget(ctx, projection, status)
		return projection, nil
	case errors.Is(err, database.ErrProjectionNotFound):
		projection, err := m.store.CreateEventProjection(ctx, database.CreateEventProjectionParams{
			EventID:         params.EventID,
			TargetUserID:    params.TargetUserID,
			TargetGroupID:   params.TargetGroupID,
			Scope:           params.Scope,
			Status:          status,
			CreatedByUserID: params.Creator,
		})
		if err != nil {
			return projection, err
		}
		m.recordChange(ctx, params.Creator, auditType, projection)
		m.notifyTarget(ctx, projection, status)
		return projection, nil
	default:
		return database.EventProjection{}, err
	}
}

// Promote moves a suggested projection to pending, starting the actual
// consent ask. Requires edit authority over the event.
func (m *Manager) Promote(ctx context.Context, id, actor uuid.UUID) (database.EventProjection, error) {
	projection, err := m.store.GetEventProjectionByID(ctx, id)
	if err != nil {
		return projection, err
	}
	if projection.Status != database.ProjectionStatusSuggested {
		return projection, ErrInvalidTransition
	}

	calendarEvent, err := m.store.GetCalendarEventByID(ctx, projection.EventID)
	if err != nil {
		return projection, err
	}
	ok, err := m.events.CanEdit(ctx, calendarEvent, actor)
	if err != nil {
		return projection, err
	}
	if !ok {
		return projection, ErrForbidden
	}

	updated, err := m.store.SetEventProjectionStatus(ctx, database.SetEventProjectionStatusParams{
		ID:      id,
		Status:  database.ProjectionStatusPending,
		Version: projection.Version,
	})
	if err != nil {
		return updated, err
	}

	m.recordChange(ctx, actor, audit.EventTypeProjectionCreated, updated)
	m.notifyTarget(ctx, updated, database.ProjectionStatusPending)
	return updated, nil
}

// Respond is the target's decision: accept or decline a pending projection.
func (m *Manager) Respond(ctx context.Context, id, actor uuid.UUID, accept bool) (database.EventProjection, error) {
	projection, err := m.store.GetEventProjectionByID(ctx, id)
	if err != nil {
		return projection, err
	}
	if projection.TargetUserID != actor {
		return projection, ErrForbidden
	}
	if projection.Status != database.ProjectionStatusPending {
		return projection, ErrInvalidTransition
	}

	status := database.ProjectionStatusDeclined
	auditType := audit.EventTypeProjectionDeclined
	if accept {
		status = database.ProjectionStatusAccepted
		auditType = audit.EventTypeProjectionAccepted
	}

	updated, err := m.store.SetEventProjectionStatus(ctx, database.SetEventProjectionStatusParams{
		ID:      id,
		Status:  status,
		Version: projection.Version,
	})
	if err != nil {
		return updated, err
	}

	m.recordChange(ctx, actor, auditType, updated)
	return updated, nil
}

// Revoke withdraws the grant. Allowed for the original creator or anyone
// with edit authority over the event's current owner. Effective immediately:
// the read path holds no cache, so the next visibility check sees it.
func (m *Manager) Revoke(ctx context.Context, id, actor uuid.UUID) (database.EventProjection, error) {
	projection, err := m.store.GetEventProjectionByID(ctx, id)
	if err != nil {
		return projection, err
	}
	if projection.Status == database.ProjectionStatusRevoked {
		return projection, nil
	}

	if projection.CreatedByUserID != actor {
		calendarEvent, err := m.store.GetCalendarEventByID(ctx, projection.EventID)
		if err != nil {
			return projection, err
		}
		ok, err := m.events.CanEdit(ctx, calendarEvent, actor)
		if err != nil {
			return projection, err
		}
		if !ok {
			return projection, ErrForbidden
		}
	}

	updated, err := m.store.SetEventProjectionStatus(ctx, database.SetEventProjectionStatusParams{
		ID:      id,
		Status:  database.ProjectionStatusRevoked,
		Version: projection.Version,
	})
	if err != nil {
		return updated, err
	}

	m.recordChange(ctx, actor, audit.EventTypeProjectionRevoked, updated)

	if err := m.notifier.Notify(ctx, notifications.NotifyParams{
		UserID:  updated.TargetUserID,
		Type:    notifications.NotificationTypeAccessRevoked,
		Title:   "Event access revoked",
		Message: "Your access to a shared event has been revoked",
	}); err != nil {
		m.logger.Warn("failed to notify target of revocation", "error", err)
	}

	return updated, nil
}

func (m *Manager) recordChange(ctx context.Context, actor uuid.UUID, auditType audit.EventType, projection database.EventProjection) {
	if err := m.auditor.LogEvent(ctx, audit.LogEventParams{
		ActorID: actor,
		Type:    auditType,
		Data: map[string]any{
			"projection_id": projection.ID,
			"event_id":      projection.EventID,
			"target_id":     projection.TargetUserID,
			"scope":         projection.Scope,
			"status":        projection.Status,
		},
	}); err != nil {
		m.logger.Warn("failed to audit projection change", "error", err)
	}

	if err := m.mirror.ProjectionChanged(ctx, projection); err != nil {
		m.logger.Warn("failed to mirror projection change", "error", err, "projection_id", projection.ID)
	}
}

func (m *Manager) notifyTarget(ctx context.Context, projection database.EventProjection, status database.ProjectionStatus) {
	if status != database.ProjectionStatusPending {
		return
	}
	if err := m.notifier.Notify(ctx, notifications.NotifyParams{
		UserID:  projection.TargetUserID,
		Type:    notifications.NotificationTypeProjectionInvite,
		Title:   "Event share invitation",
		Message: "Someone wants to share an event with you",
	}); err != nil {
		m.logger.Warn("failed to notify projection target", "error", err)
	}
}
