// Package event owns the event records and the ownership registry: every
// event belongs to exactly one actor or one group, never both. Writes are
// gated on that ownership; visibility for readers is someone else's job
// (internal/visibility).
package event

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"calshare/internal/audit"
	"calshare/internal/database"
	"calshare/internal/util"

	"github.com/google/uuid"
)

var (
	ErrInvalidOwnership = errors.New("event: exactly one of actor owner or group owner must be set")
	ErrInvalidTimeRange = errors.New("event: end time precedes start time")
	ErrForbidden        = errors.New("event: actor lacks authority over this event")
)

// OwnerKind distinguishes the two mutually exclusive ownership modes.
type OwnerKind string

const (
	OwnerKindActor OwnerKind = "actor"
	OwnerKindGroup OwnerKind = "group"
)

type OwnerRef struct {
	Kind OwnerKind
	ID   uuid.UUID
}

type Store interface {
	CreateCalendarEvent(ctx context.Context, params database.CreateCalendarEventParams) (database.CalendarEvent, error)
	GetCalendarEventByID(ctx context.Context, id uuid.UUID) (database.CalendarEvent, error)
	UpdateCalendarEventByID(ctx context.Context, id uuid.UUID, params database.UpdateCalendarEventParams) error
	DeleteCalendarEventByID(ctx context.Context, id uuid.UUID) error
	ListCalendarEvents(ctx context.Context, params database.ListCalendarEventsParams) ([]database.CalendarEvent, error)
}

// Memberships is the slice of the membership registry the write gate needs.
type Memberships interface {
	HasEditAuthority(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
}

type Auditor interface {
	LogEvent(ctx context.Context, params audit.LogEventParams) error
}

type Manager struct {
	logger      *slog.Logger
	store       Store
	memberships Memberships
	auditor     Auditor
}

func NewManager(logger *slog.Logger, store Store, memberships Memberships, auditor Auditor) Manager {
	return Manager{logger: logger, store: store, memberships: memberships, auditor: auditor}
}

type CreateParams struct {
	OwnerUserID      util.Optional[uuid.UUID]
	OwnerGroupID     util.Optional[uuid.UUID]
	Title            string
	Description      string
	Location         string
	EventType        string
	Color            string
	AllDay           bool
	DetailVisibility database.DetailVisibility
	StartTime        time.Time
	EndTime          time.Time
	SourceRef        util.Optional[string]
	Creator          uuid.UUID
}

func (m *Manager) Create(ctx context.Context, params CreateParams) (database.CalendarEvent, error) {
	if params.OwnerUserID.IsSet == params.OwnerGroupID.IsSet {
		return database.CalendarEvent{}, ErrInvalidOwnership
	}
	if params.EndTime.Before(params.StartTime) {
		return database.CalendarEvent{}, ErrInvalidTimeRange
	}

	// Personal events can only be created in the owner's own calendar; group
	// events require edit authority on the group.
	if params.OwnerUserID.IsSet {
		if params.OwnerUserID.Val != params.Creator {
			return database.CalendarEvent{}, ErrForbidden
		}
	} else {
		ok, err := m.memberships.HasEditAuthority(ctx, params.OwnerGroupID.Val, params.Creator)
		if err != nil {
			return database.CalendarEvent{}, err
		}
		if !ok {
			return database.CalendarEvent{}, ErrForbidden
		}
	}

	detail := params.DetailVisibility
	if detail == "" {
		detail = database.DetailVisibilityVisible
	}

	event, err := m.store.CreateCalendarEvent(ctx, database.CreateCalendarEventParams{
		OwnerUserID:      params.OwnerUserID,
		OwnerGroupID:     params.OwnerGroupID,
		Title:            params.Title,
		Description:      params.Description,
		Location:         params.Location,
		EventType:        params.EventType,
		Color:            params.Color,
		AllDay:           params.AllDay,
		DetailVisibility: detail,
		StartTime:        params.StartTime,
		EndTime:          params.EndTime,
		CreatedByUserID:  params.Creator,
		SourceRef:        params.SourceRef,
	})
	if err != nil {
		return event, err
	}

	if err := m.auditor.LogEvent(ctx, audit.LogEventParams{
		ActorID: params.Creator,
		Type:    audit.EventTypeEventCreated,
		Data:    map[string]any{"event_id": event.ID},
	}); err != nil {
		m.logger.Warn("failed to audit event creation", "error", err)
	}

	return event, nil
}

func (m *Manager) Get(ctx context.Context, id uuid.UUID) (database.CalendarEvent, error) {
	return m.store.GetCalendarEventByID(ctx, id)
}

// OwnEvents lists the raw events in the actor's personal calendar,
// attribution included, optionally bounded to a window. Shared calendars go
// through the read side instead, which redacts per grant.
func (m *Manager) OwnEvents(ctx context.Context, owner uuid.UUID, windowStart, windowEnd util.Optional[time.Time]) ([]database.CalendarEvent, error) {
	return m.store.ListCalendarEvents(ctx, database.ListCalendarEventsParams{
		OwnerUserID: util.Some(owner),
		StartBefore: windowEnd,
		EndAfter:    windowStart,
	})
}

// Owner reads the ownership registry for an event.
func (m *Manager) Owner(ctx context.Context, eventID uuid.UUID) (OwnerRef, error) {
	event, err := m.store.GetCalendarEventByID(ctx, eventID)
	if err != nil {
		return OwnerRef{}, err
	}
	return ownerOf(event)
}

func ownerOf(event database.CalendarEvent) (OwnerRef, error) {
	switch {
	case event.OwnerUserID.IsSet && !event.OwnerGroupID.IsSet:
		return OwnerRef{Kind: OwnerKindActor, ID: event.OwnerUserID.Val}, nil
	case event.OwnerGroupID.IsSet && !event.OwnerUserID.IsSet:
		return OwnerRef{Kind: OwnerKindGroup, ID: event.OwnerGroupID.Val}, nil
	default:
		return OwnerRef{}, ErrInvalidOwnership
	}
}

// CanEdit reports whether the actor holds write authority over the event:
// the actor-owner, or an active group member at member rank or above when the
// owner is a group.
func (m *Manager) CanEdit(ctx context.Context, event database.CalendarEvent, actor uuid.UUID) (bool, error) {
	owner, err := ownerOf(event)
	if err != nil {
		return false, err
	}
	if owner.Kind == OwnerKindActor {
		return owner.ID == actor, nil
	}
	return m.memberships.HasEditAuthority(ctx, owner.ID, actor)
}

type UpdateParams struct {
	Title            util.Optional[string]
	Description      util.Optional[string]
	Location         util.Optional[string]
	EventType        util.Optional[string]
	Color            util.Optional[string]
	AllDay           util.Optional[bool]
	DetailVisibility util.Optional[database.DetailVisibility]
	StartTime        util.Optional[time.Time]
	EndTime          util.Optional[time.Time]
}

func (m *Manager) Update(ctx context.Context, id uuid.UUID, params UpdateParams, actor uuid.UUID) error {
	event, err := m.store.GetCalendarEventByID(ctx, id)
	if err != nil {
		return err
	}

	ok, err := m.CanEdit(ctx, event, actor)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}

	start := event.StartTime
	end := event.EndTime
	if params.StartTime.IsSet {
		start = params.StartTime.Val
	}
	if params.EndTime.IsSet {
		end = params.EndTime.Val
	}
	if end.Before(start) {
		return ErrInvalidTimeRange
	}

	if err := m.store.UpdateCalendarEventByID(ctx, id, database.UpdateCalendarEventParams{
		Title:            params.Title,
		Description:      params.Description,
		Location:         params.Location,
		EventType:        params.EventType,
		Color:            params.Color,
		AllDay:           params.AllDay,
		DetailVisibility: params.DetailVisibility,
		StartTime:        params.StartTime,
		EndTime:          params.EndTime,
	}); err != nil {
		return err
	}

	if err := m.auditor.LogEvent(ctx, audit.LogEventParams{
		ActorID: actor,
		Type:    audit.EventTypeEventUpdated,
		Data:    map[string]any{"event_id": id},
	}); err != nil {
		m.logger.Warn("failed to audit event update", "error", err)
	}

	return nil
}

// Delete removes the event; dependent projections cascade away with it, so a
// deleted event cannot linger behind a live grant.
func (m *Manager) Delete(ctx context.Context, id, actor uuid.UUID) error {
	event, err := m.store.GetCalendarEventByID(ctx, id)
	if err != nil {
		return err
	}

	ok, err := m.CanEdit(ctx, event, actor)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}

	if err := m.store.DeleteCalendarEventByID(ctx, id); err != nil {
		return err
	}

	if err := m.auditor.LogEvent(ctx, audit.LogEventParams{
		ActorID: actor,
		Type:    audit.EventTypeEventDeleted,
		Data:    map[string]any{"event_id": id},
	}); err != nil {
		m.logger.Warn("failed to audit event deletion", "error", err)
	}

	return nil
}
