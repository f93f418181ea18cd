package event_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"calshare/internal/audit"
	"calshare/internal/database"
	"calshare/internal/event"
	"calshare/internal/util"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEventStore struct {
	events map[uuid.UUID]database.CalendarEvent
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{events: make(map[uuid.UUID]database.CalendarEvent)}
}

func (s *fakeEventStore) CreateCalendarEvent(ctx context.Context, params database.CreateCalendarEventParams) (database.CalendarEvent, error) {
	e := database.CalendarEvent{
		ID:               uuid.New(),
		OwnerUserID:      params.OwnerUserID,
		OwnerGroupID:     params.OwnerGroupID,
		Title:            params.Title,
		Description:      params.Description,
		Location:         params.Location,
		EventType:        params.EventType,
		Color:            params.Color,
		AllDay:           params.AllDay,
		DetailVisibility: params.DetailVisibility,
		StartTime:        params.StartTime,
		EndTime:          params.EndTime,
		CreatedByUserID:  params.CreatedByUserID,
		SourceRef:        params.SourceRef,
	}
	s.events[e.ID] = e
	return e, nil
}

func (s *fakeEventStore) GetCalendarEventByID(ctx context.Context, id uuid.UUID) (database.CalendarEvent, error) {
	e, ok := s.events[id]
	if !ok {
		return e, database.ErrCalendarEventNotFound
	}
	return e, nil
}

func (s *fakeEventStore) UpdateCalendarEventByID(ctx context.Context, id uuid.UUID, params database.UpdateCalendarEventParams) error {
	e, ok := s.events[id]
	if !ok {
		return database.ErrCalendarEventNotFound
	}
	if params.Title.IsSet {
		e.Title = params.Title.Val
	}
	if params.Description.IsSet {
		e.Description = params.Description.Val
	}
	if params.DetailVisibility.IsSet {
		e.DetailVisibility = params.DetailVisibility.Val
	}
	if params.StartTime.IsSet {
		e.StartTime = params.StartTime.Val
	}
	if params.EndTime.IsSet {
		e.EndTime = params.EndTime.Val
	}
	s.events[id] = e
	return nil
}

func (s *fakeEventStore) DeleteCalendarEventByID(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.events[id]; !ok {
		return database.ErrCalendarEventNotFound
	}
	delete(s.events, id)
	return nil
}

func (s *fakeEventStore) ListCalendarEvents(ctx context.Context, params database.ListCalendarEventsParams) ([]database.CalendarEvent, error) {
	var out []database.CalendarEvent
	for _, e := range s.events {
		if params.OwnerUserID.IsSet && (!e.OwnerUserID.IsSet || e.OwnerUserID.Val != params.OwnerUserID.Val) {
			continue
		}
		if params.StartBefore.IsSet && !e.StartTime.Before(params.StartBefore.Val) {
			continue
		}
		if params.EndAfter.IsSet && !e.EndTime.After(params.EndAfter.Val) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

type fakeMemberships struct {
	editors map[uuid.UUID]bool
}

func (m *fakeMemberships) HasEditAuthority(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	return m.editors[userID], nil
}

type fakeAuditor struct {
	events []audit.LogEventParams
}

func (a *fakeAuditor) LogEvent(ctx context.Context, params audit.LogEventParams) error {
	a.events = append(a.events, params)
	return nil
}

type eventFixture struct {
	store       *fakeEventStore
	memberships *fakeMemberships
	auditor     *fakeAuditor
	manager     event.Manager

	owner uuid.UUID
	start time.Time
}

func newEventFixture() *eventFixture {
	f := &eventFixture{
		store:   newFakeEventStore(),
		auditor: &fakeAuditor{},
		owner:   uuid.New(),
		start:   time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC),
	}
	f.memberships = &fakeMemberships{editors: map[uuid.UUID]bool{f.owner: true}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.manager = event.NewManager(logger, f.store, f.memberships, f.auditor)
	return f
}

func (f *eventFixture) personalParams() event.CreateParams {
	return event.CreateParams{
		OwnerUserID: util.Some(f.owner),
		Title:       "Checkup",
		StartTime:   f.start,
		EndTime:     f.start.Add(time.Hour),
		Creator:     f.owner,
	}
}

func TestCreate_PersonalEvent(t *testing.T) {
	f := newEventFixture()

	created, err := f.manager.Create(context.Background(), f.personalParams())
	require.NoError(t, err)

	assert.Equal(t, f.owner, created.OwnerUserID.Val)
	assert.False(t, created.OwnerGroupID.IsSet)
	assert.Equal(t, database.DetailVisibilityVisible, created.DetailVisibility, "detail defaults to visible")
	assert.Equal(t, f.owner, created.CreatedByUserID)
	require.Len(t, f.auditor.events, 1)
	assert.Equal(t, audit.EventTypeEventCreated, f.auditor.events[0].Type)
}

func TestCreate_OwnershipExclusivity(t *testing.T) {
	f := newEventFixture()

	params := f.personalParams()
	params.OwnerGroupID = util.Some(uuid.New())
	_, err := f.manager.Create(context.Background(), params)
	assert.ErrorIs(t, err, event.ErrInvalidOwnership, "both owners set")

	params = f.personalParams()
	params.OwnerUserID = util.None[uuid.UUID]()
	_, err = f.manager.Create(context.Background(), params)
	assert.ErrorIs(t, err, event.ErrInvalidOwnership, "no owner set")
}

func TestCreate_OnlyOwnCalendar(t *testing.T) {
	f := newEventFixture()

	params := f.personalParams()
	params.OwnerUserID = util.Some(uuid.New())
	_, err := f.manager.Create(context.Background(), params)
	assert.ErrorIs(t, err, event.ErrForbidden, "cannot create events in someone else's calendar")
}

func TestCreate_GroupEventNeedsEditAuthority(t *testing.T) {
	f := newEventFixture()
	groupID := uuid.New()

	params := event.CreateParams{
		OwnerGroupID: util.Some(groupID),
		Title:        "Family dinner",
		StartTime:    f.start,
		EndTime:      f.start.Add(2 * time.Hour),
		Creator:      uuid.New(),
	}
	_, err := f.manager.Create(context.Background(), params)
	assert.ErrorIs(t, err, event.ErrForbidden)

	params.Creator = f.owner
	created, err := f.manager.Create(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, groupID, created.OwnerGroupID.Val)
}

func TestCreate_InvalidTimeRange(t *testing.T) {
	f := newEventFixture()

	params := f.personalParams()
	params.EndTime = params.StartTime.Add(-time.Minute)
	_, err := f.manager.Create(context.Background(), params)
	assert.ErrorIs(t, err, event.ErrInvalidTimeRange)
}

func TestOwner(t *testing.T) {
	f := newEventFixture()

	created, err := f.manager.Create(context.Background(), f.personalParams())
	require.NoError(t, err)

	owner, err := f.manager.Owner(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, event.OwnerKindActor, owner.Kind)
	assert.Equal(t, f.owner, owner.ID)

	_, err = f.manager.Owner(context.Background(), uuid.New())
	assert.ErrorIs(t, err, database.ErrCalendarEventNotFound)
}

func TestUpdate(t *testing.T) {
	f := newEventFixture()

	created, err := f.manager.Create(context.Background(), f.personalParams())
	require.NoError(t, err)

	err = f.manager.Update(context.Background(), created.ID, event.UpdateParams{
		Title: util.Some("Renamed"),
	}, uuid.New())
	assert.ErrorIs(t, err, event.ErrForbidden)

	require.NoError(t, f.manager.Update(context.Background(), created.ID, event.UpdateParams{
		Title:            util.Some("Renamed"),
		DetailVisibility: util.Some(database.DetailVisibilityBusy),
	}, f.owner))

	updated, err := f.manager.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, database.DetailVisibilityBusy, updated.DetailVisibility)
}

func TestUpdate_RecheckedTimeRange(t *testing.T) {
	f := newEventFixture()

	created, err := f.manager.Create(context.Background(), f.personalParams())
	require.NoError(t, err)

	// Moving only the end before the existing start must fail.
	err = f.manager.Update(context.Background(), created.ID, event.UpdateParams{
		EndTime: util.Some(created.StartTime.Add(-time.Hour)),
	}, f.owner)
	assert.ErrorIs(t, err, event.ErrInvalidTimeRange)
}

func TestOwnEvents(t *testing.T) {
	f := newEventFixture()

	mine, err := f.manager.Create(context.Background(), f.personalParams())
	require.NoError(t, err)

	outside := f.personalParams()
	outside.StartTime = f.start.Add(72 * time.Hour)
	outside.EndTime = outside.StartTime.Add(time.Hour)
	_, err = f.manager.Create(context.Background(), outside)
	require.NoError(t, err)

	events, err := f.manager.OwnEvents(context.Background(), f.owner,
		util.Some(f.start.Add(-time.Hour)), util.Some(f.start.Add(24*time.Hour)))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, mine.ID, events[0].ID)

	events, err = f.manager.OwnEvents(context.Background(), uuid.New(),
		util.None[time.Time](), util.None[time.Time]())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestDelete(t *testing.T) {
	f := newEventFixture()

	created, err := f.manager.Create(context.Background(), f.personalParams())
	require.NoError(t, err)

	err = f.manager.Delete(context.Background(), created.ID, uuid.New())
	assert.ErrorIs(t, err, event.ErrForbidden)

	require.NoError(t, f.manager.Delete(context.Background(), created.ID, f.owner))

	_, err = f.manager.Get(context.Background(), created.ID)
	assert.ErrorIs(t, err, database.ErrCalendarEventNotFound)
}
