package calendar_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"calshare/internal/calendar"
	"calshare/internal/database"
	"calshare/internal/util"
	"calshare/internal/visibility"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReadStore struct {
	events      map[uuid.UUID]database.CalendarEvent
	projections []database.EventProjection
	agreements  []database.SharingAgreement
}

func newFakeReadStore() *fakeReadStore {
	return &fakeReadStore{events: make(map[uuid.UUID]database.CalendarEvent)}
}

func (s *fakeReadStore) GetCalendarEventByID(ctx context.Context, id uuid.UUID) (database.CalendarEvent, error) {
	e, ok := s.events[id]
	if !ok {
		return e, database.ErrCalendarEventNotFound
	}
	return e, nil
}

// ListCandidateEvents returns every stored event inside the window; the
// manager is responsible for deciding what the viewer actually sees.
func (s *fakeReadStore) ListCandidateEvents(ctx context.Context, params database.ListCandidateEventsParams) ([]database.CalendarEvent, error) {
	var out []database.CalendarEvent
	for _, e := range s.events {
		if e.StartTime.Before(params.WindowEnd) && e.EndTime.After(params.WindowStart) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeReadStore) GetAcceptedProjection(ctx context.Context, eventID, targetUserID uuid.UUID) (database.EventProjection, error) {
	for _, p := range s.projections {
		if p.EventID == eventID && p.TargetUserID == targetUserID && p.Status == database.ProjectionStatusAccepted {
			return p, nil
		}
	}
	return database.EventProjection{}, database.ErrProjectionNotFound
}

func (s *fakeReadStore) GetSharingAgreementBetween(ctx context.Context, ownerUserID, viewerUserID uuid.UUID) (database.SharingAgreement, error) {
	for _, a := range s.agreements {
		if a.OwnerUserID == ownerUserID && a.ViewerUserID == viewerUserID {
			return a, nil
		}
	}
	return database.SharingAgreement{}, database.ErrSharingAgreementNotFound
}

type fakeMemberLookup struct {
	active map[uuid.UUID]map[uuid.UUID]bool
}

func (m *fakeMemberLookup) IsActiveMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	return m.active[groupID][userID], nil
}

type readFixture struct {
	store   *fakeReadStore
	members *fakeMemberLookup
	manager calendar.Manager

	owner  uuid.UUID
	viewer uuid.UUID
	start  time.Time
}

func newReadFixture() *readFixture {
	f := &readFixture{
		store:   newFakeReadStore(),
		members: &fakeMemberLookup{active: make(map[uuid.UUID]map[uuid.UUID]bool)},
		owner:   uuid.New(),
		viewer:  uuid.New(),
		start:   time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.manager = calendar.NewManager(logger, f.store, f.members)
	return f
}

func (f *readFixture) window() calendar.VisibleEventsParams {
	return calendar.VisibleEventsParams{
		ViewerID:    f.viewer,
		WindowStart: f.start.Add(-24 * time.Hour),
		WindowEnd:   f.start.Add(24 * time.Hour),
	}
}

func (f *readFixture) addPersonalEvent(detail database.DetailVisibility, offset time.Duration) database.CalendarEvent {
	e := database.CalendarEvent{
		ID:               uuid.New(),
		OwnerUserID:      util.Some(f.owner),
		Title:            "Therapy",
		Description:      "weekly session",
		Location:         "Room 4",
		DetailVisibility: detail,
		StartTime:        f.start.Add(offset),
		EndTime:          f.start.Add(offset + time.Hour),
		CreatedByUserID:  f.owner,
	}
	f.store.events[e.ID] = e
	return e
}

func (f *readFixture) addGroupEvent(groupID uuid.UUID, detail database.DetailVisibility) database.CalendarEvent {
	e := database.CalendarEvent{
		ID:               uuid.New(),
		OwnerGroupID:     util.Some(groupID),
		Title:            "Family dinner",
		Description:      "at grandma's",
		DetailVisibility: detail,
		StartTime:        f.start,
		EndTime:          f.start.Add(2 * time.Hour),
		CreatedByUserID:  f.owner,
	}
	f.store.events[e.ID] = e
	return e
}

func (f *readFixture) grantAgreement(status database.AgreementStatus) *database.SharingAgreement {
	f.store.agreements = append(f.store.agreements, database.SharingAgreement{
		ID:           uuid.New(),
		OwnerUserID:  f.owner,
		ViewerUserID: f.viewer,
		Permission:   database.AgreementPermissionRead,
		Status:       status,
		Version:      1,
	})
	return &f.store.agreements[len(f.store.agreements)-1]
}

func (f *readFixture) grantProjection(eventID uuid.UUID, scope database.ProjectionScope, status database.ProjectionStatus) *database.EventProjection {
	f.store.projections = append(f.store.projections, database.EventProjection{
		ID:           uuid.New(),
		EventID:      eventID,
		TargetUserID: f.viewer,
		Scope:        scope,
		Status:       status,
		Version:      1,
	})
	return &f.store.projections[len(f.store.projections)-1]
}

func TestVisibleEvents_OwnerSeesOwnWithAttribution(t *testing.T) {
	f := newReadFixture()
	event := f.addPersonalEvent(database.DetailVisibilityBusy, 0)

	params := f.window()
	params.ViewerID = f.owner
	views, err := f.manager.VisibleEvents(context.Background(), params)
	require.NoError(t, err)

	require.Len(t, views, 1)
	assert.Equal(t, event.Title, views[0].Title, "the owner is never clamped by their own busy tag")
	assert.Equal(t, event.Description, views[0].Description)
	assert.True(t, views[0].CreatedBy.IsSet)
	assert.Equal(t, f.owner, views[0].CreatedBy.Val)
}

func TestVisibleEvents_StrangerSeesNothing(t *testing.T) {
	f := newReadFixture()
	f.addPersonalEvent(database.DetailVisibilityVisible, 0)

	views, err := f.manager.VisibleEvents(context.Background(), f.window())
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestVisibleEvents_GroupMemberSeesFull(t *testing.T) {
	f := newReadFixture()
	groupID := uuid.New()
	f.members.active[groupID] = map[uuid.UUID]bool{f.viewer: true}

	// A busy tag does not hide group events from the owning group's members.
	event := f.addGroupEvent(groupID, database.DetailVisibilityBusy)

	views, err := f.manager.VisibleEvents(context.Background(), f.window())
	require.NoError(t, err)

	require.Len(t, views, 1)
	assert.Equal(t, event.Title, views[0].Title)
	assert.Equal(t, event.Description, views[0].Description)
	assert.Equal(t, "full", views[0].Scope)
	assert.False(t, views[0].CreatedBy.IsSet, "attribution is owner-only")
}

func TestVisibleEvents_PendingMemberSeesNothing(t *testing.T) {
	f := newReadFixture()
	groupID := uuid.New()
	f.addGroupEvent(groupID, database.DetailVisibilityVisible)

	views, err := f.manager.VisibleEvents(context.Background(), f.window())
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestVisibleEvents_ActiveAgreement(t *testing.T) {
	f := newReadFixture()
	full := f.addPersonalEvent(database.DetailVisibilityVisible, 0)
	busy := f.addPersonalEvent(database.DetailVisibilityBusy, 3*time.Hour)
	f.grantAgreement(database.AgreementStatusActive)

	views, err := f.manager.VisibleEvents(context.Background(), f.window())
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, full.ID, views[0].ID)
	assert.Equal(t, full.Title, views[0].Title)
	assert.Equal(t, "full", views[0].Scope)

	assert.Equal(t, busy.ID, views[1].ID)
	assert.Equal(t, visibility.BusyTitle, views[1].Title)
	assert.Equal(t, "busy_block", views[1].Scope)
	assert.Equal(t, busy.StartTime, views[1].StartTime)
	assert.Equal(t, busy.EndTime, views[1].EndTime)
}

func TestVisibleEvents_PendingAgreementGrantsNothing(t *testing.T) {
	f := newReadFixture()
	f.addPersonalEvent(database.DetailVisibilityVisible, 0)
	f.grantAgreement(database.AgreementStatusPending)

	views, err := f.manager.VisibleEvents(context.Background(), f.window())
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestVisibleEvents_ProjectionScopeClampedByBusy(t *testing.T) {
	f := newReadFixture()
	event := f.addPersonalEvent(database.DetailVisibilityBusy, 0)
	f.grantProjection(event.ID, database.ProjectionScopeFull, database.ProjectionStatusAccepted)

	views, err := f.manager.VisibleEvents(context.Background(), f.window())
	require.NoError(t, err)

	require.Len(t, views, 1)
	assert.Equal(t, visibility.BusyTitle, views[0].Title, "an accepted full projection cannot out-reveal the busy tag")
	assert.Empty(t, views[0].Description)
	assert.Equal(t, "busy_block", views[0].Scope)
}

func TestVisibleEvents_TitleProjection(t *testing.T) {
	f := newReadFixture()
	event := f.addPersonalEvent(database.DetailVisibilityVisible, 0)
	f.grantProjection(event.ID, database.ProjectionScopeTitle, database.ProjectionStatusAccepted)

	views, err := f.manager.VisibleEvents(context.Background(), f.window())
	require.NoError(t, err)

	require.Len(t, views, 1)
	assert.Equal(t, event.Title, views[0].Title)
	assert.Equal(t, event.Location, views[0].Location)
	assert.Empty(t, views[0].Description)
}

func TestVisibleEvents_RevocationIsImmediate(t *testing.T) {
	f := newReadFixture()
	f.addPersonalEvent(database.DetailVisibilityVisible, 0)
	agreement := f.grantAgreement(database.AgreementStatusActive)

	views, err := f.manager.VisibleEvents(context.Background(), f.window())
	require.NoError(t, err)
	require.Len(t, views, 1)

	// Nothing is cached: the very next query after a revoke comes up empty.
	agreement.Status = database.AgreementStatusRevoked
	views, err = f.manager.VisibleEvents(context.Background(), f.window())
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestVisibleEvents_SortedByStartTime(t *testing.T) {
	f := newReadFixture()
	later := f.addPersonalEvent(database.DetailVisibilityVisible, 5*time.Hour)
	earlier := f.addPersonalEvent(database.DetailVisibilityVisible, -2*time.Hour)
	f.grantAgreement(database.AgreementStatusActive)

	views, err := f.manager.VisibleEvents(context.Background(), f.window())
	require.NoError(t, err)

	require.Len(t, views, 2)
	assert.Equal(t, earlier.ID, views[0].ID)
	assert.Equal(t, later.ID, views[1].ID)
}

func TestVisibleEvents_InvalidWindow(t *testing.T) {
	f := newReadFixture()

	params := f.window()
	params.WindowStart, params.WindowEnd = params.WindowEnd, params.WindowStart
	_, err := f.manager.VisibleEvents(context.Background(), params)
	assert.ErrorIs(t, err, calendar.ErrInvalidWindow)
}

func TestVisibleEvent_SingleRead(t *testing.T) {
	f := newReadFixture()
	event := f.addPersonalEvent(database.DetailVisibilityVisible, 0)

	// Invisible and missing are the same error, so existence does not leak.
	_, err := f.manager.VisibleEvent(context.Background(), event.ID, f.viewer)
	assert.ErrorIs(t, err, database.ErrCalendarEventNotFound)

	_, err = f.manager.VisibleEvent(context.Background(), uuid.New(), f.viewer)
	assert.ErrorIs(t, err, database.ErrCalendarEventNotFound)

	f.grantAgreement(database.AgreementStatusActive)
	view, err := f.manager.VisibleEvent(context.Background(), event.ID, f.viewer)
	require.NoError(t, err)
	assert.Equal(t, event.Title, view.Title)
}
