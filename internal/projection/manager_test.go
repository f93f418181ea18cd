package projection_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"calshare/internal/audit"
	"calshare/internal/database"
	"calshare/internal/notifications"
	"calshare/internal/projection"
	"calshare/internal/util"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProjectionStore struct {
	events      map[uuid.UUID]database.CalendarEvent
	projections map[uuid.UUID]database.EventProjection
}

func newFakeProjectionStore() *fakeProjectionStore {
	return &fakeProjectionStore{
		events:      make(map[uuid.UUID]database.CalendarEvent),
		projections: make(map[uuid.UUID]database.EventProjection),
	}
}

func (s *fakeProjectionStore) GetCalendarEventByID(ctx context.Context, id uuid.UUID) (database.CalendarEvent, error) {
	event, ok := s.events[id]
	if !ok {
		return event, database.ErrCalendarEventNotFound
	}
	return event, nil
}

func (s *fakeProjectionStore) CreateEventProjection(ctx context.Context, params database.CreateEventProjectionParams) (database.EventProjection, error) {
	p := database.EventProjection{
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
	s.projections[p.ID] = p
	return p, nil
}

func (s *fakeProjectionStore) GetEventProjectionByID(ctx context.Context, id uuid.UUID) (database.EventProjection, error) {
	p, ok := s.projections[id]
	if !ok {
		return p, database.ErrProjectionNotFound
	}
	return p, nil
}

func (s *fakeProjectionStore) GetEventProjectionForTarget(ctx context.Context, params database.GetEventProjectionForTargetParams) (database.EventProjection, error) {
	for _, p := range s.projections {
		if p.EventID == params.EventID && p.TargetUserID == params.TargetUserID &&
			p.TargetGroupID.IsSet == params.TargetGroupID.IsSet &&
			(!p.TargetGroupID.IsSet || p.TargetGroupID.Val == params.TargetGroupID.Val) {
			return p, nil
		}
	}
	return database.EventProjection{}, database.ErrProjectionNotFound
}

func (s *fakeProjectionStore) ListEventProjections(ctx context.Context, params database.ListEventProjectionsParams) ([]database.EventProjection, error) {
	var out []database.EventProjection
	for _, p := range s.projections {
		if params.EventID.IsSet && p.EventID != params.EventID.Val {
			continue
		}
		if params.TargetUserID.IsSet && p.TargetUserID != params.TargetUserID.Val {
			continue
		}
		if params.Status.IsSet && p.Status != params.Status.Val {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *fakeProjectionStore) SetEventProjectionStatus(ctx context.Context, params database.SetEventProjectionStatusParams) (database.EventProjection, error) {
	p, ok := s.projections[params.ID]
	if !ok {
		return p, database.ErrProjectionNotFound
	}
	if p.Version != params.Version {
		return p, database.ErrVersionConflict
	}
	p.Status = params.Status
	p.Version++
	s.projections[params.ID] = p
	return p, nil
}

func (s *fakeProjectionStore) ResetEventProjection(ctx context.Context, params database.ResetEventProjectionParams) (database.EventProjection, error) {
	p, ok := s.projections[params.ID]
	if !ok {
		return p, database.ErrProjectionNotFound
	}
	if p.Version != params.Version {
		return p, database.ErrVersionConflict
	}
	p.Status = params.Status
	p.Scope = params.Scope
	p.Version++
	s.projections[params.ID] = p
	return p, nil
}

// fakeEvents treats the recorded owner as the only editor.
type fakeEvents struct {
	editors map[uuid.UUID]bool
}

func (e *fakeEvents) CanEdit(ctx context.Context, event database.CalendarEvent, actor uuid.UUID) (bool, error) {
	return e.editors[actor], nil
}

type fakeAuditor struct {
	events []audit.LogEventParams
}

func (a *fakeAuditor) LogEvent(ctx context.Context, params audit.LogEventParams) error {
	a.events = append(a.events, params)
	return nil
}

type fakeNotifier struct {
	sent []notifications.NotifyParams
}

func (n *fakeNotifier) Notify(ctx context.Context, params notifications.NotifyParams) error {
	n.sent = append(n.sent, params)
	return nil
}

type fakeMirror struct {
	changes []database.EventProjection
}

func (m *fakeMirror) ProjectionChanged(ctx context.Context, p database.EventProjection) error {
	m.changes = append(m.changes, p)
	return nil
}

type projectionFixture struct {
	store    *fakeProjectionStore
	editors  *fakeEvents
	auditor  *fakeAuditor
	notifier *fakeNotifier
	mirror   *fakeMirror
	manager  projection.Manager

	owner  uuid.UUID
	target uuid.UUID
	event  database.CalendarEvent
}

func newProjectionFixture() *projectionFixture {
	f := &projectionFixture{
		store:    newFakeProjectionStore(),
		auditor:  &fakeAuditor{},
		notifier: &fakeNotifier{},
		mirror:   &fakeMirror{},
		owner:    uuid.New(),
		target:   uuid.New(),
	}
	f.editors = &fakeEvents{editors: map[uuid.UUID]bool{f.owner: true}}

	start := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	f.event = database.CalendarEvent{
		ID:              uuid.New(),
		OwnerUserID:     util.Some(f.owner),
		Title:           "Dentist",
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		CreatedByUserID: f.owner,
	}
	f.store.events[f.event.ID] = f.event

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.manager = projection.NewManager(logger, f.store, f.editors, f.auditor, f.notifier, f.mirror)
	return f
}

func (f *projectionFixture) create(t *testing.T, suggested bool) database.EventProjection {
	t.Helper()
	p, err := f.manager.Create(context.Background(), projection.CreateParams{
		EventID:      f.event.ID,
		TargetUserID: f.target,
		Scope:        database.ProjectionScopeTitle,
		Suggested:    suggested,
		Creator:      f.owner,
	})
	require.NoError(t, err)
	return p
}

func TestCreate_PendingAsksForConsent(t *testing.T) {
	f := newProjectionFixture()

	p := f.create(t, false)
	assert.Equal(t, database.ProjectionStatusPending, p.Status)
	assert.Equal(t, database.ProjectionScopeTitle, p.Scope)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, f.target, f.notifier.sent[0].UserID)
	assert.Equal(t, notifications.NotificationTypeProjectionInvite, f.notifier.sent[0].Type)
}

func TestCreate_SuggestedIsSilent(t *testing.T) {
	f := newProjectionFixture()

	p := f.create(t, true)
	assert.Equal(t, database.ProjectionStatusSuggested, p.Status)
	assert.Empty(t, f.notifier.sent, "a suggestion does not notify the target")
}

func TestCreate_SelfProjectionRejected(t *testing.T) {
	f := newProjectionFixture()

	_, err := f.manager.Create(context.Background(), projection.CreateParams{
		EventID:      f.event.ID,
		TargetUserID: f.owner,
		Scope:        database.ProjectionScopeFull,
		Creator:      f.owner,
	})
	assert.ErrorIs(t, err, projection.ErrSelfProjection)
}

func TestCreate_RequiresEditAuthority(t *testing.T) {
	f := newProjectionFixture()
	stranger := uuid.New()

	_, err := f.manager.Create(context.Background(), projection.CreateParams{
		EventID:      f.event.ID,
		TargetUserID: f.target,
		Scope:        database.ProjectionScopeFull,
		Creator:      stranger,
	})
	assert.ErrorIs(t, err, projection.ErrForbidden)
}

func TestCreate_LiveRowIsNoOp(t *testing.T) {
	f := newProjectionFixture()

	first := f.create(t, false)
	second := f.create(t, false)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.notifier.sent, 1)
}

func TestCreate_DeclinedRowIsReset(t *testing.T) {
	f := newProjectionFixture()

	p := f.create(t, false)
	_, err := f.manager.Respond(context.Background(), p.ID, f.target, false)
	require.NoError(t, err)

	again, err := f.manager.Create(context.Background(), projection.CreateParams{
		EventID:      f.event.ID,
		TargetUserID: f.target,
		Scope:        database.ProjectionScopeFull,
		Creator:      f.owner,
	})
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID, "declined row is reused for the new ask")
	assert.Equal(t, database.ProjectionStatusPending, again.Status)
	assert.Equal(t, database.ProjectionScopeFull, again.Scope)
}

func TestPromote(t *testing.T) {
	f := newProjectionFixture()

	p := f.create(t, true)

	_, err := f.manager.Promote(context.Background(), p.ID, f.target)
	assert.ErrorIs(t, err, projection.ErrForbidden, "target cannot promote a suggestion")

	promoted, err := f.manager.Promote(context.Background(), p.ID, f.owner)
	require.NoError(t, err)
	assert.Equal(t, database.ProjectionStatusPending, promoted.Status)
	require.Len(t, f.notifier.sent, 1, "promotion sends the consent ask")

	_, err = f.manager.Promote(context.Background(), promoted.ID, f.owner)
	assert.ErrorIs(t, err, projection.ErrInvalidTransition, "only suggested rows promote")
}

func TestRespond(t *testing.T) {
	f := newProjectionFixture()

	p := f.create(t, false)

	_, err := f.manager.Respond(context.Background(), p.ID, f.owner, true)
	assert.ErrorIs(t, err, projection.ErrForbidden, "only the target responds")

	accepted, err := f.manager.Respond(context.Background(), p.ID, f.target, true)
	require.NoError(t, err)
	assert.Equal(t, database.ProjectionStatusAccepted, accepted.Status)

	_, err = f.manager.Respond(context.Background(), p.ID, f.target, false)
	assert.ErrorIs(t, err, projection.ErrInvalidTransition, "responses only apply to pending rows")
}

func TestRevoke(t *testing.T) {
	f := newProjectionFixture()

	p := f.create(t, false)
	accepted, err := f.manager.Respond(context.Background(), p.ID, f.target, true)
	require.NoError(t, err)

	stranger := uuid.New()
	_, err = f.manager.Revoke(context.Background(), accepted.ID, stranger)
	assert.ErrorIs(t, err, projection.ErrForbidden)

	revoked, err := f.manager.Revoke(context.Background(), accepted.ID, f.owner)
	require.NoError(t, err)
	assert.Equal(t, database.ProjectionStatusRevoked, revoked.Status)

	var revocationNotices int
	for _, n := range f.notifier.sent {
		if n.Type == notifications.NotificationTypeAccessRevoked {
			revocationNotices++
			assert.Equal(t, f.target, n.UserID)
		}
	}
	assert.Equal(t, 1, revocationNotices)

	again, err := f.manager.Revoke(context.Background(), accepted.ID, f.owner)
	require.NoError(t, err)
	assert.Equal(t, revoked.Version, again.Version, "revoking twice is a no-op")

	assert.Equal(t, database.ProjectionStatusRevoked, f.mirror.changes[len(f.mirror.changes)-1].Status)
}
