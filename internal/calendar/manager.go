// Package calendar is the read side of the engine: it enumerates candidate
// events for a viewer and window, asks the visibility resolver to classify
// each, and returns redacted views. It never caches grant state; every call
// re-reads storage so a revocation is observed by the very next query.
package calendar

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"calshare/internal/database"
	"calshare/internal/util"
	"calshare/internal/visibility"

	"github.com/google/uuid"
)

var ErrInvalidWindow = errors.New("calendar: window end precedes window start")

type Store interface {
	GetCalendarEventByID(ctx context.Context, id uuid.UUID) (database.CalendarEvent, error)
	ListCandidateEvents(ctx context.Context, params database.ListCandidateEventsParams) ([]database.CalendarEvent, error)
	GetAcceptedProjection(ctx context.Context, eventID, targetUserID uuid.UUID) (database.EventProjection, error)
	GetSharingAgreementBetween(ctx context.Context, ownerUserID, viewerUserID uuid.UUID) (database.SharingAgreement, error)
}

type Memberships interface {
	IsActiveMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
}

type Manager struct {
	logger      *slog.Logger
	store       Store
	memberships Memberships
}

func NewManager(logger *slog.Logger, store Store, memberships Memberships) Manager {
	return Manager{logger: logger, store: store, memberships: memberships}
}

type VisibleEventsParams struct {
	ViewerID    uuid.UUID
	WindowStart time.Time
	WindowEnd   time.Time
}

// VisibleEvents returns every event in the window the viewer may see, each
// redacted to its resolved scope and sorted by start time. Candidates the
// resolver rejects are skipped silently; lack of access is not an error.
func (m *Manager) VisibleEvents(ctx context.Context, params VisibleEventsParams) ([]visibility.PublicEventView, error) {
	if params.WindowEnd.Before(params.WindowStart) {
		return nil, ErrInvalidWindow
	}

	candidates, err := m.store.ListCandidateEvents(ctx, database.ListCandidateEventsParams{
		ViewerUserID: params.ViewerID,
		WindowStart:  params.WindowStart,
		WindowEnd:    params.WindowEnd,
	})
	if err != nil {
		return nil, err
	}

	views := make([]visibility.PublicEventView, 0, len(candidates))
	for _, candidate := range candidates {
		view, visible, err := m.viewFor(ctx, candidate, params.ViewerID)
		if err != nil {
			return nil, err
		}
		if visible {
			views = append(views, view)
		}
	}

	sort.Slice(views, func(i, j int) bool {
		return views[i].StartTime.Before(views[j].StartTime)
	})

	return views, nil
}

// VisibleEvent resolves a single event for a viewer. An event the viewer may
// not see reports ErrCalendarEventNotFound, indistinguishable from a missing
// row, so existence does not leak through the error.
func (m *Manager) VisibleEvent(ctx context.Context, eventID, viewerID uuid.UUID) (visibility.PublicEventView, error) {
	event, err := m.store.GetCalendarEventByID(ctx, eventID)
	if err != nil {
		return visibility.PublicEventView{}, err
	}

	view, visible, err := m.viewFor(ctx, event, viewerID)
	if err != nil {
		return visibility.PublicEventView{}, err
	}
	if !visible {
		return visibility.PublicEventView{}, database.ErrCalendarEventNotFound
	}

	return view, nil
}

func (m *Manager) viewFor(ctx context.Context, candidate database.CalendarEvent, viewerID uuid.UUID) (visibility.PublicEventView, bool, error) {
	// The actor-owner bypasses redaction entirely and keeps attribution.
	if candidate.OwnerUserID.IsSet && candidate.OwnerUserID.Val == viewerID {
		return visibility.NewView(candidate), true, nil
	}

	input := visibility.ResolveInput{
		Event:    candidate,
		ViewerID: viewerID,
	}

	if candidate.OwnerGroupID.IsSet {
		active, err := m.memberships.IsActiveMember(ctx, candidate.OwnerGroupID.Val, viewerID)
		if err != nil {
			return visibility.PublicEventView{}, false, err
		}
		if active {
			// Members of the owning group see group events in full; the busy
			// clamp only caps sharing grants, not the owning context.
			return visibility.ProjectInsider(visibility.NewView(candidate)), true, nil
		}
	}

	projection, err := m.store.GetAcceptedProjection(ctx, candidate.ID, viewerID)
	switch {
	case err == nil:
		input.Projection = util.Some(projection)
	case errors.Is(err, database.ErrProjectionNotFound):
	default:
		return visibility.PublicEventView{}, false, err
	}

	if candidate.OwnerUserID.IsSet {
		agreement, err := m.store.GetSharingAgreementBetween(ctx, candidate.OwnerUserID.Val, viewerID)
		switch {
		case err == nil:
			input.Agreement = util.Some(agreement)
		case errors.Is(err, database.ErrSharingAgreementNotFound):
		default:
			return visibility.PublicEventView{}, false, err
		}
	}

	decision := visibility.Resolve(input)
	if !decision.IsVisible() {
		return visibility.PublicEventView{}, false, nil
	}

	return visibility.Project(visibility.NewView(candidate), decision.Scope()), true, nil
}
