// Package visibility holds the decision core of the sharing engine: given an
// event and everything persisted about the viewer's relationship to it,
// Resolve says whether the viewer sees the event and at which detail scope,
// and Project shapes the record accordingly. Both are pure functions; callers
// fetch rows, this package only decides.
package visibility

import (
	"calshare/internal/database"
	"calshare/internal/util"

	"github.com/google/uuid"
)

// Scope is the detail tier of a redacted view, ordered from least to most
// revealing. BusyBlock exposes only the time range.
type Scope int

const (
	ScopeBusyBlock Scope = iota
	ScopeDateOnly
	ScopeTitle
	ScopeFull
)

func (s Scope) String() string {
	switch s {
	case ScopeBusyBlock:
		return "busy_block"
	case ScopeDateOnly:
		return "date_only"
	case ScopeTitle:
		return "title"
	case ScopeFull:
		return "full"
	default:
		return "unknown"
	}
}

// ScopeFromProjection maps a stored projection scope to a resolver scope.
func ScopeFromProjection(s database.ProjectionScope) Scope {
	switch s {
	case database.ProjectionScopeFull:
		return ScopeFull
	case database.ProjectionScopeTitle:
		return ScopeTitle
	default:
		return ScopeDateOnly
	}
}

// Decision is the tagged result of a visibility check. Absence of access is a
// normal value, never an error; callers must go through Scope() so they
// cannot use a scope without having checked visibility.
type Decision struct {
	visible bool
	scope   Scope
}

func NotVisible() Decision {
	return Decision{}
}

func Visible(scope Scope) Decision {
	return Decision{visible: true, scope: scope}
}

func (d Decision) IsVisible() bool {
	return d.visible
}

// Scope panics when the decision is not visible; check IsVisible first.
func (d Decision) Scope() Scope {
	if !d.visible {
		panic("visibility: Scope called on a not-visible decision")
	}
	return d.scope
}

// ResolveInput carries the already-fetched records Resolve decides over.
// Projection and Agreement are the rows targeting the viewer, if any exist;
// their status is inspected here, so callers pass whatever row they found
// without pre-filtering.
type ResolveInput struct {
	Event    database.CalendarEvent
	ViewerID uuid.UUID

	// ViewerIsActiveGroupMember is the membership registry's answer for the
	// owning group. Ignored unless the event is group-owned.
	ViewerIsActiveGroupMember bool

	Projection util.Optional[database.EventProjection]
	Agreement  util.Optional[database.SharingAgreement]
}

// Resolve classifies the viewer's access to the event. The branch order is
// part of the contract: ownership dominates group membership, which dominates
// event-level projections, which dominate relationship-level agreements.
//
// An event tagged busy never reveals more than its time block to anyone who
// is not the owner or an active member of the owning group, no matter what
// scope a projection row claims. The clamp lives here AND in Project so a bad
// grant row cannot leak content.
func Resolve(in ResolveInput) Decision {
	event := in.Event

	// Actor ownership.
	if event.OwnerUserID.IsSet && event.OwnerUserID.Val == in.ViewerID {
		return Visible(ScopeFull)
	}

	// Group ownership: active members see group events in full. There is no
	// partial-detail mode for group events.
	if event.OwnerGroupID.IsSet {
		if in.ViewerIsActiveGroupMember {
			return Visible(ScopeFull)
		}
		// A group-owned event can still be projected to an outsider.
	}

	busy := event.DetailVisibility == database.DetailVisibilityBusy

	// Event-level projection, accepted only.
	if in.Projection.IsSet {
		p := in.Projection.Val
		if p.EventID == event.ID && p.TargetUserID == in.ViewerID && p.Status == database.ProjectionStatusAccepted {
			scope := ScopeFromProjection(p.Scope)
			if busy {
				scope = ScopeBusyBlock
			}
			return Visible(scope)
		}
	}

	// Relationship-level agreement, active only, personal events only: a
	// group-owned event has no actor-owner for the agreement to hang off.
	if in.Agreement.IsSet && event.OwnerUserID.IsSet {
		a := in.Agreement.Val
		if a.OwnerUserID == event.OwnerUserID.Val && a.ViewerUserID == in.ViewerID && a.Status == database.AgreementStatusActive {
			if busy {
				return Visible(ScopeBusyBlock)
			}
			return Visible(ScopeFull)
		}
	}

	return NotVisible()
}
