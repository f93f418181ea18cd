package visibility

import (
	"time"

	"calshare/internal/database"
	"calshare/internal/util"

	"github.com/google/uuid"
)

// BusyTitle is the sentinel title shown in place of redacted content.
const BusyTitle = "Busy"

// PublicEventView is the shape handed to callers. Attribution (CreatedBy,
// SourceRef) is populated only on the owner's own reads; Project strips it
// under every scope.
type PublicEventView struct {
	ID          uuid.UUID                `json:"id"`
	Scope       string                   `json:"scope"`
	Title       string                   `json:"title"`
	Description string                   `json:"description"`
	Location    string                   `json:"location"`
	EventType   string                   `json:"event_type"`
	Color       string                   `json:"color"`
	AllDay      bool                     `json:"all_day"`
	StartTime   time.Time                `json:"start_time"`
	EndTime     time.Time                `json:"end_time"`
	Busy        bool                     `json:"busy"`
	CreatedBy   util.Optional[uuid.UUID] `json:"created_by,omitempty"`
	SourceRef   util.Optional[string]    `json:"source_ref,omitempty"`
}

// NewView builds the unredacted view of an event, attribution included. Only
// the owner read path may return it without passing through Project.
func NewView(event database.CalendarEvent) PublicEventView {
	return PublicEventView{
		ID:          event.ID,
		Scope:       ScopeFull.String(),
		Title:       event.Title,
		Description: event.Description,
		Location:    event.Location,
		EventType:   event.EventType,
		Color:       event.Color,
		AllDay:      event.AllDay,
		StartTime:   event.StartTime,
		EndTime:     event.EndTime,
		Busy:        event.DetailVisibility == database.DetailVisibilityBusy,
		CreatedBy:   util.Some(event.CreatedByUserID),
		SourceRef:   event.SourceRef,
	}
}

// ProjectInsider renders full detail for a viewer inside the owning context
// (an active member of the owning group). The busy tag caps what sharing
// grants can reveal, not what the owning household sees, so no clamp applies;
// attribution still stays owner-only.
func ProjectInsider(view PublicEventView) PublicEventView {
	out := view
	out.Scope = ScopeFull.String()
	out.CreatedBy = util.None[uuid.UUID]()
	out.SourceRef = util.None[string]()
	return out
}

// Project redacts a view down to the given scope. It does not trust its
// input: a busy event is clamped to the busy block here again, even if the
// resolver (or a corrupt grant row) asked for more. Applying Project twice
// with the same scope yields the same view.
func Project(view PublicEventView, scope Scope) PublicEventView {
	if view.Busy && scope > ScopeBusyBlock {
		scope = ScopeBusyBlock
	}

	out := PublicEventView{
		ID:        view.ID,
		Scope:     scope.String(),
		AllDay:    view.AllDay,
		StartTime: view.StartTime,
		EndTime:   view.EndTime,
		Busy:      view.Busy,
	}

	switch scope {
	case ScopeFull:
		out.Title = view.Title
		out.Description = view.Description
		out.Location = view.Location
		out.EventType = view.EventType
		out.Color = view.Color
	case ScopeTitle:
		out.Title = view.Title
		out.Location = view.Location
	default:
		// date_only and busy_block expose the time range and nothing else.
		out.Title = BusyTitle
	}

	// Attribution never survives projection, full scope included.
	out.CreatedBy = util.None[uuid.UUID]()
	out.SourceRef = util.None[string]()

	return out
}
