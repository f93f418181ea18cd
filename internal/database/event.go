package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"calshare/internal/util"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type DetailVisibility string

const (
	DetailVisibilityVisible DetailVisibility = "visible"
	DetailVisibilityBusy    DetailVisibility = "busy"
)

// CalendarEvent is owned by exactly one of OwnerUserID or OwnerGroupID. The
// schema enforces this with a CHECK constraint; CreateCalendarEvent validates
// it again before touching the pool.
type CalendarEvent struct {
	ID               uuid.UUID
	OwnerUserID      util.Optional[uuid.UUID]
	OwnerGroupID     util.Optional[uuid.UUID]
	Title            string
	Description      string
	Location         string
	EventType        string
	Color            string
	AllDay           bool
	DetailVisibility DetailVisibility
	StartTime        time.Time
	EndTime          time.Time
	CreatedByUserID  uuid.UUID
	SourceRef        util.Optional[string]
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

const calendarEventColumns = `id, owner_user_id, owner_group_id, title, description, location, event_type, color, all_day, detail_visibility, start_time, end_time, created_by_user_id, source_ref, created_at, updated_at`

func scanCalendarEvent(row pgx.Row) (CalendarEvent, error) {
	var e CalendarEvent
	err := row.Scan(&e.ID, &e.OwnerUserID, &e.OwnerGroupID, &e.Title, &e.Description, &e.Location,
		&e.EventType, &e.Color, &e.AllDay, &e.DetailVisibility, &e.StartTime, &e.EndTime,
		&e.CreatedByUserID, &e.SourceRef, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

type CreateCalendarEventParams struct {
	OwnerUserID      util.Optional[uuid.UUID]
	OwnerGroupID     util.Optional[uuid.UUID]
	Title            string
	Description      string
	Location         string
	EventType        string
	Color            string
	AllDay           bool
	DetailVisibility DetailVisibility
	StartTime        time.Time
	EndTime          time.Time
	CreatedByUserID  uuid.UUID
	SourceRef        util.Optional[string]
}

func (db *Database) CreateCalendarEvent(ctx context.Context, params CreateCalendarEventParams) (CalendarEvent, error) {
	event := CalendarEvent{
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
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}

	if _, err := db.Pool.Exec(ctx, `INSERT INTO tbl_calendar_event (`+calendarEventColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		event.ID, event.OwnerUserID, event.OwnerGroupID, event.Title, event.Description, event.Location,
		event.EventType, event.Color, event.AllDay, event.DetailVisibility, event.StartTime, event.EndTime,
		event.CreatedByUserID, event.SourceRef, event.CreatedAt, event.UpdatedAt); err != nil {
		return event, fmt.Errorf("database: failed to insert calendar event: %w", err)
	}
	return event, nil
}

func (db *Database) GetCalendarEventByID(ctx context.Context, id uuid.UUID) (CalendarEvent, error) {
	event, err := scanCalendarEvent(db.Pool.QueryRow(ctx, `SELECT `+calendarEventColumns+` FROM tbl_calendar_event WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event, ErrCalendarEventNotFound
		}
		return event, fmt.Errorf("database: failed to scan calendar event: %w", err)
	}
	return event, nil
}

type UpdateCalendarEventParams struct {
	Title            util.Optional[string]
	Description      util.Optional[string]
	Location         util.Optional[string]
	EventType        util.Optional[string]
	Color            util.Optional[string]
	AllDay           util.Optional[bool]
	DetailVisibility util.Optional[DetailVisibility]
	StartTime        util.Optional[time.Time]
	EndTime          util.Optional[time.Time]
}

func (db *Database) UpdateCalendarEventByID(ctx context.Context, id uuid.UUID, params UpdateCalendarEventParams) error {
	var query strings.Builder
	query.WriteString(`UPDATE tbl_calendar_event SET `)
	var args []any
	argNum := 1

	appendSet := func(column string, value any) {
		query.WriteString(fmt.Sprintf("%s = $%d, ", column, argNum))
		args = append(args, value)
		argNum++
	}

	if params.Title.IsSet {
		appendSet("title", params.Title.Val)
	}
	if params.Description.IsSet {
		appendSet("description", params.Description.Val)
	}
	if params.Location.IsSet {
		appendSet("location", params.Location.Val)
	}
	if params.EventType.IsSet {
		appendSet("event_type", params.EventType.Val)
	}
	if params.Color.IsSet {
		appendSet("color", params.Color.Val)
	}
	if params.AllDay.IsSet {
		appendSet("all_day", params.AllDay.Val)
	}
	if params.DetailVisibility.IsSet {
		appendSet("detail_visibility", params.DetailVisibility.Val)
	}
	if params.StartTime.IsSet {
		appendSet("start_time", params.StartTime.Val)
	}
	if params.EndTime.IsSet {
		appendSet("end_time", params.EndTime.Val)
	}

	query.WriteString(fmt.Sprintf("updated_at = $%d WHERE id = $%d", argNum, argNum+1))
	args = append(args, time.Now().UTC(), id)

	tag, err := db.Pool.Exec(ctx, query.String(), args...)
	if err != nil {
		return fmt.Errorf("database: failed to update calendar event (id=%s): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCalendarEventNotFound
	}
	return nil
}

// DeleteCalendarEventByID removes the event. Dependent projections go with it
// through the ON DELETE CASCADE constraint on tbl_event_projection.
func (db *Database) DeleteCalendarEventByID(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM tbl_calendar_event WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("database: failed to delete calendar event (id=%s): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCalendarEventNotFound
	}
	return nil
}

type ListCalendarEventsParams struct {
	OwnerUserID  util.Optional[uuid.UUID]
	OwnerGroupID util.Optional[uuid.UUID]
	StartBefore  util.Optional[time.Time]
	EndAfter     util.Optional[time.Time]
}

func (db *Database) ListCalendarEvents(ctx context.Context, params ListCalendarEventsParams) ([]CalendarEvent, error) {
	var query strings.Builder
	query.WriteString(`SELECT ` + calendarEventColumns + ` FROM tbl_calendar_event WHERE 1=1`)
	var args []any
	argNum := 1

	if params.OwnerUserID.IsSet {
		query.WriteString(fmt.Sprintf(" AND owner_user_id = $%d", argNum))
		args = append(args, params.OwnerUserID.Val)
		argNum++
	}
	if params.OwnerGroupID.IsSet {
		query.WriteString(fmt.Sprintf(" AND owner_group_id = $%d", argNum))
		args = append(args, params.OwnerGroupID.Val)
		argNum++
	}
	if params.StartBefore.IsSet {
		query.WriteString(fmt.Sprintf(" AND start_time < $%d", argNum))
		args = append(args, params.StartBefore.Val)
		argNum++
	}
	if params.EndAfter.IsSet {
		query.WriteString(fmt.Sprintf(" AND end_time > $%d", argNum))
		args = append(args, params.EndAfter.Val)
		argNum++
	}

	query.WriteString(" ORDER BY start_time ASC")

	rows, err := db.Pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list calendar events: %w", err)
	}
	defer rows.Close()

	var events []CalendarEvent
	for rows.Next() {
		event, err := scanCalendarEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("database: failed to scan calendar event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate calendar events: %w", err)
	}
	return events, nil
}

type ListCandidateEventsParams struct {
	ViewerUserID uuid.UUID
	WindowStart  time.Time
	WindowEnd    time.Time
}

// ListCandidateEvents returns every event in the window that the viewer might
// be allowed to see: events they own, events owned by groups where they hold
// an active membership, events with an accepted projection targeting them, and
// events whose owner has an active sharing agreement with them. The visibility
// resolver makes the final call per event; this query only narrows the set.
func (db *Database) ListCandidateEvents(ctx context.Context, params ListCandidateEventsParams) ([]CalendarEvent, error) {
	query := `SELECT DISTINCT e.id, e.owner_user_id, e.owner_group_id, e.title, e.description, e.location, e.event_type, e.color, e.all_day, e.detail_visibility, e.start_time, e.end_time, e.created_by_user_id, e.source_ref, e.created_at, e.updated_at
		FROM tbl_calendar_event e
		LEFT JOIN tbl_group_member gm ON gm.group_id = e.owner_group_id AND gm.user_id = $1 AND gm.status = 'active'
		LEFT JOIN tbl_event_projection p ON p.event_id = e.id AND p.target_user_id = $1 AND p.status = 'accepted'
		LEFT JOIN tbl_sharing_agreement a ON a.owner_user_id = e.owner_user_id AND a.viewer_user_id = $1 AND a.status = 'active'
		WHERE e.start_time < $3 AND e.end_time > $2
		AND (e.owner_user_id = $1 OR gm.id IS NOT NULL OR p.id IS NOT NULL OR a.id IS NOT NULL)
		ORDER BY e.start_time ASC`

	rows, err := db.Pool.Query(ctx, query, params.ViewerUserID, params.WindowStart, params.WindowEnd)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list candidate events: %w", err)
	}
	defer rows.Close()

	var events []CalendarEvent
	for rows.Next() {
		event, err := scanCalendarEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("database: failed to scan candidate event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate candidate events: %w", err)
	}
	return events, nil
}
