package api

import (
	"net/http"
	"time"

	"calshare/internal/calendar"
	"calshare/internal/database"
	"calshare/internal/event"
	"calshare/internal/util"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type eventResponse struct {
	ID               uuid.UUID                `json:"id"`
	OwnerUserID      util.Optional[uuid.UUID] `json:"owner_user_id,omitempty"`
	OwnerGroupID     util.Optional[uuid.UUID] `json:"owner_group_id,omitempty"`
	Title            string                   `json:"title"`
	Description      string                   `json:"description"`
	Location         string                   `json:"location"`
	EventType        string                   `json:"event_type"`
	Color            string                   `json:"color"`
	AllDay           bool                     `json:"all_day"`
	DetailVisibility string                   `json:"detail_visibility"`
	StartTime        time.Time                `json:"start_time"`
	EndTime          time.Time                `json:"end_time"`
	CreatedBy        uuid.UUID                `json:"created_by"`
	SourceRef        util.Optional[string]    `json:"source_ref,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
}

func newEventResponse(e database.CalendarEvent) eventResponse {
	return eventResponse{
		ID:               e.ID,
		OwnerUserID:      e.OwnerUserID,
		OwnerGroupID:     e.OwnerGroupID,
		Title:            e.Title,
		Description:      e.Description,
		Location:         e.Location,
		EventType:        e.EventType,
		Color:            e.Color,
		AllDay:           e.AllDay,
		DetailVisibility: string(e.DetailVisibility),
		StartTime:        e.StartTime,
		EndTime:          e.EndTime,
		CreatedBy:        e.CreatedByUserID,
		SourceRef:        e.SourceRef,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

type createEventRequest struct {
	OwnerUserID      *uuid.UUID `json:"owner_user_id"`
	OwnerGroupID     *uuid.UUID `json:"owner_group_id"`
	Title            string     `json:"title" validate:"required,max=256"`
	Description      string     `json:"description" validate:"max=4096"`
	Location         string     `json:"location" validate:"max=512"`
	EventType        string     `json:"event_type" validate:"max=64"`
	Color            string     `json:"color" validate:"max=32"`
	AllDay           bool       `json:"all_day"`
	DetailVisibility string     `json:"detail_visibility" validate:"omitempty,detail_visibility"`
	StartTime        time.Time  `json:"start_time" validate:"required"`
	EndTime          time.Time  `json:"end_time" validate:"required"`
	SourceRef        *string    `json:"source_ref"`
}

func (h *Handler) CreateEvent(c *fiber.Ctx) error {
	var req createEventRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
	}
	if err := h.validate.Validate(req); err != nil {
		return domainError(c, h.logger, err)
	}

	created, err := h.events.Create(c.Context(), event.CreateParams{
		OwnerUserID:      optionalOf(req.OwnerUserID),
		OwnerGroupID:     optionalOf(req.OwnerGroupID),
		Title:            req.Title,
		Description:      req.Description,
		Location:         req.Location,
		EventType:        req.EventType,
		Color:            req.Color,
		AllDay:           req.AllDay,
		DetailVisibility: database.DetailVisibility(req.DetailVisibility),
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		SourceRef:        optionalOf(req.SourceRef),
		Creator:          Actor(c),
	})
	if err != nil {
		return domainError(c, h.logger, err)
	}

	return c.Status(http.StatusCreated).JSON(newEventResponse(created))
}

// GetEvent returns the event as the actor is allowed to see it: the owner
// gets the raw record, everyone else the resolved redacted view or a 404.
func (h *Handler) GetEvent(c *fiber.Ctx) error {
	eventID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid event ID")
	}

	view, err := h.calendar.VisibleEvent(c.Context(), eventID, Actor(c))
	if err != nil {
		return domainError(c, h.logger, err)
	}

	return c.JSON(view)
}

type updateEventRequest struct {
	Title            *string    `json:"title" validate:"omitempty,max=256"`
	Description      *string    `json:"description" validate:"omitempty,max=4096"`
	Location         *string    `json:"location" validate:"omitempty,max=512"`
	EventType        *string    `json:"event_type" validate:"omitempty,max=64"`
	Color            *string    `json:"color" validate:"omitempty,max=32"`
	AllDay           *bool      `json:"all_day"`
	DetailVisibility *string    `json:"detail_visibility" validate:"omitempty,detail_visibility"`
	StartTime        *time.Time `json:"start_time"`
	EndTime          *time.Time `json:"end_time"`
}

func (h *Handler) UpdateEvent(c *fiber.Ctx) error {
	eventID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid event ID")
	}

	var req updateEventRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
	}
	if err := h.validate.Validate(req); err != nil {
		return domainError(c, h.logger, err)
	}

	params := event.UpdateParams{
		Title:       optionalOf(req.Title),
		Description: optionalOf(req.Description),
		Location:    optionalOf(req.Location),
		EventType:   optionalOf(req.EventType),
		Color:       optionalOf(req.Color),
		AllDay:      optionalOf(req.AllDay),
		StartTime:   optionalOf(req.StartTime),
		EndTime:     optionalOf(req.EndTime),
	}
	if req.DetailVisibility != nil {
		params.DetailVisibility = util.Some(database.DetailVisibility(*req.DetailVisibility))
	}

	if err := h.events.Update(c.Context(), eventID, params, Actor(c)); err != nil {
		return domainError(c, h.logger, err)
	}

	return c.SendStatus(http.StatusNoContent)
}

func (h *Handler) DeleteEvent(c *fiber.Ctx) error {
	eventID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid event ID")
	}

	if err := h.events.Delete(c.Context(), eventID, Actor(c)); err != nil {
		return domainError(c, h.logger, err)
	}

	return c.SendStatus(http.StatusNoContent)
}

// ListVisibleEvents is the projection read: every event in the window the
// actor may see, redacted to its resolved scope.
func (h *Handler) ListVisibleEvents(c *fiber.Ctx) error {
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Query parameter start must be RFC 3339")
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Query parameter end must be RFC 3339")
	}

	views, err := h.calendar.VisibleEvents(c.Context(), calendar.VisibleEventsParams{
		ViewerID:    Actor(c),
		WindowStart: start,
		WindowEnd:   end,
	})
	if err != nil {
		return domainError(c, h.logger, err)
	}

	return ListResponse(c, views)
}

// ListOwnEvents is the owner read: the actor's personal calendar, raw and
// unredacted. Optional start/end query parameters bound the window.
func (h *Handler) ListOwnEvents(c *fiber.Ctx) error {
	var windowStart, windowEnd util.Optional[time.Time]
	if raw := c.Query("start"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Query parameter start must be RFC 3339")
		}
		windowStart = util.Some(start)
	}
	if raw := c.Query("end"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Query parameter end must be RFC 3339")
		}
		windowEnd = util.Some(end)
	}

	events, err := h.events.OwnEvents(c.Context(), Actor(c), windowStart, windowEnd)
	if err != nil {
		return domainError(c, h.logger, err)
	}

	responses := make([]eventResponse, 0, len(events))
	for _, e := range events {
		responses = append(responses, newEventResponse(e))
	}
	return ListResponse(c, responses)
}

func optionalOf[T any](p *T) util.Optional[T] {
	if p == nil {
		return util.None[T]()
	}
	return util.Some(*p)
}
