package api

import (
	"errors"
	"log/slog"
	"net/http"

	"calshare/internal/calendar"
	"calshare/internal/database"
	"calshare/internal/event"
	"calshare/internal/membership"
	"calshare/internal/projection"
	"calshare/internal/service"
	"calshare/internal/sharing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// domainError translates manager and store errors into HTTP responses. The
// taxonomy is deliberate: missing or invisible resources are 404, authority
// failures 403, duplicate or stale state 409, well-formed but unprocessable
// requests 422.
func domainError(c *fiber.Ctx, logger *slog.Logger, err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", validationErrs.Error())
	}

	switch {
	case errors.Is(err, database.ErrCalendarEventNotFound),
		errors.Is(err, database.ErrGroupNotFound),
		errors.Is(err, database.ErrGroupMemberNotFound),
		errors.Is(err, database.ErrGroupInviteNotFound),
		errors.Is(err, database.ErrSharingAgreementNotFound),
		errors.Is(err, database.ErrProjectionNotFound),
		errors.Is(err, database.ErrNotificationNotFound):
		return ErrorResponse(c, http.StatusNotFound, "NOT_FOUND", "Resource not found")

	case errors.Is(err, event.ErrForbidden),
		errors.Is(err, sharing.ErrForbidden),
		errors.Is(err, projection.ErrForbidden),
		errors.Is(err, membership.ErrForbidden):
		return ErrorResponse(c, http.StatusForbidden, "FORBIDDEN", "Actor lacks authority for this operation")

	case errors.Is(err, database.ErrVersionConflict):
		return ErrorResponse(c, http.StatusConflict, "CONFLICT", "Resource was modified concurrently, retry with fresh state")

	case errors.Is(err, membership.ErrDuplicateMembership):
		return ErrorResponse(c, http.StatusConflict, "CONFLICT", "Membership already exists")

	case errors.Is(err, event.ErrInvalidOwnership):
		return ErrorResponse(c, http.StatusUnprocessableEntity, "INVALID_OWNERSHIP", "Exactly one of owner_user_id and owner_group_id must be set")

	case errors.Is(err, event.ErrInvalidTimeRange),
		errors.Is(err, calendar.ErrInvalidWindow):
		return ErrorResponse(c, http.StatusUnprocessableEntity, "INVALID_TIME_RANGE", "End must not precede start")

	case errors.Is(err, sharing.ErrInvalidTransition),
		errors.Is(err, projection.ErrInvalidTransition),
		errors.Is(err, membership.ErrInvalidTransition):
		return ErrorResponse(c, http.StatusUnprocessableEntity, "INVALID_TRANSITION", "Requested status change is not allowed from the current status")

	case errors.Is(err, sharing.ErrSelfShare):
		return ErrorResponse(c, http.StatusUnprocessableEntity, "SELF_SHARE", "Cannot share a calendar with its owner")

	case errors.Is(err, projection.ErrSelfProjection):
		return ErrorResponse(c, http.StatusUnprocessableEntity, "SELF_PROJECTION", "Cannot project an event to its owner")

	case errors.Is(err, membership.ErrInviteExpired):
		return ErrorResponse(c, http.StatusUnprocessableEntity, "INVITE_EXPIRED", "Invite token has expired")

	case errors.Is(err, service.ErrTooManyAttempts):
		return ErrorResponse(c, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Rate limit exceeded, try again later")
	}

	logger.Error("unhandled error in API handler", "error", err, "path", c.Path())
	return ErrorResponse(c, http.StatusInternalServerError, "INTERNAL", "Internal server error")
}
