package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"calshare/internal/calendar"
	"calshare/internal/database"
	"calshare/internal/event"
	"calshare/internal/membership"
	"calshare/internal/projection"
	"calshare/internal/service"
	"calshare/internal/sharing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"event not found", database.ErrCalendarEventNotFound, http.StatusNotFound},
		{"agreement not found", database.ErrSharingAgreementNotFound, http.StatusNotFound},
		{"projection not found", database.ErrProjectionNotFound, http.StatusNotFound},
		{"event forbidden", event.ErrForbidden, http.StatusForbidden},
		{"membership forbidden", membership.ErrForbidden, http.StatusForbidden},
		{"version conflict", database.ErrVersionConflict, http.StatusConflict},
		{"duplicate membership", membership.ErrDuplicateMembership, http.StatusConflict},
		{"invalid ownership", event.ErrInvalidOwnership, http.StatusUnprocessableEntity},
		{"invalid time range", event.ErrInvalidTimeRange, http.StatusUnprocessableEntity},
		{"invalid window", calendar.ErrInvalidWindow, http.StatusUnprocessableEntity},
		{"invalid transition", sharing.ErrInvalidTransition, http.StatusUnprocessableEntity},
		{"self share", sharing.ErrSelfShare, http.StatusUnprocessableEntity},
		{"self projection", projection.ErrSelfProjection, http.StatusUnprocessableEntity},
		{"invite expired", membership.ErrInviteExpired, http.StatusUnprocessableEntity},
		{"too many attempts", service.ErrTooManyAttempts, http.StatusTooManyRequests},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/boom", func(c *fiber.Ctx) error {
				return domainError(c, logger, tt.err)
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestDomainErrorMapping_WrappedErrorsMatch(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	app := fiber.New()
	app.Get("/boom", func(c *fiber.Ctx) error {
		return domainError(c, logger, errors.Join(errors.New("context"), database.ErrVersionConflict))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
