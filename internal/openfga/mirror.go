package openfga

import (
	"context"
	"log/slog"

	"calshare/internal/database"
)

// GrantMirror pushes agreement and projection state changes into OpenFGA as
// relationship tuples. It is strictly write-behind: visibility decisions are
// made from Postgres alone, and a failed mirror write is logged by the caller
// without blocking the grant change.
type GrantMirror struct {
	logger *slog.Logger
	client *Client
}

func NewGrantMirror(logger *slog.Logger, client *Client) *GrantMirror {
	return &GrantMirror{logger: logger, client: client}
}

// AgreementChanged reconciles the calendar-level tuple for an agreement. An
// active agreement maps to a viewer (or editor, for write permission) tuple
// on the owner's calendar; every other status removes both tuples.
func (m *GrantMirror) AgreementChanged(ctx context.Context, agreement database.SharingAgreement) error {
	if !m.client.IsEnabled() {
		return nil
	}

	viewer := agreement.ViewerUserID.String()
	calendar := agreement.OwnerUserID.String()

	if agreement.Status == database.AgreementStatusActive {
		relation := "viewer"
		if agreement.Permission == database.AgreementPermissionWrite {
			relation = "editor"
		}
		return m.client.WriteTuple(ctx, viewer, relation, "calendar", calendar)
	}

	// Best effort: the tuple may never have existed, e.g. a decline before
	// any activation. The server rejects deletes of absent tuples.
	for _, relation := range []string{"viewer", "editor"} {
		if err := m.client.DeleteTuple(ctx, viewer, relation, "calendar", calendar); err != nil {
			m.logger.Debug("mirror tuple delete skipped",
				"relation", relation, "calendar", calendar, "error", err)
		}
	}
	return nil
}

// ProjectionChanged reconciles the event-level tuple for a projection. Only
// an accepted projection grants anything; suggested, pending, declined and
// revoked all map to tuple absence.
func (m *GrantMirror) ProjectionChanged(ctx context.Context, projection database.EventProjection) error {
	if !m.client.IsEnabled() {
		return nil
	}

	target := projection.TargetUserID.String()
	event := projection.EventID.String()

	if projection.Status == database.ProjectionStatusAccepted {
		return m.client.WriteTuple(ctx, target, "viewer", "event", event)
	}

	if err := m.client.DeleteTuple(ctx, target, "viewer", "event", event); err != nil {
		m.logger.Debug("mirror tuple delete skipped",
			"event", event, "error", err)
	}
	return nil
}
