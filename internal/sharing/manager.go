// Package sharing manages the relationship-level consent records: a standing
// owner-to-viewer agreement covering the owner's whole calendar by default.
// Event-level projections (internal/projection) can narrow it per event.
package sharing

import (
	"context"
	"errors"
	"log/slog"

	"calshare/internal/audit"
	"calshare/internal/database"
	"calshare/internal/notifications"

	"github.com/google/uuid"
)

var (
	ErrSelfShare = errors.New("sharing: cannot share a calendar with its owner")
	ErrForbidden = errors.New("sharing: actor lacks authority for this transition")
	// ErrInvalidTransition covers attempts to resurrect revoked grants or to
	// accept something that is not pending.
	ErrInvalidTransition = errors.New("sharing: illegal status transition")
)

type Store interface {
	CreateSharingAgreement(ctx context.Context, params database.CreateSharingAgreementParams) (database.SharingAgreement, error)
	GetSharingAgreementByID(ctx context.Context, id uuid.UUID) (database.SharingAgreement, error)
	GetSharingAgreementBetween(ctx context.Context, ownerUserID, viewerUserID uuid.UUID) (database.SharingAgreement, error)
	SetSharingAgreementStatus(ctx context.Context, params database.SetSharingAgreementStatusParams) (database.SharingAgreement, error)
	ResetSharingAgreement(ctx context.Context, params database.ResetSharingAgreementParams) (database.SharingAgreement, error)
}

type Auditor interface {
	LogEvent(ctx context.Context, params audit.LogEventParams) error
}

type Notifier interface {
	Notify(ctx context.Context, params notifications.NotifyParams) error
}

// Mirror receives grant changes for external authorization consumers. It is
// write-only: nothing in the read path ever consults it, so a lagging mirror
// can never un-revoke access here.
type Mirror interface {
	AgreementChanged(ctx context.Context, agreement database.SharingAgreement) error
}

type Manager struct {
	logger   *slog.Logger
	store    Store
	auditor  Auditor
	notifier Notifier
	mirror   Mirror
}

func NewManager(logger *slog.Logger, store Store, auditor Auditor, notifier Notifier, mirror Mirror) Manager {
	return Manager{logger: logger, store: store, auditor: auditor, notifier: notifier, mirror: mirror}
}

// Upsert creates or renews the single agreement for the (owner, viewer)
// pair. A live pending/active row is returned as-is; a revoked row becomes a
// logically new pending grant. Only the owner may call this.
func (m *Manager) Upsert(ctx context.Context, owner, viewer uuid.UUID, permission database.AgreementPermission) (database.SharingAgreement, error) {
	if owner == viewer {
		return database.SharingAgreement{}, ErrSelfShare
	}

	existing, err := m.store.GetSharingAgreementBetween(ctx, owner, viewer)
	switch {
	case err == nil:
		if existing.Status != database.AgreementStatusRevoked {
			// Re-inviting while pending or active is a no-op.
			return existing, nil
		}
		renewed, err := m.store.ResetSharingAgreement(ctx, database.ResetSharingAgreementParams{
			ID:         existing.ID,
			Permission: permission,
			Version:    existing.Version,
		})
		if err != nil {
			return renewed, err
		}
		m.recordChange(ctx, owner, audit.EventTypeAgreementRenewed, renewed)
		m.notifyViewer(ctx, renewed)
		return renewed, nil
	case errors.Is(err, database.ErrSharingAgreementNotFound):
		created, err := m.store.CreateSharingAgreement(ctx, database.CreateSharingAgreementParams{
			OwnerUserID:  owner,
			ViewerUserID: viewer,
			Permission:   permission,
		})
		if err != nil {
			return created, err
		}
		m.recordChange(ctx, owner, audit.EventTypeAgreementCreated, created)
		m.notifyViewer(ctx, created)
		return created, nil
	default:
		return database.SharingAgreement{}, err
	}
}

// Respond is the viewer's side of the lifecycle: accept (pending -> active)
// or leave/decline (pending or active -> revoked). Revoked is terminal.
func (m *Manager) Respond(ctx context.Context, id, actor uuid.UUID, status database.AgreementStatus) (database.SharingAgreement, error) {
	agreement, err := m.store.GetSharingAgreementByID(ctx, id)
	if err != nil {
		return agreement, err
	}
	if agreement.ViewerUserID != actor {
		return agreement, ErrForbidden
	}
	if status != database.AgreementStatusActive && status != database.AgreementStatusRevoked {
		return agreement, ErrInvalidTransition
	}
	if agreement.Status != database.AgreementStatusPending && agreement.Status != database.AgreementStatusActive {
		return agreement, ErrInvalidTransition
	}
	if status == database.AgreementStatusActive && agreement.Status != database.AgreementStatusPending {
		return agreement, ErrInvalidTransition
	}

	updated, err := m.store.SetSharingAgreementStatus(ctx, database.SetSharingAgreementStatusParams{
		ID:      id,
		Status:  status,
		Version: agreement.Version,
	})
	if err != nil {
		return updated, err
	}

	auditType := audit.EventTypeAgreementAccepted
	if status == database.AgreementStatusRevoked {
		auditType = audit.EventTypeAgreementDeclined
	}
	m.recordChange(ctx, actor, auditType, updated)

	return updated, nil
}

// RevokeAsOwner force-revokes. Owner only; always succeeds on a live row and
// is idempotent on an already revoked one.
func (m *Manager) RevokeAsOwner(ctx context.Context, id, actor uuid.UUID) (database.SharingAgreement, error) {
	agreement, err := m.store.GetSharingAgreementByID(ctx, id)
	if err != nil {
		return agreement, err
	}
	if agreement.OwnerUserID != actor {
		return agreement, ErrForbidden
	}
	if agreement.Status == database.AgreementStatusRevoked {
		return agreement, nil
	}

	updated, err := m.store.SetSharingAgreementStatus(ctx, database.SetSharingAgreementStatusParams{
		ID:      id,
		Status:  database.AgreementStatusRevoked,
		Version: agreement.Version,
	})
	if err != nil {
		return updated, err
	}

	m.recordChange(ctx, actor, audit.EventTypeAgreementRevoked, updated)

	if err := m.notifier.Notify(ctx, notifications.NotifyParams{
		UserID:  updated.ViewerUserID,
		Type:    notifications.NotificationTypeAccessRevoked,
		Title:   "Calendar access revoked",
		Message: "Your access to a shared calendar has been revoked",
	}); err != nil {
		m.logger.Warn("failed to notify viewer of revocation", "error", err)
	}

	return updated, nil
}

func (m *Manager) recordChange(ctx context.Context, actor uuid.UUID, auditType audit.EventType, agreement database.SharingAgreement) {
	if err := m.auditor.LogEvent(ctx, audit.LogEventParams{
		ActorID: actor,
		Type:    auditType,
		Data: map[string]any{
			"agreement_id": agreement.ID,
			"owner_id":     agreement.OwnerUserID,
			"viewer_id":    agreement.ViewerUserID,
			"status":       agreement.Status,
		},
	}); err != nil {
		m.logger.Warn("failed to audit agreement change", "error", err)
	}

	if err := m.mirror.AgreementChanged(ctx, agreement); err != nil {
		m.logger.Warn("failed to mirror agreement change", "error", err, "agreement_id", agreement.ID)
	}
}

func (m *Manager) notifyViewer(ctx context.Context, agreement database.SharingAgreement) {
	if err := m.notifier.Notify(ctx, notifications.NotifyParams{
		UserID:  agreement.ViewerUserID,
		Type:    notifications.NotificationTypeShareInvite,
		Title:   "Calendar share invitation",
		Message: "Someone wants to share their calendar with you",
	}); err != nil {
		m.logger.Warn("failed to notify viewer of share invite", "error", err)
	}
}
