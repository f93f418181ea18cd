package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type AgreementPermission string

const (
	AgreementPermissionRead  AgreementPermission = "read"
	AgreementPermissionWrite AgreementPermission = "write"
)

type AgreementStatus string

const (
	AgreementStatusPending AgreementStatus = "pending"
	AgreementStatusActive  AgreementStatus = "active"
	AgreementStatusRevoked AgreementStatus = "revoked"
)

// SharingAgreement is the relationship-level consent record: at most one row
// per (owner, viewer) pair. Status writes carry the row version so concurrent
// transitions serialize; the loser gets ErrVersionConflict.
type SharingAgreement struct {
	ID           uuid.UUID
	OwnerUserID  uuid.UUID
	ViewerUserID uuid.UUID
	Permission   AgreementPermission
	Status       AgreementStatus
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const sharingAgreementColumns = `id, owner_user_id, viewer_user_id, permission, status, version, created_at, updated_at`

func scanSharingAgreement(row pgx.Row) (SharingAgreement, error) {
	var a SharingAgreement
	err := row.Scan(&a.ID, &a.OwnerUserID, &a.ViewerUserID, &a.Permission, &a.Status, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

type CreateSharingAgreementParams struct {
	OwnerUserID  uuid.UUID
	ViewerUserID uuid.UUID
	Permission   AgreementPermission
}

func (db *Database) CreateSharingAgreement(ctx context.Context, params CreateSharingAgreementParams) (SharingAgreement, error) {
	agreement := SharingAgreement{
		ID:           uuid.New(),
		OwnerUserID:  params.OwnerUserID,
		ViewerUserID: params.ViewerUserID,
		Permission:   params.Permission,
		Status:       AgreementStatusPending,
		Version:      1,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	if _, err := db.Pool.Exec(ctx, `INSERT INTO tbl_sharing_agreement (`+sharingAgreementColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		agreement.ID, agreement.OwnerUserID, agreement.ViewerUserID, agreement.Permission, agreement.Status,
		agreement.Version, agreement.CreatedAt, agreement.UpdatedAt); err != nil {
		return agreement, fmt.Errorf("database: failed to insert sharing agreement: %w", err)
	}
	return agreement, nil
}

func (db *Database) GetSharingAgreementByID(ctx context.Context, id uuid.UUID) (SharingAgreement, error) {
	agreement, err := scanSharingAgreement(db.Pool.QueryRow(ctx, `SELECT `+sharingAgreementColumns+` FROM tbl_sharing_agreement WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return agreement, ErrSharingAgreementNotFound
		}
		return agreement, fmt.Errorf("database: failed to scan sharing agreement: %w", err)
	}
	return agreement, nil
}

func (db *Database) GetSharingAgreementBetween(ctx context.Context, ownerUserID, viewerUserID uuid.UUID) (SharingAgreement, error) {
	agreement, err := scanSharingAgreement(db.Pool.QueryRow(ctx, `SELECT `+sharingAgreementColumns+` FROM tbl_sharing_agreement WHERE owner_user_id = $1 AND viewer_user_id = $2`, ownerUserID, viewerUserID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return agreement, ErrSharingAgreementNotFound
		}
		return agreement, fmt.Errorf("database: failed to scan sharing agreement: %w", err)
	}
	return agreement, nil
}

type SetSharingAgreementStatusParams struct {
	ID      uuid.UUID
	Status  AgreementStatus
	Version int64
}

// SetSharingAgreementStatus applies a status transition guarded by the row
// version read beforehand. A zero-row update on an existing row means another
// writer got there first.
func (db *Database) SetSharingAgreementStatus(ctx context.Context, params SetSharingAgreementStatusParams) (SharingAgreement, error) {
	agreement, err := scanSharingAgreement(db.Pool.QueryRow(ctx,
		`UPDATE tbl_sharing_agreement SET status = $1, version = version + 1, updated_at = $2 WHERE id = $3 AND version = $4 RETURNING `+sharingAgreementColumns,
		params.Status, time.Now().UTC(), params.ID, params.Version))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := db.GetSharingAgreementByID(ctx, params.ID); getErr != nil {
				return agreement, getErr
			}
			return agreement, ErrVersionConflict
		}
		return agreement, fmt.Errorf("database: failed to set sharing agreement status (id=%s): %w", params.ID, err)
	}
	return agreement, nil
}

type ResetSharingAgreementParams struct {
	ID         uuid.UUID
	Permission AgreementPermission
	Version    int64
}

// ResetSharingAgreement reuses a revoked row for a logically new grant:
// status returns to pending and the permission is refreshed. Guarded by the
// row version like every other status write.
func (db *Database) ResetSharingAgreement(ctx context.Context, params ResetSharingAgreementParams) (SharingAgreement, error) {
	agreement, err := scanSharingAgreement(db.Pool.QueryRow(ctx,
		`UPDATE tbl_sharing_agreement SET status = 'pending', permission = $1, version = version + 1, updated_at = $2 WHERE id = $3 AND version = $4 RETURNING `+sharingAgreementColumns,
		params.Permission, time.Now().UTC(), params.ID, params.Version))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := db.GetSharingAgreementByID(ctx, params.ID); getErr != nil {
				return agreement, getErr
			}
			return agreement, ErrVersionConflict
		}
		return agreement, fmt.Errorf("database: failed to reset sharing agreement (id=%s): %w", params.ID, err)
	}
	return agreement, nil
}
