package database

import (
	"context"
	"fmt"
	"time"

	"calshare/internal/util"

	"github.com/google/uuid"
)

type Notification struct {
	ID          uuid.UUID
	OwnerUserID uuid.UUID
	Type        string
	Title       string
	Message     string
	IsRead      bool
	ActionURL   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CreateNotificationParams struct {
	OwnerUserID uuid.UUID
	Type        string
	Title       string
	Message     string
	ActionURL   string
}

func (db *Database) CreateNotification(ctx context.Context, params CreateNotificationParams) (Notification, error) {
	notification := Notification{
		ID:          uuid.New(),
		OwnerUserID: params.OwnerUserID,
		Type:        params.Type,
		Title:       params.Title,
		Message:     params.Message,
		IsRead:      false,
		ActionURL:   params.ActionURL,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	if _, err := db.Pool.Exec(ctx, `INSERT INTO tbl_notification (id, owner_user_id, type, title, message, is_read, action_url, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		notification.ID, notification.OwnerUserID, notification.Type, notification.Title, notification.Message,
		notification.IsRead, notification.ActionURL, notification.CreatedAt, notification.UpdatedAt); err != nil {
		return notification, fmt.Errorf("database: failed to insert notification: %w", err)
	}
	return notification, nil
}

type ListNotificationsParams struct {
	OwnerUserID      util.Optional[uuid.UUID]
	Read             util.Optional[bool]
	Limit            util.Optional[uint16]
	OrderByCreatedAt util.Optional[OrderBy]
}

func (db *Database) ListNotifications(ctx context.Context, params ListNotificationsParams) ([]Notification, error) {
	query := `SELECT id, owner_user_id, type, title, message, is_read, action_url, created_at, updated_at FROM tbl_notification WHERE 1=1`
	var args []any
	argNum := 1

	if params.OwnerUserID.IsSet {
		query += fmt.Sprintf(" AND owner_user_id = $%d", argNum)
		args = append(args, params.OwnerUserID.Val)
		argNum++
	}
	if params.Read.IsSet {
		query += fmt.Sprintf(" AND is_read = $%d", argNum)
		args = append(args, params.Read.Val)
		argNum++
	}

	if params.OrderByCreatedAt.IsSet && params.OrderByCreatedAt.Val == OrderByDESC {
		query += " ORDER BY created_at DESC"
	} else {
		query += " ORDER BY created_at ASC"
	}

	if params.Limit.IsSet {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, params.Limit.Val)
		argNum++
	}

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.OwnerUserID, &n.Type, &n.Title, &n.Message, &n.IsRead, &n.ActionURL, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("database: failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate notifications: %w", err)
	}
	return notifications, nil
}

// MarkNotificationRead flips the read flag for the owner's own notification.
// A row owned by someone else counts as not found, so the ID space cannot be
// probed across actors.
func (db *Database) MarkNotificationRead(ctx context.Context, id, ownerUserID uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `UPDATE tbl_notification SET is_read = TRUE, updated_at = $1 WHERE id = $2 AND owner_user_id = $3`,
		time.Now().UTC(), id, ownerUserID)
	if err != nil {
		return fmt.Errorf("database: failed to mark notification read (id=%s): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
