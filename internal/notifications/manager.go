package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"calshare/internal/database"
	"calshare/internal/util"

	"github.com/google/uuid"
)

type Store interface {
	CreateNotification(ctx context.Context, params database.CreateNotificationParams) (database.Notification, error)
	ListNotifications(ctx context.Context, params database.ListNotificationsParams) ([]database.Notification, error)
	MarkNotificationRead(ctx context.Context, id, ownerUserID uuid.UUID) error
}

type Manager struct {
	logger *slog.Logger
	store  Store
}

func NewManager(logger *slog.Logger, store Store) Manager {
	return Manager{logger: logger, store: store}
}

type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Title     string
	Message   string
	Type      NotificationType
	IsRead    bool
	ActionURL string
	CreatedAt time.Time
}

type NotificationType string

const (
	NotificationTypeShareInvite      NotificationType = "share_invite"
	NotificationTypeProjectionInvite NotificationType = "projection_invite"
	NotificationTypeGroupInvite      NotificationType = "group_invite"
	NotificationTypeAccessRevoked    NotificationType = "access_revoked"
)

type NotifyParams struct {
	UserID    uuid.UUID
	Title     string
	Message   string
	Type      NotificationType
	ActionURL string
}

func (m *Manager) Notify(ctx context.Context, params NotifyParams) error {
	if _, err := m.store.CreateNotification(ctx, database.CreateNotificationParams{
		OwnerUserID: params.UserID,
		Type:        string(params.Type),
		Title:       params.Title,
		Message:     params.Message,
		ActionURL:   params.ActionURL,
	}); err != nil {
		return fmt.Errorf("notifications: failed to create notification: %w", err)
	}
	return nil
}

func (m *Manager) Unread(ctx context.Context, userID uuid.UUID) ([]Notification, error) {
	rows, err := m.store.ListNotifications(ctx, database.ListNotificationsParams{
		OwnerUserID:      util.Some(userID),
		Read:             util.Some(false),
		Limit:            util.Some(uint16(20)),
		OrderByCreatedAt: util.Some(database.OrderByDESC),
	})
	if err != nil {
		return nil, err
	}

	result := make([]Notification, len(rows))
	for i, row := range rows {
		result[i] = Notification{
			ID:        row.ID,
			UserID:    row.OwnerUserID,
			Title:     row.Title,
			Message:   row.Message,
			Type:      NotificationType(row.Type),
			IsRead:    row.IsRead,
			ActionURL: row.ActionURL,
			CreatedAt: row.CreatedAt,
		}
	}
	return result, nil
}

// MarkRead marks one of the actor's own notifications as read. Someone
// else's notification reports ErrNotificationNotFound rather than Forbidden,
// keeping existence unprobeable.
func (m *Manager) MarkRead(ctx context.Context, id, actor uuid.UUID) error {
	return m.store.MarkNotificationRead(ctx, id, actor)
}
