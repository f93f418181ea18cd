package notifications_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"calshare/internal/database"
	"calshare/internal/notifications"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotificationStore struct {
	rows map[uuid.UUID]database.Notification
}

func newFakeNotificationStore() *fakeNotificationStore {
	return &fakeNotificationStore{rows: make(map[uuid.UUID]database.Notification)}
}

func (s *fakeNotificationStore) CreateNotification(ctx context.Context, params database.CreateNotificationParams) (database.Notification, error) {
	n := database.Notification{
		ID:          uuid.New(),
		OwnerUserID: params.OwnerUserID,
		Type:        params.Type,
		Title:       params.Title,
		Message:     params.Message,
		ActionURL:   params.ActionURL,
	}
	s.rows[n.ID] = n
	return n, nil
}

func (s *fakeNotificationStore) ListNotifications(ctx context.Context, params database.ListNotificationsParams) ([]database.Notification, error) {
	var out []database.Notification
	for _, n := range s.rows {
		if params.OwnerUserID.IsSet && n.OwnerUserID != params.OwnerUserID.Val {
			continue
		}
		if params.Read.IsSet && n.IsRead != params.Read.Val {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *fakeNotificationStore) MarkNotificationRead(ctx context.Context, id, ownerUserID uuid.UUID) error {
	n, ok := s.rows[id]
	if !ok || n.OwnerUserID != ownerUserID {
		return database.ErrNotificationNotFound
	}
	n.IsRead = true
	s.rows[id] = n
	return nil
}

func newNotificationsFixture() (*fakeNotificationStore, notifications.Manager) {
	store := newFakeNotificationStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return store, notifications.NewManager(logger, store)
}

func TestMarkRead_OwnNotification(t *testing.T) {
	store, manager := newNotificationsFixture()
	owner := uuid.New()

	require.NoError(t, manager.Notify(context.Background(), notifications.NotifyParams{
		UserID: owner,
		Title:  "Calendar shared with you",
		Type:   notifications.NotificationTypeShareInvite,
	}))

	unread, err := manager.Unread(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, unread, 1)

	require.NoError(t, manager.MarkRead(context.Background(), unread[0].ID, owner))
	assert.True(t, store.rows[unread[0].ID].IsRead)

	unread, err = manager.Unread(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestMarkRead_OnlyTheOwnerCan(t *testing.T) {
	store, manager := newNotificationsFixture()
	owner := uuid.New()
	stranger := uuid.New()

	require.NoError(t, manager.Notify(context.Background(), notifications.NotifyParams{
		UserID: owner,
		Title:  "Calendar shared with you",
		Type:   notifications.NotificationTypeShareInvite,
	}))

	unread, err := manager.Unread(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, unread, 1)

	// Someone else's notification is indistinguishable from a missing one.
	err = manager.MarkRead(context.Background(), unread[0].ID, stranger)
	assert.ErrorIs(t, err, database.ErrNotificationNotFound)
	assert.False(t, store.rows[unread[0].ID].IsRead)

	err = manager.MarkRead(context.Background(), uuid.New(), stranger)
	assert.ErrorIs(t, err, database.ErrNotificationNotFound)
}
