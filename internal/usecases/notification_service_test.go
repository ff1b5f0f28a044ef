package usecases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
)

func newTestNotifications() (*NotificationService, *fakeNotificationStore, *fakeHub) {
	store := &fakeNotificationStore{}
	hub := &fakeHub{}
	users := newFakeUsers(&entities.User{ID: 1, Language: "en"})
	return NewNotificationService(store, hub, users, fakeLocalizer{}), store, hub
}

func TestNotificationCreate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		in       entities.NotificationInput
		wantType string
		stored   bool
	}{
		{"unknown type falls back to info", entities.NotificationInput{UserID: 1, Type: "odd", Title: "t"}, entities.NotificationInfo, true},
		{"warning kept", entities.NotificationInput{UserID: 1, Type: "warning", Title: "t"}, entities.NotificationWarning, true},
		{"missing title is a no-op", entities.NotificationInput{UserID: 1, Type: "info"}, "", false},
		{"missing user is a no-op", entities.NotificationInput{Title: "t"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, hub := newTestNotifications()
			n, err := svc.Create(ctx, tt.in)
			require.NoError(t, err)
			if !tt.stored {
				assert.Nil(t, n)
				assert.Empty(t, store.snapshot())
				assert.Empty(t, hub.names())
				return
			}
			require.NotNil(t, n)
			assert.Equal(t, tt.wantType, n.Type)
			assert.Equal(t, []string{entities.EventNotificationNew}, hub.names())
		})
	}
}

func TestNotificationErrorsMirroredToAlerter(t *testing.T) {
	svc, _, _ := newTestNotifications()
	alerter := &fakeAlerter{}
	svc.SetAlerter(alerter)

	_, err := svc.Create(context.Background(), entities.NotificationInput{UserID: 1, Type: "info", Title: "fine"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), entities.NotificationInput{UserID: 1, Type: "error", Title: "broken"})
	require.NoError(t, err)

	require.Len(t, alerter.got, 1)
	assert.Equal(t, "broken", alerter.got[0].Title)
}

func TestNotificationNotifyLocalizes(t *testing.T) {
	svc, store, _ := newTestNotifications()
	svc.Notify(context.Background(), 1, entities.NotificationInfo, "NewMessage", map[string]any{"Contact": "Sara"}, nil)

	items := store.snapshot()
	require.Len(t, items, 1)
	assert.Equal(t, "NewMessageTitle|Contact=Sara", items[0].Title)
	require.NotNil(t, items[0].Message)
	assert.Equal(t, "NewMessageBody|Contact=Sara", *items[0].Message)
}

func TestNotificationReadAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, _, hub := newTestNotifications()

	first, err := svc.Create(ctx, entities.NotificationInput{UserID: 1, Title: "a"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, entities.NotificationInput{UserID: 1, Title: "b"})
	require.NoError(t, err)

	read, err := svc.MarkRead(ctx, 1, first.ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)

	_, err = svc.MarkRead(ctx, 2, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	count, err := svc.MarkAllRead(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = svc.MarkAllRead(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, svc.Delete(ctx, 1, first.ID))
	assert.ErrorIs(t, svc.Delete(ctx, 1, first.ID), ErrNotFound)

	assert.Equal(t, []string{
		entities.EventNotificationNew,
		entities.EventNotificationNew,
		entities.EventNotificationRead,
		entities.EventNotificationReadAll,
		entities.EventNotificationDeleted,
	}, hub.names())
}

func TestNotificationListClampsLimit(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestNotifications()
	for i := 0; i < 60; i++ {
		_, err := svc.Create(ctx, entities.NotificationInput{UserID: 1, Title: "n"})
		require.NoError(t, err)
	}

	items, err := svc.List(ctx, 1, 0, 0)
	require.NoError(t, err)
	assert.Len(t, items, 50)

	items, err = svc.List(ctx, 1, 500, -3)
	require.NoError(t, err)
	assert.Len(t, items, 60)
}
