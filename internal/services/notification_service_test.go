package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"idleassets/api/internal/models"
	"idleassets/api/internal/realtime"
)

func TestNotificationService_CreateAndList(t *testing.T) {
	env := setupTestEnv(t, "testdb_notification_service_list")
	env.cfg.NotificationLimit = 3
	ctx := context.Background()

	err := env.notifications.Create(ctx, &models.Notification{UserID: "u1", Title: "missing type"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		err := env.notifications.Create(ctx, &models.Notification{
			UserID:    "u1",
			Type:      models.NotificationRentalUpdated,
			Title:     fmt.Sprintf("n%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	require.NoError(t, env.notifications.Create(ctx, &models.Notification{
		UserID: "u2", Type: models.NotificationNewMessage, Title: "other user",
	}))

	assert.Len(t, env.publisher.On(realtime.NotificationsChannel("u1")), 5)

	// The most recent ones, oldest first.
	list, err := env.notifications.List(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"n2", "n3", "n4"}, []string{list[0].Title, list[1].Title, list[2].Title})

	list, err = env.notifications.List(ctx, "u1", 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "n4", list[0].Title)
}

func TestNotificationService_MarkRead(t *testing.T) {
	env := setupTestEnv(t, "testdb_notification_service_read")
	ctx := context.Background()

	first := &models.Notification{UserID: "u1", Type: models.NotificationRentalRequested, Title: "a"}
	require.NoError(t, env.notifications.Create(ctx, first))
	require.NoError(t, env.notifications.Create(ctx, &models.Notification{UserID: "u1", Type: models.NotificationRentalRequested, Title: "b"}))
	require.NoError(t, env.notifications.Create(ctx, &models.Notification{UserID: "u1", Type: models.NotificationRentalRequested, Title: "c"}))

	assert.ErrorIs(t, env.notifications.MarkRead(ctx, "u2", first.ID), ErrNotificationNotFound)
	require.NoError(t, env.notifications.MarkRead(ctx, "u1", first.ID))

	n, err := env.notifications.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	list, err := env.notifications.List(ctx, "u1", 0)
	require.NoError(t, err)
	for _, item := range list {
		assert.True(t, item.IsRead)
	}
}
