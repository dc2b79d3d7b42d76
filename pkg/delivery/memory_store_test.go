package delivery_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/notify/pkg/delivery"
	"github.com/campuskit/notify/pkg/notification"
)

func TestMemoryStoreRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("nil log", func(t *testing.T) {
		t.Parallel()

		store := delivery.NewMemoryStore()
		require.ErrorIs(t, store.Record(ctx, nil), delivery.ErrLogNil)
	})

	t.Run("recording twice keeps a single entry", func(t *testing.T) {
		t.Parallel()

		store := delivery.NewMemoryStore()
		notificationID := uuid.New()

		first := &delivery.Log{
			NotificationID: notificationID,
			Channel:        notification.ChannelEmail,
			Recipient:      "student@example.edu",
			Provider:       "postmark",
			MessageID:      "pm-123",
			Status:         notification.StatusSent,
		}
		require.NoError(t, store.Record(ctx, first))

		second := &delivery.Log{
			NotificationID: notificationID,
			Channel:        notification.ChannelEmail,
			Recipient:      "student@example.edu",
			Provider:       "sendgrid",
			MessageID:      "sg-456",
			Status:         notification.StatusSent,
		}
		require.NoError(t, store.Record(ctx, second))
		assert.Equal(t, first.ID, second.ID)

		logs, err := store.ListByNotification(ctx, notificationID)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, "sendgrid", logs[0].Provider)
		assert.Equal(t, "sg-456", logs[0].MessageID)
	})

	t.Run("distinct channels get distinct entries", func(t *testing.T) {
		t.Parallel()

		store := delivery.NewMemoryStore()
		notificationID := uuid.New()

		for _, ch := range []notification.Channel{notification.ChannelEmail, notification.ChannelSMS} {
			require.NoError(t, store.Record(ctx, &delivery.Log{
				NotificationID: notificationID,
				Channel:        ch,
				Recipient:      "u-1",
				Status:         notification.StatusSent,
			}))
		}

		logs, err := store.ListByNotification(ctx, notificationID)
		require.NoError(t, err)
		assert.Len(t, logs, 2)
	})
}

func TestMemoryStoreUpdateStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	seed := func(t *testing.T, store *delivery.MemoryStore) *delivery.Log {
		t.Helper()
		log := &delivery.Log{
			NotificationID: uuid.New(),
			Channel:        notification.ChannelEmail,
			Recipient:      "student@example.edu",
			Provider:       "postmark",
			MessageID:      "pm-123",
			Status:         notification.StatusSent,
		}
		require.NoError(t, store.Record(ctx, log))
		return log
	}

	t.Run("delivered event stamps delivered_at", func(t *testing.T) {
		t.Parallel()

		store := delivery.NewMemoryStore()
		seed(t, store)

		updated, err := store.UpdateStatus(ctx, "postmark", "pm-123", notification.StatusDelivered, []byte(`{"event":"delivered"}`))
		require.NoError(t, err)
		assert.Equal(t, notification.StatusDelivered, updated.Status)
		require.NotNil(t, updated.DeliveredAt)
		assert.JSONEq(t, `{"event":"delivered"}`, string(updated.Response))
	})

	t.Run("applying the same event twice is idempotent", func(t *testing.T) {
		t.Parallel()

		store := delivery.NewMemoryStore()
		log := seed(t, store)

		_, err := store.UpdateStatus(ctx, "postmark", "pm-123", notification.StatusBounced, nil)
		require.NoError(t, err)
		again, err := store.UpdateStatus(ctx, "postmark", "pm-123", notification.StatusBounced, nil)
		require.NoError(t, err)
		assert.Equal(t, notification.StatusBounced, again.Status)

		logs, err := store.ListByNotification(ctx, log.NotificationID)
		require.NoError(t, err)
		assert.Len(t, logs, 1)
	})

	t.Run("late sent ack never downgrades a terminal status", func(t *testing.T) {
		t.Parallel()

		store := delivery.NewMemoryStore()
		seed(t, store)

		_, err := store.UpdateStatus(ctx, "postmark", "pm-123", notification.StatusBounced, nil)
		require.NoError(t, err)

		updated, err := store.UpdateStatus(ctx, "postmark", "pm-123", notification.StatusSent, nil)
		require.NoError(t, err)
		assert.Equal(t, notification.StatusBounced, updated.Status)
	})

	t.Run("unknown correlation", func(t *testing.T) {
		t.Parallel()

		store := delivery.NewMemoryStore()
		_, err := store.UpdateStatus(ctx, "postmark", "missing", notification.StatusDelivered, nil)
		require.ErrorIs(t, err, delivery.ErrLogNotFound)
	})
}

func TestMemoryStoreFindByMessageID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := delivery.NewMemoryStore()

	log := &delivery.Log{
		NotificationID: uuid.New(),
		Channel:        notification.ChannelSMS,
		Recipient:      "+15551234567",
		Provider:       "twilio",
		MessageID:      "SM123",
		Status:         notification.StatusSent,
	}
	require.NoError(t, store.Record(ctx, log))

	found, err := store.FindByMessageID(ctx, "twilio", "SM123")
	require.NoError(t, err)
	assert.Equal(t, log.ID, found.ID)

	_, err = store.FindByMessageID(ctx, "twilio", "")
	require.ErrorIs(t, err, delivery.ErrLogNotFound)
}
