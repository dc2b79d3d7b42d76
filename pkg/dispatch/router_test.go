package dispatch_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/notify/pkg/delivery"
	"github.com/campuskit/notify/pkg/dispatch"
	"github.com/campuskit/notify/pkg/fallback"
	"github.com/campuskit/notify/pkg/notification"
	"github.com/campuskit/notify/pkg/queue"
)

type stubAdapter struct {
	channel notification.Channel
	result  fallback.SendResult
	err     error
	calls   int
}

func (a *stubAdapter) Channel() notification.Channel { return a.channel }

func (a *stubAdapter) Send(ctx context.Context, n notification.Notification, recipient notification.Recipient) (fallback.SendResult, error) {
	a.calls++
	if a.err != nil {
		return fallback.SendResult{}, a.err
	}
	return a.result, nil
}

func okAdapter(ch notification.Channel, provider string) *stubAdapter {
	return &stubAdapter{
		channel: ch,
		result: fallback.SendResult{
			ProviderID: provider,
			MessageID:  "msg-1",
			Status:     notification.StatusSent,
			Timestamp:  time.Now(),
		},
	}
}

func newNotification(channels ...notification.Channel) *notification.Notification {
	n := notification.New("school-1", "fee.reminder", notification.PriorityNormal, channels)
	n.Content[notification.ChannelInApp] = notification.Content{Subject: "Fee due", Text: "Term fee is due Friday"}
	return &n
}

var recipient = notification.Recipient{
	UserID: "user-1",
	Email:  "parent@example.com",
	Phone:  "+14155552671",
}

func TestRouterDispatch(t *testing.T) {
	t.Parallel()

	t.Run("all channels succeed", func(t *testing.T) {
		t.Parallel()

		email := okAdapter(notification.ChannelEmail, "postmark")
		sms := okAdapter(notification.ChannelSMS, "twilio")
		logs := delivery.NewMemoryStore()
		router := dispatch.NewRouter(logs, []dispatch.Adapter{email, sms})

		n := newNotification(notification.ChannelEmail, notification.ChannelSMS)
		results, err := router.Dispatch(context.Background(), n, recipient)
		require.NoError(t, err)

		require.Len(t, results, 2)
		assert.True(t, results[notification.ChannelEmail].Succeeded())
		assert.True(t, results[notification.ChannelSMS].Succeeded())
		assert.Equal(t, notification.AggregateSent, n.Status)
		assert.NotNil(t, n.SentAt)
		assert.Equal(t, 1, email.calls)
		assert.Equal(t, 1, sms.calls)

		entries, err := logs.ListByNotification(context.Background(), n.ID)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("partial success", func(t *testing.T) {
		t.Parallel()

		email := okAdapter(notification.ChannelEmail, "postmark")
		sms := &stubAdapter{channel: notification.ChannelSMS, err: errors.New("all providers down")}
		logs := delivery.NewMemoryStore()
		router := dispatch.NewRouter(logs, []dispatch.Adapter{email, sms})

		n := newNotification(notification.ChannelEmail, notification.ChannelSMS)
		results, err := router.Dispatch(context.Background(), n, recipient)
		require.NoError(t, err)

		assert.Equal(t, notification.AggregatePartial, n.Status)
		assert.NotNil(t, n.SentAt)
		assert.True(t, results[notification.ChannelEmail].Succeeded())
		assert.False(t, results[notification.ChannelSMS].Succeeded())

		// Both outcomes land in the log, the failure truthfully.
		entries, err := logs.ListByNotification(context.Background(), n.ID)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		for _, e := range entries {
			if e.Channel == notification.ChannelSMS {
				assert.Equal(t, notification.StatusFailed, e.Status)
				assert.Contains(t, e.Error, "all providers down")
				assert.NotNil(t, e.FailedAt)
			} else {
				assert.Equal(t, notification.StatusSent, e.Status)
			}
		}
	})

	t.Run("all channels fail", func(t *testing.T) {
		t.Parallel()

		email := &stubAdapter{channel: notification.ChannelEmail, err: errors.New("boom")}
		router := dispatch.NewRouter(delivery.NewMemoryStore(), []dispatch.Adapter{email})

		n := newNotification(notification.ChannelEmail)
		_, err := router.Dispatch(context.Background(), n, recipient)
		require.NoError(t, err)
		assert.Equal(t, notification.AggregateFailed, n.Status)
		assert.Nil(t, n.SentAt)
	})

	t.Run("missing adapter fails that channel only", func(t *testing.T) {
		t.Parallel()

		email := okAdapter(notification.ChannelEmail, "postmark")
		router := dispatch.NewRouter(delivery.NewMemoryStore(), []dispatch.Adapter{email})

		n := newNotification(notification.ChannelEmail, notification.ChannelPush)
		results, err := router.Dispatch(context.Background(), n, recipient)
		require.NoError(t, err)

		assert.True(t, results[notification.ChannelEmail].Succeeded())
		assert.ErrorIs(t, results[notification.ChannelPush].Err, dispatch.ErrNoAdapter)
		assert.Equal(t, notification.AggregatePartial, n.Status)
	})

	t.Run("no channels rejected", func(t *testing.T) {
		t.Parallel()

		router := dispatch.NewRouter(delivery.NewMemoryStore(), nil)
		n := newNotification()
		_, err := router.Dispatch(context.Background(), n, recipient)
		assert.ErrorIs(t, err, dispatch.ErrNoChannels)
	})

	t.Run("log recipient is the channel contact address", func(t *testing.T) {
		t.Parallel()

		email := okAdapter(notification.ChannelEmail, "postmark")
		sms := okAdapter(notification.ChannelSMS, "twilio")
		logs := delivery.NewMemoryStore()
		router := dispatch.NewRouter(logs, []dispatch.Adapter{email, sms})

		n := newNotification(notification.ChannelEmail, notification.ChannelSMS)
		_, err := router.Dispatch(context.Background(), n, recipient)
		require.NoError(t, err)

		entries, err := logs.ListByNotification(context.Background(), n.ID)
		require.NoError(t, err)

		byChannel := make(map[notification.Channel]delivery.Log)
		for _, e := range entries {
			byChannel[e.Channel] = e
		}
		assert.Equal(t, "parent@example.com", byChannel[notification.ChannelEmail].Recipient)
		assert.Equal(t, "+14155552671", byChannel[notification.ChannelSMS].Recipient)
	})
}

func TestChannelResultJSON(t *testing.T) {
	t.Parallel()

	store := delivery.NewMemoryStore()
	router := dispatch.NewRouter(store, []dispatch.Adapter{
		okAdapter(notification.ChannelEmail, "postmark"),
		&stubAdapter{channel: notification.ChannelSMS, err: errors.New("gateway unreachable")},
	})

	n := newNotification(notification.ChannelEmail, notification.ChannelSMS)
	results, err := router.Dispatch(context.Background(), n, recipient)
	require.NoError(t, err)

	raw, err := json.Marshal(results)
	require.NoError(t, err)

	var wire map[notification.Channel]struct {
		Result  fallback.SendResult `json:"result"`
		Success bool                `json:"success"`
		Error   string              `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &wire))

	ok := wire[notification.ChannelEmail]
	assert.True(t, ok.Success)
	assert.Empty(t, ok.Error)
	assert.Equal(t, "postmark", ok.Result.ProviderID)

	failed := wire[notification.ChannelSMS]
	assert.False(t, failed.Success)
	assert.Contains(t, failed.Error, "gateway unreachable")
}

func TestJobHandler(t *testing.T) {
	t.Parallel()

	t.Run("successful dispatch completes the job", func(t *testing.T) {
		t.Parallel()

		router := dispatch.NewRouter(delivery.NewMemoryStore(),
			[]dispatch.Adapter{okAdapter(notification.ChannelEmail, "postmark")})
		handler := dispatch.NewJobHandler(router)

		n := newNotification(notification.ChannelEmail)
		payload, err := json.Marshal(dispatch.Job{Notification: *n, Recipient: recipient})
		require.NoError(t, err)

		assert.NoError(t, handler.Handle(context.Background(), payload))
	})

	t.Run("total failure surfaces for queue retry", func(t *testing.T) {
		t.Parallel()

		router := dispatch.NewRouter(delivery.NewMemoryStore(),
			[]dispatch.Adapter{&stubAdapter{channel: notification.ChannelEmail, err: errors.New("down")}})
		handler := dispatch.NewJobHandler(router)

		n := newNotification(notification.ChannelEmail)
		payload, err := json.Marshal(dispatch.Job{Notification: *n, Recipient: recipient})
		require.NoError(t, err)

		err = handler.Handle(context.Background(), payload)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "all channels failed")
	})
}

func TestEnqueuePriorityMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		priority notification.Priority
		want     queue.Priority
	}{
		{"urgent", notification.PriorityUrgent, queue.PriorityMax},
		{"high", notification.PriorityHigh, queue.PriorityHigh},
		{"normal", notification.PriorityNormal, queue.PriorityMedium},
		{"low", notification.PriorityLow, queue.PriorityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			storage := queue.NewMemoryStorage()
			enq, err := queue.NewEnqueuer(storage)
			require.NoError(t, err)

			n := notification.New("school-1", "fee.reminder", tt.priority,
				[]notification.Channel{notification.ChannelEmail})
			jobID, err := dispatch.Enqueue(context.Background(), enq, n, recipient)
			require.NoError(t, err)

			job, err := storage.ClaimJob(context.Background(), uuid.New(), []string{queue.DefaultQueueName}, time.Minute)
			require.NoError(t, err)
			assert.Equal(t, jobID, job.ID)
			assert.Equal(t, tt.want, job.Priority)
		})
	}
}
