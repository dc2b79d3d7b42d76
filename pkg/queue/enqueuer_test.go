package queue_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/notify/pkg/queue"
)

type MockEnqueuerStorage struct {
	mock.Mock
}

func (m *MockEnqueuerStorage) CreateJob(ctx context.Context, job *queue.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

type dispatchPayload struct {
	NotificationID string `json:"notification_id"`
	Channel        string `json:"channel"`
}

func TestNewEnqueuer(t *testing.T) {
	t.Parallel()

	t.Run("nil storage", func(t *testing.T) {
		t.Parallel()

		enq, err := queue.NewEnqueuer(nil)
		require.ErrorIs(t, err, queue.ErrStorageNil)
		assert.Nil(t, enq)
	})

	t.Run("valid storage", func(t *testing.T) {
		t.Parallel()

		enq, err := queue.NewEnqueuer(new(MockEnqueuerStorage))
		require.NoError(t, err)
		assert.NotNil(t, enq)
	})
}

func TestEnqueuerEnqueue(t *testing.T) {
	t.Parallel()

	t.Run("creates job with defaults", func(t *testing.T) {
		t.Parallel()

		storage := new(MockEnqueuerStorage)
		var created *queue.Job
		storage.On("CreateJob", mock.Anything, mock.AnythingOfType("*queue.Job")).
			Run(func(args mock.Arguments) {
				created = args.Get(1).(*queue.Job)
			}).Return(nil)

		enq, err := queue.NewEnqueuer(storage)
		require.NoError(t, err)

		payload := dispatchPayload{NotificationID: uuid.NewString(), Channel: "email"}
		id, err := enq.Enqueue(context.Background(), payload)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, id)

		require.NotNil(t, created)
		assert.Equal(t, id, created.ID)
		assert.Equal(t, "default", created.Queue)
		assert.Equal(t, queue.StatusPending, created.Status)
		assert.Equal(t, queue.PriorityDefault, created.Priority)
		assert.Equal(t, int8(0), created.Attempts)
		assert.Equal(t, queue.DefaultMaxAttempts, created.MaxAttempts)
		assert.WithinDuration(t, time.Now(), created.RunAt, time.Second)

		var decoded dispatchPayload
		require.NoError(t, json.Unmarshal(created.Payload, &decoded))
		assert.Equal(t, payload, decoded)

		storage.AssertExpectations(t)
	})

	t.Run("nil payload", func(t *testing.T) {
		t.Parallel()

		enq, err := queue.NewEnqueuer(new(MockEnqueuerStorage))
		require.NoError(t, err)

		_, err = enq.Enqueue(context.Background(), nil)
		require.ErrorIs(t, err, queue.ErrPayloadNil)
	})

	t.Run("options override defaults", func(t *testing.T) {
		t.Parallel()

		storage := new(MockEnqueuerStorage)
		var created *queue.Job
		storage.On("CreateJob", mock.Anything, mock.AnythingOfType("*queue.Job")).
			Run(func(args mock.Arguments) {
				created = args.Get(1).(*queue.Job)
			}).Return(nil)

		enq, err := queue.NewEnqueuer(storage, queue.WithDefaultQueue("notifications"))
		require.NoError(t, err)

		_, err = enq.Enqueue(context.Background(), dispatchPayload{Channel: "sms"},
			queue.WithQueue("urgent"),
			queue.WithPriority(queue.PriorityMax),
			queue.WithMaxAttempts(5),
			queue.WithDelay(time.Minute),
			queue.WithJobName("dispatch.sms"),
		)
		require.NoError(t, err)

		require.NotNil(t, created)
		assert.Equal(t, "urgent", created.Queue)
		assert.Equal(t, queue.PriorityMax, created.Priority)
		assert.Equal(t, int8(5), created.MaxAttempts)
		assert.Equal(t, "dispatch.sms", created.Name)
		assert.WithinDuration(t, time.Now().Add(time.Minute), created.RunAt, time.Second)
	})

	t.Run("invalid priority", func(t *testing.T) {
		t.Parallel()

		enq, err := queue.NewEnqueuer(new(MockEnqueuerStorage))
		require.NoError(t, err)

		_, err = enq.Enqueue(context.Background(), dispatchPayload{}, queue.WithPriority(101))
		require.ErrorIs(t, err, queue.ErrInvalidPriority)
	})

	t.Run("derives name from payload type", func(t *testing.T) {
		t.Parallel()

		storage := new(MockEnqueuerStorage)
		var created *queue.Job
		storage.On("CreateJob", mock.Anything, mock.AnythingOfType("*queue.Job")).
			Run(func(args mock.Arguments) {
				created = args.Get(1).(*queue.Job)
			}).Return(nil)

		enq, err := queue.NewEnqueuer(storage)
		require.NoError(t, err)

		_, err = enq.Enqueue(context.Background(), dispatchPayload{})
		require.NoError(t, err)
		require.NotNil(t, created)
		assert.Equal(t, "queue_test.dispatchPayload", created.Name)
	})
}

func TestJobRank(t *testing.T) {
	t.Parallel()

	now := time.Now()

	t.Run("higher priority ranks earlier at same time", func(t *testing.T) {
		t.Parallel()

		low := queue.Job{RunAt: now, Priority: queue.PriorityMin}
		high := queue.Job{RunAt: now, Priority: queue.PriorityMax}
		assert.Less(t, high.Rank(), low.Rank())
	})

	t.Run("earlier eligible time dominates priority", func(t *testing.T) {
		t.Parallel()

		early := queue.Job{RunAt: now, Priority: queue.PriorityMin}
		late := queue.Job{RunAt: now.Add(time.Second), Priority: queue.PriorityMax}
		assert.Less(t, early.Rank(), late.Rank())
	})
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	base := 30 * time.Second
	assert.Equal(t, 30*time.Second, queue.Backoff(base, 0))
	assert.Equal(t, time.Minute, queue.Backoff(base, 1))
	assert.Equal(t, 2*time.Minute, queue.Backoff(base, 2))
	assert.Equal(t, 4*time.Minute, queue.Backoff(base, 3))
}
