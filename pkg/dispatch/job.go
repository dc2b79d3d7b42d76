package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/campuskit/notify/pkg/notification"
	"github.com/campuskit/notify/pkg/queue"
)

// Job is the queue payload for a deferred or bulk send: one
// notification bound to one recipient.
type Job struct {
	Notification notification.Notification `json:"notification"`
	Recipient    notification.Recipient    `json:"recipient"`
}

// NewJobHandler returns the queue handler that dispatches deferred
// jobs. A dispatch where no channel succeeded returns an error so the
// queue retries it; partial success does not, since retrying would
// double-deliver the channels that already went out.
func NewJobHandler(router *Router) queue.Handler {
	return queue.NewHandler(func(ctx context.Context, job Job) error {
		results, err := router.Dispatch(ctx, &job.Notification, job.Recipient)
		if err != nil {
			return err
		}
		if job.Notification.Status == notification.AggregateFailed {
			for _, res := range results {
				if res.Err != nil {
					return fmt.Errorf("all channels failed: %w", res.Err)
				}
			}
		}
		return nil
	})
}

// queuePriority maps a notification priority onto the queue's rank
// offset range.
func queuePriority(p notification.Priority) queue.Priority {
	switch p {
	case notification.PriorityUrgent:
		return queue.PriorityMax
	case notification.PriorityHigh:
		return queue.PriorityHigh
	case notification.PriorityLow:
		return queue.PriorityLow
	default:
		return queue.PriorityMedium
	}
}

// Enqueue schedules a notification send on the queue instead of
// dispatching inline. The notification's own priority decides the job
// priority; callers add queue options for delay or a custom queue.
func Enqueue(ctx context.Context, enq *queue.Enqueuer, n notification.Notification, recipient notification.Recipient, opts ...queue.EnqueueOption) (uuid.UUID, error) {
	opts = append([]queue.EnqueueOption{queue.WithPriority(queuePriority(n.Priority))}, opts...)
	return enq.Enqueue(ctx, Job{Notification: n, Recipient: recipient}, opts...)
}
