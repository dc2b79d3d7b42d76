package delivery

import (
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/notify/pkg/notification"
)

// Log records one delivery attempt outcome per notification, channel
// and recipient. The triple is unique: later provider events update the
// existing row instead of inserting a second one.
type Log struct {
	ID             uuid.UUID            `json:"id"`
	NotificationID uuid.UUID            `json:"notification_id"`
	Channel        notification.Channel `json:"channel"`
	Recipient      string               `json:"recipient"`
	Provider       string               `json:"provider"`
	MessageID      string               `json:"message_id,omitempty"` // provider-side id, correlates webhook events
	Status         notification.Status  `json:"status"`
	Response       []byte               `json:"response,omitempty"`
	Error          string               `json:"error,omitempty"`
	DeliveredAt    *time.Time           `json:"delivered_at,omitempty"`
	FailedAt       *time.Time           `json:"failed_at,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// applyStatus transitions a log to the given status, stamping the
// delivered/failed timestamps. SENT never downgrades a terminal status:
// provider webhooks can arrive out of order relative to each other and
// to the send acknowledgment.
func (l *Log) applyStatus(status notification.Status, at time.Time) {
	if l.Status.Terminal() && !status.Terminal() {
		return
	}

	l.Status = status
	switch status {
	case notification.StatusDelivered:
		l.DeliveredAt = &at
	case notification.StatusBounced, notification.StatusFailed, notification.StatusRejected:
		l.FailedAt = &at
	}
	l.UpdatedAt = at
}
