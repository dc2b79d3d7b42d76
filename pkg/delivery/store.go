package delivery

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/campuskit/notify/pkg/notification"
)

var (
	// ErrLogNil is returned when a nil log is recorded.
	ErrLogNil = errors.New("delivery log cannot be nil")

	// ErrLogNotFound is returned when no log matches the lookup.
	ErrLogNotFound = errors.New("delivery log not found")
)

// Store persists delivery logs.
type Store interface {
	// Record upserts a log on its (notification, channel, recipient)
	// key. Re-recording the same delivery updates the existing entry.
	Record(ctx context.Context, log *Log) error

	// UpdateStatus applies a provider status event to the log matched by
	// provider and remote message id, keeping the raw event payload.
	// Applying the same event twice leaves a single unchanged entry.
	UpdateStatus(ctx context.Context, provider, messageID string, status notification.Status, raw []byte) (*Log, error)

	// UpdateStatusByKey applies a status event to the logs matched by
	// notification id and recipient. An empty channel matches every
	// channel. Updates only, never inserts.
	UpdateStatusByKey(ctx context.Context, notificationID uuid.UUID, channel notification.Channel, recipient string, status notification.Status, raw []byte) ([]Log, error)

	// ListByNotification returns all logs for a notification.
	ListByNotification(ctx context.Context, notificationID uuid.UUID) ([]Log, error)

	// FindByMessageID looks up the log correlated to a provider message.
	FindByMessageID(ctx context.Context, provider, messageID string) (*Log, error)
}
