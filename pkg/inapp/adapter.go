package inapp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/notify/pkg/fallback"
	"github.com/campuskit/notify/pkg/logger"
	"github.com/campuskit/notify/pkg/notification"
)

// ProviderName identifies in-app deliveries in delivery logs.
const ProviderName = "inapp"

// Adapter delivers notifications to the in-app channel: store first so
// nothing is lost, then best-effort push to whatever connections are
// live. The unread count is recomputed and pushed after every send and
// every mark-read.
type Adapter struct {
	storage  Storage
	registry *Registry
	log      *slog.Logger
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(log *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		if log != nil {
			a.log = log
		}
	}
}

// NewAdapter creates the in-app channel adapter.
func NewAdapter(storage Storage, registry *Registry, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		storage:  storage,
		registry: registry,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Channel implements the channel adapter contract.
func (a *Adapter) Channel() notification.Channel { return notification.ChannelInApp }

// Send implements the channel adapter contract. The record is persisted
// before any live push, so a user with zero connections simply finds it
// on the next connect. Live push failures are pruned, not escalated.
func (a *Adapter) Send(ctx context.Context, n notification.Notification, recipient notification.Recipient) (fallback.SendResult, error) {
	content := n.ContentFor(notification.ChannelInApp)
	rec := &Record{
		UserID:         recipient.UserID,
		NotificationID: n.ID,
		Type:           n.Type,
		Subject:        content.Subject,
		Body:           content.Text,
		Data:           content.Data,
		Actions:        ActionsFor(n.Type),
	}

	if err := a.storage.Create(ctx, rec); err != nil {
		return fallback.SendResult{}, fmt.Errorf("failed to store in-app notification: %w", err)
	}

	pushed, err := a.registry.Push(recipient.UserID, Frame{Type: "notification", Data: rec})
	if err != nil {
		a.log.Warn("failed to push in-app notification",
			logger.NotificationID(n.ID),
			logger.UserID(recipient.UserID),
			logger.Error(err))
	}
	a.pushUnreadCount(ctx, recipient.UserID)

	// Stored is the delivery guarantee here; a live push on top of it
	// confirms receipt.
	status := notification.StatusSent
	if pushed > 0 {
		status = notification.StatusDelivered
	}
	return fallback.SendResult{
		ProviderID: ProviderName,
		MessageID:  rec.ID.String(),
		Status:     status,
		Timestamp:  time.Now(),
	}, nil
}

// List returns the user's stored notifications.
func (a *Adapter) List(ctx context.Context, userID string, opts ListOptions) ([]Record, error) {
	return a.storage.List(ctx, userID, opts)
}

// Disconnect unregisters a live connection. Safe to call for
// connections the registry no longer tracks.
func (a *Adapter) Disconnect(userID string, conn Conn) {
	a.registry.Remove(userID, conn)
}

// MarkRead stamps records read and pushes the refreshed unread count to
// the user's live connections.
func (a *Adapter) MarkRead(ctx context.Context, userID string, ids ...uuid.UUID) error {
	if err := a.storage.MarkRead(ctx, userID, ids...); err != nil {
		return err
	}
	a.pushUnreadCount(ctx, userID)
	return nil
}

// Replay registers a freshly connected client and pushes its pending
// unread records and current unread count to that connection only.
func (a *Adapter) Replay(ctx context.Context, userID string, conn Conn) error {
	a.registry.Add(userID, conn)

	pending, err := a.storage.List(ctx, userID, ListOptions{OnlyUnread: true})
	if err != nil {
		return fmt.Errorf("failed to load pending in-app notifications: %w", err)
	}
	for i := len(pending) - 1; i >= 0; i-- { // oldest first
		if err := a.registry.WriteTo(conn, Frame{Type: "notification", Data: pending[i]}); err != nil {
			a.registry.Remove(userID, conn)
			return err
		}
	}

	count, err := a.storage.CountUnread(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to count unread in-app notifications: %w", err)
	}
	return a.registry.WriteTo(conn, Frame{Type: "unread_count", Data: count})
}

func (a *Adapter) pushUnreadCount(ctx context.Context, userID string) {
	count, err := a.storage.CountUnread(ctx, userID)
	if err != nil {
		a.log.Warn("failed to count unread in-app notifications",
			logger.UserID(userID),
			logger.Error(err))
		return
	}
	if _, err := a.registry.Push(userID, Frame{Type: "unread_count", Data: count}); err != nil {
		a.log.Warn("failed to push unread count",
			logger.UserID(userID),
			logger.Error(err))
	}
}
