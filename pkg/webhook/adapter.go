package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/notify/pkg/delivery"
	"github.com/campuskit/notify/pkg/fallback"
	"github.com/campuskit/notify/pkg/logger"
	"github.com/campuskit/notify/pkg/notification"
)

// ProviderName identifies webhook deliveries in delivery logs.
const ProviderName = "webhook"

// Adapter fans a notification out to the tenant's active webhook
// subscriptions. Unlike the other channels there is no provider chain:
// each subscription endpoint is its own destination with its own
// circuit breaker and its own delivery log entry.
type Adapter struct {
	subs   SubscriptionStore
	sender *Sender
	logs   delivery.Store
	log    *slog.Logger

	timeout    time.Duration
	maxRetries int

	mu       sync.Mutex
	breakers map[uuid.UUID]*CircuitBreaker
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithAdapterLogger sets the adapter logger.
func WithAdapterLogger(log *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		if log != nil {
			a.log = log
		}
	}
}

// WithAdapterTimeout sets the per-attempt delivery timeout.
func WithAdapterTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithAdapterMaxRetries sets the retry count per endpoint.
func WithAdapterMaxRetries(n int) AdapterOption {
	return func(a *Adapter) {
		if n >= 0 {
			a.maxRetries = n
		}
	}
}

// NewAdapter creates the webhook channel adapter. The delivery store
// receives one log entry per subscription endpoint; pass nil to skip
// per-endpoint logging.
func NewAdapter(subs SubscriptionStore, sender *Sender, logs delivery.Store, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		subs:       subs,
		sender:     sender,
		logs:       logs,
		log:        slog.Default(),
		timeout:    10 * time.Second,
		maxRetries: 2,
		breakers:   make(map[uuid.UUID]*CircuitBreaker),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Channel implements the channel adapter contract.
func (a *Adapter) Channel() notification.Channel { return notification.ChannelWebhook }

// Send implements the channel adapter contract. The recipient is
// ignored: webhook destinations are tenant subscriptions, not user
// addresses. Delivery succeeds when at least one subscription accepted
// the event; a tenant with no matching subscriptions is a no-op
// success.
func (a *Adapter) Send(ctx context.Context, n notification.Notification, _ notification.Recipient) (fallback.SendResult, error) {
	subs, err := a.subs.ActiveForTenant(ctx, n.TenantID)
	if err != nil {
		return fallback.SendResult{}, fmt.Errorf("failed to load webhook subscriptions: %w", err)
	}

	event := NewEvent(n.Type, n.ID, n.TenantID, n.Type, n.ContentFor(notification.ChannelWebhook).Data)
	payload, err := event.Marshal()
	if err != nil {
		return fallback.SendResult{}, fmt.Errorf("failed to encode webhook event: %w", err)
	}

	var matched, delivered int
	var lastErr error
	for _, sub := range subs {
		if !sub.Matches(event.Event) {
			continue
		}
		matched++

		if err := a.deliver(ctx, n, sub, event, payload); err != nil {
			lastErr = err
			a.log.Warn("webhook delivery failed",
				logger.NotificationID(n.ID),
				logger.TenantID(n.TenantID),
				slog.String("subscription_id", sub.ID.String()),
				slog.String("url", sub.URL),
				logger.Error(err))
			continue
		}
		delivered++
	}

	result := fallback.SendResult{
		ProviderID: ProviderName,
		MessageID:  event.ID.String(),
		Status:     notification.StatusDelivered,
		Timestamp:  time.Now(),
	}

	if matched == 0 {
		// Nothing subscribed to this event: nothing to deliver is not a
		// failure for the notification.
		result.Status = notification.StatusSent
		return result, nil
	}
	if delivered == 0 {
		return fallback.SendResult{}, fmt.Errorf("all %d webhook subscriptions failed: %w", matched, lastErr)
	}
	return result, nil
}

// deliver sends one event to one subscription and records the outcome
// in the delivery log keyed by the subscription id.
func (a *Adapter) deliver(ctx context.Context, n notification.Notification, sub Subscription, event Event, payload []byte) error {
	opts := []SendOption{
		WithTimeout(a.timeout),
		WithMaxRetries(a.maxRetries),
		WithCircuitBreaker(a.breakerFor(sub.ID)),
	}
	if sub.Method != "" {
		opts = append(opts, WithMethod(sub.Method))
	}
	if sub.Secret != "" {
		opts = append(opts, WithSignature(sub.Secret))
	}
	if len(sub.Headers) > 0 {
		opts = append(opts, WithHeaders(sub.Headers))
	}

	err := a.sender.SendRaw(ctx, sub.URL, payload, opts...)
	a.recordLog(ctx, n, sub, event, err)
	return err
}

func (a *Adapter) recordLog(ctx context.Context, n notification.Notification, sub Subscription, event Event, sendErr error) {
	if a.logs == nil {
		return
	}

	now := time.Now()
	entry := &delivery.Log{
		ID:             uuid.New(),
		NotificationID: n.ID,
		Channel:        notification.ChannelWebhook,
		Recipient:      sub.URL,
		Provider:       ProviderName,
		MessageID:      event.ID.String(),
		Status:         notification.StatusDelivered,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if sendErr != nil {
		entry.Status = notification.StatusFailed
		entry.Error = sendErr.Error()
		entry.FailedAt = &now
	} else {
		entry.DeliveredAt = &now
	}

	if err := a.logs.Record(ctx, entry); err != nil {
		a.log.Error("failed to record webhook delivery log",
			logger.NotificationID(n.ID),
			slog.String("subscription_id", sub.ID.String()),
			logger.Error(err))
	}
}

func (a *Adapter) breakerFor(id uuid.UUID) *CircuitBreaker {
	a.mu.Lock()
	defer a.mu.Unlock()

	cb, ok := a.breakers[id]
	if !ok {
		cb = NewCircuitBreaker(0, 0, 0)
		a.breakers[id] = cb
	}
	return cb
}
