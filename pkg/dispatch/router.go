package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/notify/pkg/delivery"
	"github.com/campuskit/notify/pkg/fallback"
	"github.com/campuskit/notify/pkg/logger"
	"github.com/campuskit/notify/pkg/notification"
)

var (
	// ErrNoChannels is returned when a notification requests no channels.
	ErrNoChannels = errors.New("notification has no target channels")

	// ErrNoAdapter marks a requested channel with no configured adapter.
	ErrNoAdapter = errors.New("no adapter configured for channel")
)

// Adapter is one channel's delivery implementation. Adapters build the
// channel payload and walk their provider chain; outcome persistence is
// the router's job.
type Adapter interface {
	Channel() notification.Channel
	Send(ctx context.Context, n notification.Notification, recipient notification.Recipient) (fallback.SendResult, error)
}

// ChannelResult is the per-channel outcome of one dispatch.
type ChannelResult struct {
	Result fallback.SendResult `json:"result"`
	Err    error               `json:"-"`
}

// Succeeded reports whether the channel delivered.
func (r ChannelResult) Succeeded() bool { return r.Err == nil }

// MarshalJSON carries the outcome explicitly so HTTP callers can
// inspect per-channel results without relying on zero-value sniffing.
func (r ChannelResult) MarshalJSON() ([]byte, error) {
	wire := struct {
		Result  fallback.SendResult `json:"result"`
		Success bool                `json:"success"`
		Error   string              `json:"error,omitempty"`
	}{Result: r.Result, Success: r.Err == nil}
	if r.Err != nil {
		wire.Error = r.Err.Error()
	}
	return json.Marshal(wire)
}

// Router fans a notification out to its requested channels. Channels
// fail independently: one channel's failure never blocks another, and
// every outcome lands in the delivery log whether it succeeded or not.
type Router struct {
	adapters map[notification.Channel]Adapter
	logs     delivery.Store
	log      *slog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithLogger sets the router logger.
func WithLogger(log *slog.Logger) RouterOption {
	return func(r *Router) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRouter creates a router over the given adapters. The adapter set
// is fixed at construction; an unconfigured channel fails dispatch for
// that channel only.
func NewRouter(logs delivery.Store, adapters []Adapter, opts ...RouterOption) *Router {
	r := &Router{
		adapters: make(map[notification.Channel]Adapter, len(adapters)),
		logs:     logs,
		log:      slog.Default(),
	}
	for _, a := range adapters {
		r.adapters[a.Channel()] = a
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dispatch sends the notification to the recipient over every requested
// channel and aggregates the outcome onto the notification: sent when
// all channels succeeded, partial when some did, failed when none did.
// The per-channel results always reflect the true outcome regardless of
// the aggregate.
func (r *Router) Dispatch(ctx context.Context, n *notification.Notification, recipient notification.Recipient) (map[notification.Channel]ChannelResult, error) {
	if n == nil || len(n.Channels) == 0 {
		return nil, ErrNoChannels
	}

	results := make(map[notification.Channel]ChannelResult, len(n.Channels))
	var succeeded, failed int

	for _, ch := range n.Channels {
		res := r.dispatchChannel(ctx, *n, recipient, ch)
		results[ch] = res

		if res.Succeeded() {
			succeeded++
		} else {
			failed++
			r.log.Warn("channel dispatch failed",
				logger.NotificationID(n.ID),
				logger.TenantID(n.TenantID),
				logger.Channel(string(ch)),
				logger.UserID(recipient.UserID),
				logger.Error(res.Err))
		}
	}

	n.Status = notification.Aggregate(succeeded, failed)
	if succeeded > 0 && n.SentAt == nil {
		now := time.Now()
		n.SentAt = &now
	}
	return results, nil
}

func (r *Router) dispatchChannel(ctx context.Context, n notification.Notification, recipient notification.Recipient, ch notification.Channel) ChannelResult {
	adapter, ok := r.adapters[ch]
	if !ok {
		res := ChannelResult{Err: ErrNoAdapter}
		r.recordOutcome(ctx, n, recipient, ch, res)
		return res
	}

	result, err := adapter.Send(ctx, n, recipient)
	res := ChannelResult{Result: result, Err: err}

	// The webhook adapter logs per subscription endpoint itself; a
	// router-level row keyed by the user would collide across
	// subscriptions.
	if ch != notification.ChannelWebhook {
		r.recordOutcome(ctx, n, recipient, ch, res)
	}
	return res
}

// recordOutcome writes the per-channel delivery log row. Log write
// failures are logged, not propagated: the send already happened and
// must not be retried because bookkeeping lagged.
func (r *Router) recordOutcome(ctx context.Context, n notification.Notification, recipient notification.Recipient, ch notification.Channel, res ChannelResult) {
	if r.logs == nil {
		return
	}

	now := time.Now()
	entry := &delivery.Log{
		ID:             uuid.New(),
		NotificationID: n.ID,
		Channel:        ch,
		Recipient:      logRecipient(ch, recipient),
		Provider:       res.Result.ProviderID,
		MessageID:      res.Result.MessageID,
		Status:         res.Result.Status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if res.Result.Raw != "" {
		entry.Response = []byte(res.Result.Raw)
	}
	if res.Err != nil {
		entry.Status = notification.StatusFailed
		entry.Error = res.Err.Error()
		entry.FailedAt = &now
	} else if entry.Status == "" {
		entry.Status = notification.StatusSent
	}

	if err := r.logs.Record(ctx, entry); err != nil {
		r.log.Error("failed to record delivery log",
			logger.NotificationID(n.ID),
			logger.Channel(string(ch)),
			logger.Error(err))
	}
}

// logRecipient picks the delivery log recipient key for a channel: the
// contact address where one exists, the user id otherwise.
func logRecipient(ch notification.Channel, recipient notification.Recipient) string {
	switch ch {
	case notification.ChannelEmail:
		if recipient.Email != "" {
			return recipient.Email
		}
	case notification.ChannelSMS:
		for _, candidate := range recipient.PhoneCandidates() {
			if candidate != "" {
				return candidate
			}
		}
	}
	return recipient.UserID
}
