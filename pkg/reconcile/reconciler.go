package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/notify/pkg/delivery"
	"github.com/campuskit/notify/pkg/logger"
	"github.com/campuskit/notify/pkg/notification"
	"github.com/campuskit/notify/pkg/webhook"
)

var (
	// ErrInvalidCallback is returned when a callback batch cannot be
	// decoded or carries no events.
	ErrInvalidCallback = errors.New("invalid provider callback")

	// ErrMissingCorrelation is returned when an event carries neither a
	// message id nor a (notification, recipient) key.
	ErrMissingCorrelation = errors.New("callback event has no correlation data")
)

// Event is one delivery status event inside a provider callback batch.
// Correlation is either the provider message id echoed back, or the
// (notification id, recipient) pair carried in the provider tag.
type Event struct {
	Event          string               `json:"event"`
	MessageID      string               `json:"message_id,omitempty"`
	NotificationID uuid.UUID            `json:"notification_id,omitempty"`
	Channel        notification.Channel `json:"channel,omitempty"`
	Recipient      string               `json:"recipient,omitempty"`
	Timestamp      time.Time            `json:"timestamp,omitempty"`
	Raw            json.RawMessage      `json:"raw,omitempty"`
}

// Callback is a batch of events from one provider.
type Callback struct {
	Provider string  `json:"provider"`
	Events   []Event `json:"events"`
}

// Result summarizes one Apply pass over a callback batch.
type Result struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"` // unknown correlation, logged and dropped
}

// Reconciler applies asynchronous provider delivery callbacks to the
// delivery log. Updates are idempotent: replaying the same batch leaves
// the logs unchanged.
type Reconciler struct {
	logs delivery.Store
	log  *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the reconciler logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Reconciler) {
		if log != nil {
			r.log = log
		}
	}
}

// New creates a reconciler writing to the given delivery log store.
func New(logs delivery.Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		logs: logs,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ingest verifies an inbound callback body against its signature
// headers, decodes the batch and applies it. A missing or mismatched
// signature rejects the whole batch before any event is applied.
func (r *Reconciler) Ingest(ctx context.Context, secret string, body []byte, header http.Header) (Result, error) {
	if err := webhook.VerifyRequest(secret, body, header); err != nil {
		return Result{}, err
	}

	var cb Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidCallback, err)
	}
	return r.Apply(ctx, cb)
}

// Apply maps each event to a canonical status and updates the matching
// delivery log rows. Events with unknown correlation are skipped, not
// escalated: callbacks routinely outlive the retention of the rows they
// reference.
func (r *Reconciler) Apply(ctx context.Context, cb Callback) (Result, error) {
	if cb.Provider == "" || len(cb.Events) == 0 {
		return Result{}, ErrInvalidCallback
	}

	var res Result
	for _, ev := range cb.Events {
		status := MapEvent(ev.Event)

		updated, err := r.applyEvent(ctx, cb.Provider, ev, status)
		switch {
		case errors.Is(err, delivery.ErrLogNotFound):
			res.Skipped++
			r.log.Warn("callback event matched no delivery log",
				logger.Provider(cb.Provider),
				logger.Event(ev.Event),
				slog.String("message_id", ev.MessageID),
				logger.NotificationID(ev.NotificationID))
		case errors.Is(err, ErrMissingCorrelation):
			res.Skipped++
			r.log.Warn("callback event has no correlation data",
				logger.Provider(cb.Provider),
				logger.Event(ev.Event))
		case err != nil:
			return res, fmt.Errorf("failed to apply callback event: %w", err)
		default:
			res.Applied += updated
		}
	}
	return res, nil
}

func (r *Reconciler) applyEvent(ctx context.Context, provider string, ev Event, status notification.Status) (int, error) {
	if ev.MessageID != "" {
		if _, err := r.logs.UpdateStatus(ctx, provider, ev.MessageID, status, ev.Raw); err != nil {
			return 0, err
		}
		return 1, nil
	}

	if ev.NotificationID == uuid.Nil || ev.Recipient == "" {
		return 0, ErrMissingCorrelation
	}
	updated, err := r.logs.UpdateStatusByKey(ctx, ev.NotificationID, ev.Channel, ev.Recipient, status, ev.Raw)
	if err != nil {
		return 0, err
	}
	return len(updated), nil
}
