package fallback

import (
	"context"
	"log/slog"
	"time"

	"github.com/campuskit/notify/pkg/logger"
	"github.com/campuskit/notify/pkg/notification"
)

// SendResult is the canonical result every provider normalizes its
// response into.
type SendResult struct {
	ProviderID string              `json:"provider"`
	MessageID  string              `json:"message_id,omitempty"` // remote id assigned by the provider
	Status     notification.Status `json:"status"`
	Raw        string              `json:"raw,omitempty"` // provider raw response for the delivery log
	Timestamp  time.Time           `json:"timestamp"`
}

// Provider is one backend implementation of a channel. A closed set of
// provider variants implements this per channel; the active set is
// resolved at configuration-load time.
type Provider[T any] interface {
	// Name identifies the provider in delivery logs and chain config.
	Name() string
	// Send performs one delivery attempt and normalizes the response.
	Send(ctx context.Context, msg T) (SendResult, error)
}

// Chain tries providers strictly in configured order until one
// succeeds. Providers are never raced in parallel: racing could hand
// the same message to two backends and duplicate delivery.
type Chain[T any] struct {
	channel   notification.Channel
	providers []Provider[T]
	logger    *slog.Logger
}

// ChainOption configures a Chain.
type ChainOption[T any] func(*Chain[T])

// WithChainLogger sets the logger used for per-attempt failures.
func WithChainLogger[T any](log *slog.Logger) ChainOption[T] {
	return func(c *Chain[T]) {
		if log != nil {
			c.logger = log
		}
	}
}

// NewChain builds a fallback chain for a channel. An empty provider
// list is allowed at construction; Send fails with ErrNoProviders.
func NewChain[T any](channel notification.Channel, providers []Provider[T], opts ...ChainOption[T]) *Chain[T] {
	c := &Chain[T]{
		channel:   channel,
		providers: providers,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Providers returns the configured provider names in order.
func (c *Chain[T]) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Send walks the chain: try the first provider, on any error log and
// try the next, until one succeeds or the list is exhausted. Exhaustion
// returns an *ExhaustionError carrying every attempt and the last
// provider's error.
func (c *Chain[T]) Send(ctx context.Context, msg T) (SendResult, error) {
	if len(c.providers) == 0 {
		return SendResult{}, &ExhaustionError{Channel: c.channel, Last: ErrNoProviders}
	}

	attempts := make([]ProviderAttempt, 0, len(c.providers))
	for _, p := range c.providers {
		res, err := p.Send(ctx, msg)
		if err == nil {
			res.ProviderID = p.Name()
			if res.Status == "" {
				res.Status = notification.StatusSent
			}
			if res.Timestamp.IsZero() {
				res.Timestamp = time.Now()
			}
			return res, nil
		}

		attempts = append(attempts, ProviderAttempt{Provider: p.Name(), Err: err})
		c.logger.LogAttrs(ctx, slog.LevelWarn, "provider send failed, trying next in chain",
			logger.Channel(string(c.channel)),
			logger.Provider(p.Name()),
			logger.Error(err),
		)

		// A cancelled context would make every remaining provider fail
		// the same way; stop walking instead.
		if ctx.Err() != nil {
			break
		}
	}

	return SendResult{}, &ExhaustionError{
		Channel:  c.channel,
		Attempts: attempts,
		Last:     attempts[len(attempts)-1].Err,
	}
}
