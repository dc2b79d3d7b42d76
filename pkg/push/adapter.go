package push

import (
	"context"
	"log/slog"

	"github.com/campuskit/notify/pkg/fallback"
	"github.com/campuskit/notify/pkg/logger"
	"github.com/campuskit/notify/pkg/notification"
)

// Adapter turns a notification into a push message for the recipient's
// active device tokens and sends it through the provider chain.
type Adapter struct {
	chain  *fallback.Chain[Message]
	tokens TokenStore
	log    *slog.Logger
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

// NewAdapter creates the push channel adapter.
func NewAdapter(chain *fallback.Chain[Message], tokens TokenStore, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		chain:  chain,
		tokens: tokens,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Channel implements the channel adapter contract.
func (a *Adapter) Channel() notification.Channel { return notification.ChannelPush }

// mapPriority folds notification priority onto the two push delivery
// classes.
func mapPriority(p notification.Priority) string {
	if p >= notification.PriorityHigh {
		return PriorityHigh
	}
	return PriorityNormal
}

// Send implements the channel adapter contract. A recipient with no
// active tokens fails fast before any provider call; tokens a provider
// reports invalid are deactivated in the store.
func (a *Adapter) Send(ctx context.Context, n notification.Notification, recipient notification.Recipient) (fallback.SendResult, error) {
	tokens, err := a.tokens.ActiveTokens(ctx, recipient.UserID)
	if err != nil {
		return fallback.SendResult{}, err
	}
	if len(tokens) == 0 {
		return fallback.SendResult{}, ErrNoDeviceTokens
	}

	values := make([]string, len(tokens))
	for i, t := range tokens {
		values[i] = t.Token
	}

	content := n.ContentFor(notification.ChannelPush)
	data := map[string]string{
		"notification_id": n.ID.String(),
		"type":            n.Type,
	}
	for k, v := range content.Data {
		if s, ok := v.(string); ok {
			data[k] = s
		}
	}

	msg := Message{
		Tokens:   values,
		Title:    content.Subject,
		Body:     content.Text,
		Data:     data,
		Priority: mapPriority(n.Priority),
		OnInvalid: func(invalid []string) {
			if err := a.tokens.Deactivate(ctx, invalid...); err != nil {
				a.log.Error("failed to deactivate invalid push tokens",
					logger.UserID(recipient.UserID),
					logger.Error(err))
				return
			}
			a.log.Info("deactivated invalid push tokens",
				logger.UserID(recipient.UserID),
				slog.Int("count", len(invalid)))
		},
	}

	return a.chain.Send(ctx, msg)
}
