package sms

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/campuskit/notify/pkg/fallback"
	"github.com/campuskit/notify/pkg/notification"
)

// Adapter turns a notification into an SMS and sends it through the
// provider chain.
type Adapter struct {
	chain         *fallback.Chain[Message]
	defaultRegion string
	log           *slog.Logger
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

// NewAdapter creates the SMS channel adapter. defaultRegion applies to
// numbers stored without a country code.
func NewAdapter(chain *fallback.Chain[Message], defaultRegion string, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		chain:         chain,
		defaultRegion: defaultRegion,
		log:           slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Channel implements the channel adapter contract.
func (a *Adapter) Channel() notification.Channel { return notification.ChannelSMS }

// Send implements the channel adapter contract: resolve a usable phone
// number across the profile sources, normalize to E.164 and walk the
// chain. No usable number is a validation failure, never retried.
func (a *Adapter) Send(ctx context.Context, n notification.Notification, recipient notification.Recipient) (fallback.SendResult, error) {
	to, err := ResolvePhone(recipient.PhoneCandidates(), a.defaultRegion)
	if err != nil {
		return fallback.SendResult{}, err
	}

	content := n.ContentFor(notification.ChannelSMS)
	if content.Text == "" {
		return fallback.SendResult{}, ErrNoBody
	}

	msg := Message{
		To:   to,
		Body: content.Text,
		Tag:  fmt.Sprintf("%s/%s/%s", n.ID, n.TenantID, n.Type),
	}

	return a.chain.Send(ctx, msg)
}
