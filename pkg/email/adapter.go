package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/campuskit/notify/pkg/fallback"
	"github.com/campuskit/notify/pkg/logger"
	"github.com/campuskit/notify/pkg/notification"
)

// Adapter turns a notification into an email and sends it through the
// provider chain.
type Adapter struct {
	chain  *fallback.Chain[Message]
	loader AttachmentLoader
	log    *slog.Logger
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithAttachmentLoader enables attachment resolution from object
// storage. Without a loader, attachment keys are ignored with a warning.
func WithAttachmentLoader(loader AttachmentLoader) AdapterOption {
	return func(a *Adapter) {
		a.loader = loader
	}
}

// WithLogger sets the adapter logger.
func WithLogger(log *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		if log != nil {
			a.log = log
		}
	}
}

// NewAdapter creates the email channel adapter.
func NewAdapter(chain *fallback.Chain[Message], opts ...AdapterOption) *Adapter {
	a := &Adapter{
		chain: chain,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Channel implements the channel adapter contract.
func (a *Adapter) Channel() notification.Channel { return notification.ChannelEmail }

// Tag builds the correlation tag providers echo back through their
// delivery webhooks.
func Tag(n notification.Notification) string {
	return fmt.Sprintf("%s/%s/%s", n.ID, n.TenantID, n.Type)
}

// Send implements the channel adapter contract: resolve the recipient
// address, build the message and walk the chain. A recipient without an
// email address is a validation failure, never retried.
func (a *Adapter) Send(ctx context.Context, n notification.Notification, recipient notification.Recipient) (fallback.SendResult, error) {
	if recipient.Email == "" {
		return fallback.SendResult{}, ErrNoEmailAddress
	}

	content := n.ContentFor(notification.ChannelEmail)
	msg := Message{
		To:      recipient.Email,
		ToName:  recipient.Name,
		Subject: content.Subject,
		Text:    content.Text,
		HTML:    content.HTML,
		Tag:     Tag(n),
		Metadata: map[string]string{
			"notification_id": n.ID.String(),
			"tenant_id":       n.TenantID,
			"type":            n.Type,
		},
	}

	for _, key := range content.Attachments {
		if a.loader == nil {
			a.log.Warn("attachment skipped, no loader configured",
				logger.NotificationID(n.ID),
				slog.String("key", key))
			continue
		}
		att, err := a.loader.Load(ctx, key)
		if err != nil {
			return fallback.SendResult{}, fmt.Errorf("failed to resolve attachment: %w", err)
		}
		msg.Attachments = append(msg.Attachments, att)
	}

	return a.chain.Send(ctx, msg)
}
