package email_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/notify/pkg/email"
	"github.com/campuskit/notify/pkg/fallback"
	"github.com/campuskit/notify/pkg/notification"
)

type fakeEmailProvider struct {
	name string
	sent []email.Message
	err  error
}

func (p *fakeEmailProvider) Name() string { return p.name }

func (p *fakeEmailProvider) Send(ctx context.Context, msg email.Message) (fallback.SendResult, error) {
	if p.err != nil {
		return fallback.SendResult{}, p.err
	}
	p.sent = append(p.sent, msg)
	return fallback.SendResult{
		ProviderID: p.name,
		MessageID:  "msg-1",
		Status:     notification.StatusSent,
		Timestamp:  time.Now(),
	}, nil
}

type fakeLoader struct {
	attachments map[string]email.Attachment
}

func (l *fakeLoader) Load(ctx context.Context, key string) (email.Attachment, error) {
	att, ok := l.attachments[key]
	if !ok {
		return email.Attachment{}, email.ErrAttachmentNotFound
	}
	return att, nil
}

func feeReminder(t *testing.T) notification.Notification {
	t.Helper()
	n := notification.New("school-1", "fee.reminder", notification.PriorityNormal, []notification.Channel{notification.ChannelEmail})
	n.Content[notification.ChannelEmail] = notification.Content{
		Subject: "Fee reminder",
		Text:    "Your term fee is due Friday.",
	}
	return n
}

func TestAdapterSend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("builds message from notification content", func(t *testing.T) {
		t.Parallel()

		provider := &fakeEmailProvider{name: "postmark"}
		chain := fallback.NewChain(notification.ChannelEmail, []fallback.Provider[email.Message]{provider})
		adapter := email.NewAdapter(chain)

		n := feeReminder(t)
		recipient := notification.Recipient{UserID: "u-1", Name: "Riley", Email: "riley@example.edu"}

		result, err := adapter.Send(ctx, n, recipient)
		require.NoError(t, err)
		assert.Equal(t, "postmark", result.ProviderID)
		assert.Equal(t, notification.StatusSent, result.Status)

		require.Len(t, provider.sent, 1)
		msg := provider.sent[0]
		assert.Equal(t, "riley@example.edu", msg.To)
		assert.Equal(t, "Fee reminder", msg.Subject)
		assert.Equal(t, email.Tag(n), msg.Tag)
		assert.Equal(t, n.ID.String(), msg.Metadata["notification_id"])
	})

	t.Run("no email address fails without provider calls", func(t *testing.T) {
		t.Parallel()

		provider := &fakeEmailProvider{name: "postmark"}
		chain := fallback.NewChain(notification.ChannelEmail, []fallback.Provider[email.Message]{provider})
		adapter := email.NewAdapter(chain)

		_, err := adapter.Send(ctx, feeReminder(t), notification.Recipient{UserID: "u-1"})
		require.ErrorIs(t, err, email.ErrNoEmailAddress)
		assert.Empty(t, provider.sent)
	})

	t.Run("resolves attachments through the loader", func(t *testing.T) {
		t.Parallel()

		provider := &fakeEmailProvider{name: "postmark"}
		chain := fallback.NewChain(notification.ChannelEmail, []fallback.Provider[email.Message]{provider})
		loader := &fakeLoader{attachments: map[string]email.Attachment{
			"invoices/inv-42.pdf": {Name: "inv-42.pdf", ContentType: "application/pdf", Content: []byte("pdf")},
		}}
		adapter := email.NewAdapter(chain, email.WithAttachmentLoader(loader))

		n := feeReminder(t)
		content := n.Content[notification.ChannelEmail]
		content.Attachments = []string{"invoices/inv-42.pdf"}
		n.Content[notification.ChannelEmail] = content

		_, err := adapter.Send(ctx, n, notification.Recipient{UserID: "u-1", Email: "riley@example.edu"})
		require.NoError(t, err)
		require.Len(t, provider.sent, 1)
		require.Len(t, provider.sent[0].Attachments, 1)
		assert.Equal(t, "inv-42.pdf", provider.sent[0].Attachments[0].Name)
	})

	t.Run("missing attachment aborts the send", func(t *testing.T) {
		t.Parallel()

		provider := &fakeEmailProvider{name: "postmark"}
		chain := fallback.NewChain(notification.ChannelEmail, []fallback.Provider[email.Message]{provider})
		adapter := email.NewAdapter(chain, email.WithAttachmentLoader(&fakeLoader{}))

		n := feeReminder(t)
		content := n.Content[notification.ChannelEmail]
		content.Attachments = []string{"missing.pdf"}
		n.Content[notification.ChannelEmail] = content

		_, err := adapter.Send(ctx, n, notification.Recipient{UserID: "u-1", Email: "riley@example.edu"})
		require.ErrorIs(t, err, email.ErrAttachmentNotFound)
		assert.Empty(t, provider.sent)
	})

	t.Run("falls back to generic content", func(t *testing.T) {
		t.Parallel()

		provider := &fakeEmailProvider{name: "postmark"}
		chain := fallback.NewChain(notification.ChannelEmail, []fallback.Provider[email.Message]{provider})
		adapter := email.NewAdapter(chain)

		n := notification.New("school-1", "event.cancelled", notification.PriorityHigh, []notification.Channel{notification.ChannelEmail})
		n.Content[notification.ChannelInApp] = notification.Content{Subject: "Practice cancelled", Text: "No practice today."}

		_, err := adapter.Send(ctx, n, notification.Recipient{UserID: "u-1", Email: "riley@example.edu"})
		require.NoError(t, err)
		require.Len(t, provider.sent, 1)
		assert.Equal(t, "Practice cancelled", provider.sent[0].Subject)
	})
}
