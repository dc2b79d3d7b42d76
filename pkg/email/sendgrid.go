package email

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/campuskit/notify/pkg/fallback"
	"github.com/campuskit/notify/pkg/notification"
)

// SendGridProvider sends through the SendGrid v3 API. Typically the
// second link in the email chain.
type SendGridProvider struct {
	client *sendgrid.Client
	config Config
}

// NewSendGridProvider creates a SendGrid-backed email provider.
func NewSendGridProvider(cfg Config) (*SendGridProvider, error) {
	if cfg.SendGridAPIKey == "" {
		return nil, fmt.Errorf("%w: SendGridAPIKey is required", ErrInvalidConfig)
	}
	if cfg.SenderEmail == "" {
		return nil, fmt.Errorf("%w: SenderEmail is required", ErrInvalidConfig)
	}

	return &SendGridProvider{
		client: sendgrid.NewSendClient(cfg.SendGridAPIKey),
		config: cfg,
	}, nil
}

// Name implements fallback.Provider.
func (p *SendGridProvider) Name() string { return "sendgrid" }

// Send implements fallback.Provider. The correlation tag travels as a
// category so SendGrid's event webhook echoes it back.
func (p *SendGridProvider) Send(ctx context.Context, msg Message) (fallback.SendResult, error) {
	if err := msg.Validate(); err != nil {
		return fallback.SendResult{}, err
	}

	from := mail.NewEmail(p.config.SenderName, p.config.SenderEmail)
	to := mail.NewEmail(msg.ToName, msg.To)
	sg := mail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.Body())
	if msg.Tag != "" {
		sg.AddCategories(msg.Tag)
	}
	for _, att := range msg.Attachments {
		sg.AddAttachment(mail.NewAttachment().
			SetFilename(att.Name).
			SetType(att.ContentType).
			SetContent(base64.StdEncoding.EncodeToString(att.Content)))
	}

	resp, err := p.client.SendWithContext(ctx, sg)
	if err != nil {
		return fallback.SendResult{}, errors.Join(ErrSendFailed, err)
	}
	if resp.StatusCode >= 400 {
		return fallback.SendResult{}, errors.Join(
			ErrSendFailed,
			fmt.Errorf("sendgrid error: %d - %s", resp.StatusCode, resp.Body),
		)
	}

	var messageID string
	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		messageID = ids[0]
	}

	return fallback.SendResult{
		ProviderID: p.Name(),
		MessageID:  messageID,
		Status:     notification.StatusSent,
		Raw:        fmt.Sprintf(`{"status_code":%d}`, resp.StatusCode),
		Timestamp:  time.Now(),
	}, nil
}
