package email

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/mrz1836/postmark"

	"github.com/campuskit/notify/pkg/fallback"
	"github.com/campuskit/notify/pkg/notification"
)

// PostmarkProvider sends through Postmark's transactional API.
type PostmarkProvider struct {
	client *postmark.Client
	config Config
}

// NewPostmarkProvider creates a Postmark-backed email provider. Both
// tokens are required: failing at construction beats silent no-ops in
// production.
func NewPostmarkProvider(cfg Config) (*PostmarkProvider, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	if cfg.SenderEmail == "" {
		return nil, fmt.Errorf("%w: SenderEmail is required", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(cfg.SenderEmail) {
		return nil, fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}

	return &PostmarkProvider{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		config: cfg,
	}, nil
}

// Name implements fallback.Provider.
func (p *PostmarkProvider) Name() string { return "postmark" }

// Send implements fallback.Provider. Open tracking is enabled for HTML
// only; the Tag carries the delivery correlation back through Postmark's
// webhook events.
func (p *PostmarkProvider) Send(ctx context.Context, msg Message) (fallback.SendResult, error) {
	if err := msg.Validate(); err != nil {
		return fallback.SendResult{}, err
	}

	pm := postmark.Email{
		From:       p.config.SenderEmail,
		ReplyTo:    p.config.SupportEmail,
		To:         msg.To,
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		TextBody:   msg.Text,
		HTMLBody:   msg.Body(),
		Metadata:   msg.Metadata,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	}
	for _, att := range msg.Attachments {
		pm.Attachments = append(pm.Attachments, postmark.Attachment{
			Name:        att.Name,
			Content:     base64.StdEncoding.EncodeToString(att.Content),
			ContentType: att.ContentType,
		})
	}

	resp, err := p.client.SendEmail(ctx, pm)
	if err != nil {
		return fallback.SendResult{}, errors.Join(ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return fallback.SendResult{}, errors.Join(
			ErrSendFailed,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}

	return fallback.SendResult{
		ProviderID: p.Name(),
		MessageID:  resp.MessageID,
		Status:     notification.StatusSent,
		Raw:        fmt.Sprintf(`{"message_id":%q,"to":%q}`, resp.MessageID, resp.To),
		Timestamp:  time.Now(),
	}, nil
}
