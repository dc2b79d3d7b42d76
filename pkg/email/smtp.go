package email

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/campuskit/notify/pkg/fallback"
	"github.com/campuskit/notify/pkg/notification"
)

// SMTPProvider is the last-resort relay for deployments without an API
// provider, typically a school district's own mail gateway. It does not
// support attachments or delivery events; MessageID stays empty so
// reconciliation skips these sends.
type SMTPProvider struct {
	addr   string
	auth   smtp.Auth
	config Config
}

// NewSMTPProvider creates an SMTP relay provider.
func NewSMTPProvider(cfg Config) (*SMTPProvider, error) {
	if cfg.SMTPHost == "" {
		return nil, fmt.Errorf("%w: SMTPHost is required", ErrInvalidConfig)
	}
	if cfg.SenderEmail == "" {
		return nil, fmt.Errorf("%w: SenderEmail is required", ErrInvalidConfig)
	}

	var auth smtp.Auth
	if cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	}

	return &SMTPProvider{
		addr:   fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		auth:   auth,
		config: cfg,
	}, nil
}

// Name implements fallback.Provider.
func (p *SMTPProvider) Name() string { return "smtp" }

// Send implements fallback.Provider.
func (p *SMTPProvider) Send(ctx context.Context, msg Message) (fallback.SendResult, error) {
	if err := msg.Validate(); err != nil {
		return fallback.SendResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return fallback.SendResult{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", p.config.SenderEmail)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body())

	if err := smtp.SendMail(p.addr, p.auth, p.config.SenderEmail, []string{msg.To}, []byte(b.String())); err != nil {
		return fallback.SendResult{}, errors.Join(ErrSendFailed, err)
	}

	return fallback.SendResult{
		ProviderID: p.Name(),
		Status:     notification.StatusSent,
		Timestamp:  time.Now(),
	}, nil
}
