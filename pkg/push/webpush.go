package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"github.com/campuskit/notify/pkg/fallback"
	"github.com/campuskit/notify/pkg/notification"
)

// WebPushConfig holds VAPID configuration for browser push.
type WebPushConfig struct {
	Subscriber      string `env:"WEBPUSH_SUBSCRIBER"` // contact mailto: or URL
	VAPIDPublicKey  string `env:"WEBPUSH_VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `env:"WEBPUSH_VAPID_PRIVATE_KEY"`
	TTL             int    `env:"WEBPUSH_TTL" envDefault:"3600"`
}

// WebPushProvider sends to browser subscriptions. Web tokens are
// serialized webpush subscription JSON as handed out by the browser.
type WebPushProvider struct {
	config WebPushConfig
}

// NewWebPushProvider creates a VAPID webpush provider.
func NewWebPushProvider(cfg WebPushConfig) (*WebPushProvider, error) {
	if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
		return nil, fmt.Errorf("%w: VAPID key pair is required", ErrInvalidConfig)
	}
	return &WebPushProvider{config: cfg}, nil
}

// Name implements fallback.Provider.
func (p *WebPushProvider) Name() string { return "webpush" }

type webPushPayload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Send implements fallback.Provider. Gone subscriptions (404/410) are
// handed to the OnInvalid callback; the send succeeds when at least one
// subscription accepted the payload.
func (p *WebPushProvider) Send(ctx context.Context, msg Message) (fallback.SendResult, error) {
	if err := msg.Validate(); err != nil {
		return fallback.SendResult{}, err
	}

	payload, err := json.Marshal(webPushPayload{Title: msg.Title, Body: msg.Body, Data: msg.Data})
	if err != nil {
		return fallback.SendResult{}, fmt.Errorf("failed to marshal webpush payload: %w", err)
	}

	urgency := webpush.UrgencyNormal
	if msg.Priority == PriorityHigh {
		urgency = webpush.UrgencyHigh
	}

	var (
		invalid   []string
		delivered int
		lastErr   error
	)
	for _, token := range msg.Tokens {
		var sub webpush.Subscription
		if err := json.Unmarshal([]byte(token), &sub); err != nil {
			invalid = append(invalid, token)
			continue
		}

		resp, err := webpush.SendNotificationWithContext(ctx, payload, &sub, &webpush.Options{
			Subscriber:      p.config.Subscriber,
			VAPIDPublicKey:  p.config.VAPIDPublicKey,
			VAPIDPrivateKey: p.config.VAPIDPrivateKey,
			TTL:             p.config.TTL,
			Urgency:         urgency,
		})
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			invalid = append(invalid, token)
		} else if resp.StatusCode < 400 {
			delivered++
		} else {
			lastErr = fmt.Errorf("webpush status %d", resp.StatusCode)
		}
		resp.Body.Close()
	}
	msg.reportInvalid(invalid)

	if delivered == 0 {
		if lastErr != nil {
			return fallback.SendResult{}, errors.Join(ErrSendFailed, lastErr)
		}
		return fallback.SendResult{}, fmt.Errorf("%w: no deliverable webpush subscriptions", ErrSendFailed)
	}

	return fallback.SendResult{
		ProviderID: p.Name(),
		Status:     notification.StatusSent,
		Raw:        fmt.Sprintf(`{"delivered":%d,"invalid":%d}`, delivered, len(invalid)),
		Timestamp:  time.Now(),
	}, nil
}
