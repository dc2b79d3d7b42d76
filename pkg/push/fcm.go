package push

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/appleboy/go-fcm"

	"github.com/campuskit/notify/pkg/fallback"
	"github.com/campuskit/notify/pkg/notification"
)

// FCMProvider sends to android and ios device tokens through Firebase
// Cloud Messaging.
type FCMProvider struct {
	client *fcm.Client
}

// NewFCMProvider creates an FCM-backed push provider.
func NewFCMProvider(serverKey string) (*FCMProvider, error) {
	if serverKey == "" {
		return nil, fmt.Errorf("%w: FCM server key is required", ErrInvalidConfig)
	}
	client, err := fcm.NewClient(serverKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &FCMProvider{client: client}, nil
}

// Name implements fallback.Provider.
func (p *FCMProvider) Name() string { return "fcm" }

// Send implements fallback.Provider. Unregistered and invalid tokens
// reported in the multicast result are handed to the message's
// OnInvalid callback; a send counts as success when at least one token
// was accepted.
func (p *FCMProvider) Send(ctx context.Context, msg Message) (fallback.SendResult, error) {
	if err := msg.Validate(); err != nil {
		return fallback.SendResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return fallback.SendResult{}, err
	}

	data := make(map[string]any, len(msg.Data))
	for k, v := range msg.Data {
		data[k] = v
	}

	resp, err := p.client.Send(&fcm.Message{
		RegistrationIDs: msg.Tokens,
		Priority:        msg.Priority,
		Notification: &fcm.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: data,
	})
	if err != nil {
		return fallback.SendResult{}, errors.Join(ErrSendFailed, err)
	}

	var invalid []string
	for i, res := range resp.Results {
		if i < len(msg.Tokens) && res.Unregistered() {
			invalid = append(invalid, msg.Tokens[i])
		}
	}
	msg.reportInvalid(invalid)

	if resp.Success == 0 {
		return fallback.SendResult{}, fmt.Errorf("%w: fcm rejected all %d tokens", ErrSendFailed, len(msg.Tokens))
	}

	return fallback.SendResult{
		ProviderID: p.Name(),
		MessageID:  fmt.Sprintf("%d", resp.MulticastID),
		Status:     notification.StatusSent,
		Raw:        fmt.Sprintf(`{"success":%d,"failure":%d}`, resp.Success, resp.Failure),
		Timestamp:  time.Now(),
	}, nil
}
