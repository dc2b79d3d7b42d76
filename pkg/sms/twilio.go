package sms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/campuskit/notify/pkg/fallback"
	"github.com/campuskit/notify/pkg/notification"
)

// TwilioProvider sends through the Twilio Messages API.
type TwilioProvider struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioProvider creates a Twilio-backed SMS provider.
func NewTwilioProvider(cfg Config) (*TwilioProvider, error) {
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" {
		return nil, fmt.Errorf("%w: Twilio credentials are required", ErrInvalidConfig)
	}
	if cfg.TwilioFromNumber == "" {
		return nil, fmt.Errorf("%w: TwilioFromNumber is required", ErrInvalidConfig)
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.TwilioAccountSID,
		Password: cfg.TwilioAuthToken,
	})

	return &TwilioProvider{client: client, from: cfg.TwilioFromNumber}, nil
}

// Name implements fallback.Provider.
func (p *TwilioProvider) Name() string { return "twilio" }

// Send implements fallback.Provider. The returned SID correlates
// Twilio's status callbacks with the delivery log.
func (p *TwilioProvider) Send(ctx context.Context, msg Message) (fallback.SendResult, error) {
	if err := msg.Validate(); err != nil {
		return fallback.SendResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return fallback.SendResult{}, err
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(msg.To)
	params.SetFrom(p.from)
	params.SetBody(msg.Body)

	resp, err := p.client.Api.CreateMessage(params)
	if err != nil {
		return fallback.SendResult{}, errors.Join(ErrSendFailed, err)
	}
	if resp.Sid == nil {
		return fallback.SendResult{}, fmt.Errorf("%w: twilio returned no message sid", ErrSendFailed)
	}

	return fallback.SendResult{
		ProviderID: p.Name(),
		MessageID:  *resp.Sid,
		Status:     notification.StatusSent,
		Raw:        fmt.Sprintf(`{"sid":%q}`, *resp.Sid),
		Timestamp:  time.Now(),
	}, nil
}
