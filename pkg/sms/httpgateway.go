package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/campuskit/notify/pkg/fallback"
	"github.com/campuskit/notify/pkg/notification"
)

// GatewayProvider posts messages to a generic JSON SMS gateway. Many
// school deployments route through a local aggregator with exactly this
// shape instead of an international provider.
type GatewayProvider struct {
	url        string
	apiKey     string
	sender     string
	httpClient *http.Client
}

// GatewayOption configures a GatewayProvider.
type GatewayOption func(*GatewayProvider)

// WithGatewayHTTPClient sets the HTTP client, mainly for tests.
func WithGatewayHTTPClient(client *http.Client) GatewayOption {
	return func(p *GatewayProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// NewGatewayProvider creates a generic HTTP gateway SMS provider.
func NewGatewayProvider(cfg Config, opts ...GatewayOption) (*GatewayProvider, error) {
	if cfg.GatewayURL == "" {
		return nil, fmt.Errorf("%w: GatewayURL is required", ErrInvalidConfig)
	}

	p := &GatewayProvider{
		url:        cfg.GatewayURL,
		apiKey:     cfg.GatewayAPIKey,
		sender:     cfg.GatewaySender,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name implements fallback.Provider.
func (p *GatewayProvider) Name() string { return "httpgateway" }

type gatewayRequest struct {
	To   string `json:"to"`
	From string `json:"from,omitempty"`
	Body string `json:"body"`
	Ref  string `json:"ref,omitempty"`
}

type gatewayResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error,omitempty"`
}

// Send implements fallback.Provider.
func (p *GatewayProvider) Send(ctx context.Context, msg Message) (fallback.SendResult, error) {
	if err := msg.Validate(); err != nil {
		return fallback.SendResult{}, err
	}

	payload, err := json.Marshal(gatewayRequest{
		To:   msg.To,
		From: p.sender,
		Body: msg.Body,
		Ref:  msg.Tag,
	})
	if err != nil {
		return fallback.SendResult{}, fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return fallback.SendResult{}, fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fallback.SendResult{}, errors.Join(ErrSendFailed, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 400 {
		return fallback.SendResult{}, errors.Join(
			ErrSendFailed,
			fmt.Errorf("gateway error: %d - %s", resp.StatusCode, body),
		)
	}

	var gw gatewayResponse
	_ = json.Unmarshal(body, &gw)
	if gw.Error != "" {
		return fallback.SendResult{}, fmt.Errorf("%w: gateway error: %s", ErrSendFailed, gw.Error)
	}

	return fallback.SendResult{
		ProviderID: p.Name(),
		MessageID:  gw.MessageID,
		Status:     notification.StatusSent,
		Raw:        string(body),
		Timestamp:  time.Now(),
	}, nil
}
