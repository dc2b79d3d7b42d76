package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sender delivers signed payloads over HTTP with retries and circuit
// breaking. The zero value is not usable; use NewSender.
type Sender struct {
	client *http.Client
}

// NewSender creates a webhook sender with a pooled HTTP client.
func NewSender() *Sender {
	return &Sender{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// NewSenderWithClient creates a sender with a custom HTTP client.
func NewSenderWithClient(client *http.Client) *Sender {
	if client == nil {
		return NewSender()
	}
	return &Sender{client: client}
}

// Send marshals data to JSON and delivers it to the URL with retry
// logic. Only retryable failures (network errors, 5xx, 429, 408) are
// retried; other 4xx responses fail immediately as ErrPermanentFailure.
func (s *Sender) Send(ctx context.Context, webhookURL string, data any, opts ...SendOption) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal payload to JSON: %w", err)
	}
	return s.SendRaw(ctx, webhookURL, payload, opts...)
}

// SendRaw delivers exact payload bytes. The signature is computed over
// these bytes, so a receiver verifying against the raw body always
// matches.
func (s *Sender) SendRaw(ctx context.Context, webhookURL string, payload []byte, opts ...SendOption) error {
	if err := validateInputs(webhookURL, payload); err != nil {
		return err
	}

	options := defaultSendOptions()
	for _, opt := range opts {
		opt(options)
	}

	client := s.client
	if options.httpClient != nil {
		client = options.httpClient
	}

	if options.circuitBreaker != nil && !options.circuitBreaker.Allow() {
		return ErrCircuitOpen
	}

	var lastErr error
	for attempt := 0; attempt <= options.maxRetries; attempt++ {
		if attempt > 0 {
			delay := options.backoffStrategy.NextInterval(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := s.attemptDelivery(ctx, client, webhookURL, payload, options)

		if options.onDelivery != nil {
			result.Attempt = attempt + 1
			options.onDelivery(result)
		}

		if options.circuitBreaker != nil {
			if err == nil {
				options.circuitBreaker.RecordSuccess()
			} else {
				options.circuitBreaker.RecordFailure()
			}
		}

		if err == nil {
			return nil
		}
		lastErr = err

		if isPermanentError(result.StatusCode) {
			return fmt.Errorf("%w: %w", ErrPermanentFailure, err)
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrDeliveryFailed, options.maxRetries+1, lastErr)
}

func validateInputs(webhookURL string, payload []byte) error {
	if webhookURL == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}

	u, err := url.Parse(webhookURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	// HTTP only; anything else is an SSRF vector.
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}

	if len(payload) == 0 {
		return fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}
	return nil
}

func (s *Sender) attemptDelivery(ctx context.Context, client *http.Client, webhookURL string, payload []byte, options *sendOptions) (DeliveryResult, error) {
	start := time.Now()
	result := DeliveryResult{}

	reqCtx, cancel := context.WithTimeout(ctx, options.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, options.method, webhookURL, bytes.NewReader(payload))
	if err != nil {
		result.Duration = time.Since(start)
		result.Error = err
		return result, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "campuskit-notify/1.0")
	for k, v := range options.headers {
		req.Header.Set(k, v)
	}

	if options.signatureSecret != "" {
		sigHeaders, err := SignatureHeaders(options.signatureSecret, payload)
		if err != nil {
			result.Duration = time.Since(start)
			result.Error = err
			return result, fmt.Errorf("failed to sign payload: %w", err)
		}
		for k, v := range sigHeaders {
			req.Header.Set(k, v)
		}
	}

	resp, err := client.Do(req)
	result.Duration = time.Since(start)

	if err != nil {
		result.Error = err
		if reqCtx.Err() == context.DeadlineExceeded {
			return result, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return result, fmt.Errorf("%w: %w", ErrTemporaryFailure, err)
	}

	defer func() { _ = resp.Body.Close() }()
	result.StatusCode = resp.StatusCode
	result.Success = resp.StatusCode >= 200 && resp.StatusCode < 300

	// 64KB cap keeps a hostile endpoint from ballooning memory.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if !result.Success {
		errMsg := fmt.Sprintf("webhook returned status %d", resp.StatusCode)
		if len(body) > 0 {
			bodyStr := strings.ReplaceAll(string(body), "\n", " ")
			if len(bodyStr) > 200 {
				bodyStr = bodyStr[:200] + "..."
			}
			errMsg += ": " + bodyStr
		}
		result.Error = fmt.Errorf("%s", errMsg)
		return result, result.Error
	}

	return result, nil
}

// isPermanentError reports whether a status should never be retried.
// 408 and 429 are retryable despite being 4xx; everything else in 4xx
// reflects a request that will not improve on retry.
func isPermanentError(statusCode int) bool {
	if statusCode >= 400 && statusCode < 500 {
		switch statusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests:
			return false
		default:
			return true
		}
	}
	return false
}
