package webhook

import (
	"net/http"
	"time"
)

// DeliveryResult describes one delivery attempt.
type DeliveryResult struct {
	Success    bool
	StatusCode int
	Attempt    int
	Duration   time.Duration
	Error      error
}

// DeliveryHook is called after each delivery attempt.
type DeliveryHook func(result DeliveryResult)

type sendOptions struct {
	timeout    time.Duration
	method     string
	headers    map[string]string
	httpClient *http.Client

	maxRetries      int
	backoffStrategy BackoffStrategy

	signatureSecret string

	circuitBreaker *CircuitBreaker

	onDelivery DeliveryHook
}

func defaultSendOptions() *sendOptions {
	return &sendOptions{
		timeout:         10 * time.Second,
		method:          http.MethodPost,
		headers:         make(map[string]string),
		maxRetries:      3,
		backoffStrategy: DefaultBackoffStrategy(),
	}
}

// SendOption configures a single webhook send.
type SendOption func(*sendOptions)

// WithTimeout bounds each individual attempt.
func WithTimeout(timeout time.Duration) SendOption {
	return func(o *sendOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithMethod overrides the default POST.
func WithMethod(method string) SendOption {
	return func(o *sendOptions) {
		if method != "" {
			o.method = method
		}
	}
}

// WithHeader adds a custom header to the request.
func WithHeader(key, value string) SendOption {
	return func(o *sendOptions) {
		if key != "" && value != "" {
			o.headers[key] = value
		}
	}
}

// WithHeaders adds multiple custom headers.
func WithHeaders(headers map[string]string) SendOption {
	return func(o *sendOptions) {
		for k, v := range headers {
			if k != "" && v != "" {
				o.headers[k] = v
			}
		}
	}
}

// WithMaxRetries sets the retry budget. Zero disables retries.
func WithMaxRetries(n int) SendOption {
	return func(o *sendOptions) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithBackoff sets the retry delay strategy.
func WithBackoff(strategy BackoffStrategy) SendOption {
	return func(o *sendOptions) {
		if strategy != nil {
			o.backoffStrategy = strategy
		}
	}
}

// WithSignature enables HMAC-SHA256 signing with the given secret,
// setting both X-Signature and X-Signature-256 headers.
func WithSignature(secret string) SendOption {
	return func(o *sendOptions) {
		o.signatureSecret = secret
	}
}

// WithHTTPClient overrides the sender's HTTP client for this request.
func WithHTTPClient(client *http.Client) SendOption {
	return func(o *sendOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithCircuitBreaker guards the request with a per-endpoint breaker.
// Reuse the same instance per endpoint across requests.
func WithCircuitBreaker(cb *CircuitBreaker) SendOption {
	return func(o *sendOptions) {
		o.circuitBreaker = cb
	}
}

// WithOnDelivery registers a callback invoked after every attempt.
func WithOnDelivery(hook DeliveryHook) SendOption {
	return func(o *sendOptions) {
		o.onDelivery = hook
	}
}
