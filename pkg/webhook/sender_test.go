package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/notify/pkg/webhook"
)

func TestSenderSend(t *testing.T) {
	t.Parallel()

	t.Run("delivers JSON payload", func(t *testing.T) {
		t.Parallel()

		var gotBody []byte
		var gotContentType string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotBody, _ = io.ReadAll(r.Body)
			gotContentType = r.Header.Get("Content-Type")
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		err := webhook.NewSender().Send(context.Background(), srv.URL, map[string]string{"event": "fee.reminder"})
		require.NoError(t, err)
		assert.Equal(t, "application/json", gotContentType)

		var decoded map[string]string
		require.NoError(t, json.Unmarshal(gotBody, &decoded))
		assert.Equal(t, "fee.reminder", decoded["event"])
	})

	t.Run("signs the exact wire bytes", func(t *testing.T) {
		t.Parallel()

		var body []byte
		var header http.Header
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ = io.ReadAll(r.Body)
			header = r.Header.Clone()
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		payload := []byte(`{"event":"grade.posted","data":{"grade":"A"}}`)
		err := webhook.NewSender().SendRaw(context.Background(), srv.URL, payload,
			webhook.WithSignature("secret"))
		require.NoError(t, err)

		assert.Equal(t, payload, body)
		assert.NoError(t, webhook.VerifyRequest("secret", body, header))

		sig, err := webhook.Sign("secret", payload)
		require.NoError(t, err)
		assert.Equal(t, sig, header.Get(webhook.HeaderSignature))
		assert.Equal(t, "sha256="+sig, header.Get(webhook.HeaderSignature256))
	})

	t.Run("retries 5xx until success", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		err := webhook.NewSender().Send(context.Background(), srv.URL, map[string]string{"ok": "1"},
			webhook.WithMaxRetries(3),
			webhook.WithBackoff(webhook.FixedBackoff{Interval: time.Millisecond}))
		require.NoError(t, err)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("429 is retryable", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		err := webhook.NewSender().Send(context.Background(), srv.URL, map[string]string{"ok": "1"},
			webhook.WithMaxRetries(2),
			webhook.WithBackoff(webhook.FixedBackoff{Interval: time.Millisecond}))
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("404 fails immediately as permanent", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		err := webhook.NewSender().Send(context.Background(), srv.URL, map[string]string{"ok": "1"},
			webhook.WithMaxRetries(5),
			webhook.WithBackoff(webhook.FixedBackoff{Interval: time.Millisecond}))
		assert.ErrorIs(t, err, webhook.ErrPermanentFailure)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("exhausted retries return delivery failed", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		err := webhook.NewSender().Send(context.Background(), srv.URL, map[string]string{"ok": "1"},
			webhook.WithMaxRetries(1),
			webhook.WithBackoff(webhook.FixedBackoff{Interval: time.Millisecond}))
		assert.ErrorIs(t, err, webhook.ErrDeliveryFailed)
	})

	t.Run("invalid URL rejected before any request", func(t *testing.T) {
		t.Parallel()

		err := webhook.NewSender().Send(context.Background(), "ftp://example.com/hook", map[string]string{"ok": "1"})
		assert.ErrorIs(t, err, webhook.ErrInvalidURL)

		err = webhook.NewSender().Send(context.Background(), "", map[string]string{"ok": "1"})
		assert.ErrorIs(t, err, webhook.ErrInvalidURL)
	})

	t.Run("custom headers and method forwarded", func(t *testing.T) {
		t.Parallel()

		var gotMethod, gotHeader string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotHeader = r.Header.Get("X-Tenant")
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		err := webhook.NewSender().Send(context.Background(), srv.URL, map[string]string{"ok": "1"},
			webhook.WithMethod(http.MethodPut),
			webhook.WithHeader("X-Tenant", "school-1"))
		require.NoError(t, err)
		assert.Equal(t, http.MethodPut, gotMethod)
		assert.Equal(t, "school-1", gotHeader)
	})

	t.Run("delivery hook observes every attempt", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		var results []webhook.DeliveryResult
		err := webhook.NewSender().Send(context.Background(), srv.URL, map[string]string{"ok": "1"},
			webhook.WithMaxRetries(2),
			webhook.WithBackoff(webhook.FixedBackoff{Interval: time.Millisecond}),
			webhook.WithOnDelivery(func(r webhook.DeliveryResult) {
				results = append(results, r)
			}))
		require.NoError(t, err)

		require.Len(t, results, 2)
		assert.Equal(t, 1, results[0].Attempt)
		assert.False(t, results[0].Success)
		assert.Equal(t, http.StatusServiceUnavailable, results[0].StatusCode)
		assert.Equal(t, 2, results[1].Attempt)
		assert.True(t, results[1].Success)
	})
}

func TestSenderCircuitBreaker(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cb := webhook.NewCircuitBreaker(2, 1, time.Minute)
	sender := webhook.NewSender()
	opts := []webhook.SendOption{
		webhook.WithMaxRetries(0),
		webhook.WithCircuitBreaker(cb),
	}

	for range 2 {
		err := sender.Send(context.Background(), srv.URL, map[string]string{"ok": "1"}, opts...)
		require.ErrorIs(t, err, webhook.ErrDeliveryFailed)
	}

	// Threshold reached: subsequent sends short circuit.
	err := sender.Send(context.Background(), srv.URL, map[string]string{"ok": "1"}, opts...)
	assert.ErrorIs(t, err, webhook.ErrCircuitOpen)
	assert.True(t, webhook.IsCircuitOpen(err))
}
