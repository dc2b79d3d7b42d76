package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/notify/pkg/delivery"
	"github.com/campuskit/notify/pkg/notification"
	"github.com/campuskit/notify/pkg/webhook"
)

func newWebhookNotification(notifType string) notification.Notification {
	n := notification.New("school-1", notifType, notification.PriorityNormal,
		[]notification.Channel{notification.ChannelWebhook})
	n.Content[notification.ChannelWebhook] = notification.Content{
		Data: map[string]any{"amount": "250.00"},
	}
	return n
}

func subscribe(t *testing.T, store webhook.SubscriptionStore, url, secret string, events ...string) webhook.Subscription {
	t.Helper()
	sub := webhook.Subscription{
		TenantID: "school-1",
		URL:      url,
		Secret:   secret,
		Events:   events,
	}
	require.NoError(t, store.Create(context.Background(), &sub))
	return sub
}

func TestAdapterSend(t *testing.T) {
	t.Parallel()

	t.Run("delivers signed event to matching subscriptions", func(t *testing.T) {
		t.Parallel()

		var body []byte
		var header http.Header
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ = io.ReadAll(r.Body)
			header = r.Header.Clone()
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		store := webhook.NewMemorySubscriptionStore()
		subscribe(t, store, srv.URL, "sub-secret", "fee.reminder")

		adapter := webhook.NewAdapter(store, webhook.NewSender(), nil)
		n := newWebhookNotification("fee.reminder")

		result, err := adapter.Send(context.Background(), n, notification.Recipient{UserID: "u-1"})
		require.NoError(t, err)
		assert.Equal(t, webhook.ProviderName, result.ProviderID)
		assert.Equal(t, notification.StatusDelivered, result.Status)

		require.NoError(t, webhook.VerifyRequest("sub-secret", body, header))

		var event webhook.Event
		require.NoError(t, json.Unmarshal(body, &event))
		assert.Equal(t, "fee.reminder", event.Event)
		assert.Equal(t, n.ID, event.NotificationID)
		assert.Equal(t, "school-1", event.TenantID)
		assert.Equal(t, "250.00", event.Data["amount"])
	})

	t.Run("skips subscriptions not matching the event", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		store := webhook.NewMemorySubscriptionStore()
		subscribe(t, store, srv.URL, "", "grade.posted")

		adapter := webhook.NewAdapter(store, webhook.NewSender(), nil)
		result, err := adapter.Send(context.Background(), newWebhookNotification("fee.reminder"), notification.Recipient{})
		require.NoError(t, err)
		assert.Equal(t, int32(0), calls.Load())
		assert.Equal(t, notification.StatusSent, result.Status)
	})

	t.Run("no subscriptions is a no-op success", func(t *testing.T) {
		t.Parallel()

		adapter := webhook.NewAdapter(webhook.NewMemorySubscriptionStore(), webhook.NewSender(), nil)
		result, err := adapter.Send(context.Background(), newWebhookNotification("fee.reminder"), notification.Recipient{})
		require.NoError(t, err)
		assert.Equal(t, notification.StatusSent, result.Status)
	})

	t.Run("succeeds when at least one subscription accepts", func(t *testing.T) {
		t.Parallel()

		okSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer okSrv.Close()
		badSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer badSrv.Close()

		store := webhook.NewMemorySubscriptionStore()
		subscribe(t, store, badSrv.URL, "")
		subscribe(t, store, okSrv.URL, "")

		logs := delivery.NewMemoryStore()
		adapter := webhook.NewAdapter(store, webhook.NewSender(), logs)
		n := newWebhookNotification("fee.reminder")

		result, err := adapter.Send(context.Background(), n, notification.Recipient{})
		require.NoError(t, err)
		assert.Equal(t, notification.StatusDelivered, result.Status)

		entries, err := logs.ListByNotification(context.Background(), n.ID)
		require.NoError(t, err)
		require.Len(t, entries, 2)

		byURL := make(map[string]delivery.Log, len(entries))
		for _, e := range entries {
			byURL[e.Recipient] = e
		}
		assert.Equal(t, notification.StatusDelivered, byURL[okSrv.URL].Status)
		assert.Equal(t, notification.StatusFailed, byURL[badSrv.URL].Status)
		assert.NotEmpty(t, byURL[badSrv.URL].Error)
	})

	t.Run("fails when every subscription fails", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		store := webhook.NewMemorySubscriptionStore()
		subscribe(t, store, srv.URL, "")

		adapter := webhook.NewAdapter(store, webhook.NewSender(), nil)
		_, err := adapter.Send(context.Background(), newWebhookNotification("fee.reminder"), notification.Recipient{})
		assert.ErrorIs(t, err, webhook.ErrPermanentFailure)
	})

	t.Run("deactivated subscriptions are not delivered to", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		store := webhook.NewMemorySubscriptionStore()
		sub := subscribe(t, store, srv.URL, "")
		require.NoError(t, store.Deactivate(context.Background(), sub.ID))

		adapter := webhook.NewAdapter(store, webhook.NewSender(), nil)
		result, err := adapter.Send(context.Background(), newWebhookNotification("fee.reminder"), notification.Recipient{})
		require.NoError(t, err)
		assert.Equal(t, int32(0), calls.Load())
		assert.Equal(t, notification.StatusSent, result.Status)
	})
}

func TestSubscriptionMatches(t *testing.T) {
	t.Parallel()

	all := webhook.Subscription{}
	assert.True(t, all.Matches("anything"))

	scoped := webhook.Subscription{Events: []string{"fee.reminder", "grade.posted"}}
	assert.True(t, scoped.Matches("fee.reminder"))
	assert.False(t, scoped.Matches("attendance.flag"))
}

func TestMemorySubscriptionStore(t *testing.T) {
	t.Parallel()

	t.Run("create validates the URL", func(t *testing.T) {
		t.Parallel()

		store := webhook.NewMemorySubscriptionStore()
		err := store.Create(context.Background(), &webhook.Subscription{TenantID: "t", URL: "not a url"})
		assert.ErrorIs(t, err, webhook.ErrInvalidURL)
	})

	t.Run("active listing scoped by tenant", func(t *testing.T) {
		t.Parallel()

		store := webhook.NewMemorySubscriptionStore()
		a := webhook.Subscription{TenantID: "school-1", URL: "https://a.example.com/hook"}
		b := webhook.Subscription{TenantID: "school-2", URL: "https://b.example.com/hook"}
		require.NoError(t, store.Create(context.Background(), &a))
		require.NoError(t, store.Create(context.Background(), &b))

		subs, err := store.ActiveForTenant(context.Background(), "school-1")
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, a.ID, subs[0].ID)
	})

	t.Run("deactivate unknown id", func(t *testing.T) {
		t.Parallel()

		store := webhook.NewMemorySubscriptionStore()
		err := store.Deactivate(context.Background(), uuid.New())
		assert.ErrorIs(t, err, webhook.ErrSubscriptionNotFound)
	})
}
