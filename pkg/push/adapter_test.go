package push_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/notify/pkg/fallback"
	"github.com/campuskit/notify/pkg/notification"
	"github.com/campuskit/notify/pkg/push"
)

type fakePushProvider struct {
	name    string
	sent    []push.Message
	invalid []string
}

func (p *fakePushProvider) Name() string { return p.name }

func (p *fakePushProvider) Send(ctx context.Context, msg push.Message) (fallback.SendResult, error) {
	p.sent = append(p.sent, msg)
	if len(p.invalid) > 0 && msg.OnInvalid != nil {
		msg.OnInvalid(p.invalid)
	}
	return fallback.SendResult{
		ProviderID: p.name,
		Status:     notification.StatusSent,
		Timestamp:  time.Now(),
	}, nil
}

func pushNotification(t *testing.T, priority notification.Priority) notification.Notification {
	t.Helper()
	n := notification.New("school-1", "grade.posted", priority, []notification.Channel{notification.ChannelPush})
	n.Content[notification.ChannelPush] = notification.Content{
		Subject: "New grade posted",
		Text:    "Math quiz graded.",
	}
	return n
}

func TestAdapterSend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("sends to all active tokens", func(t *testing.T) {
		t.Parallel()

		store := push.NewMemoryTokenStore()
		_, err := store.Register(ctx, "u-1", "tok-a", push.PlatformAndroid, nil)
		require.NoError(t, err)
		_, err = store.Register(ctx, "u-1", "tok-b", push.PlatformIOS, nil)
		require.NoError(t, err)
		_, err = store.Register(ctx, "u-2", "tok-other", push.PlatformAndroid, nil)
		require.NoError(t, err)

		provider := &fakePushProvider{name: "fcm"}
		chain := fallback.NewChain(notification.ChannelPush, []fallback.Provider[push.Message]{provider})
		adapter := push.NewAdapter(chain, store)

		result, err := adapter.Send(ctx, pushNotification(t, notification.PriorityNormal), notification.Recipient{UserID: "u-1"})
		require.NoError(t, err)
		assert.Equal(t, notification.StatusSent, result.Status)

		require.Len(t, provider.sent, 1)
		msg := provider.sent[0]
		assert.ElementsMatch(t, []string{"tok-a", "tok-b"}, msg.Tokens)
		assert.Equal(t, "New grade posted", msg.Title)
		assert.Equal(t, push.PriorityNormal, msg.Priority)
	})

	t.Run("no tokens fails fast", func(t *testing.T) {
		t.Parallel()

		provider := &fakePushProvider{name: "fcm"}
		chain := fallback.NewChain(notification.ChannelPush, []fallback.Provider[push.Message]{provider})
		adapter := push.NewAdapter(chain, push.NewMemoryTokenStore())

		_, err := adapter.Send(ctx, pushNotification(t, notification.PriorityNormal), notification.Recipient{UserID: "u-1"})
		require.ErrorIs(t, err, push.ErrNoDeviceTokens)
		assert.Empty(t, provider.sent)
	})

	t.Run("urgent maps to high priority", func(t *testing.T) {
		t.Parallel()

		store := push.NewMemoryTokenStore()
		_, err := store.Register(ctx, "u-1", "tok-a", push.PlatformAndroid, nil)
		require.NoError(t, err)

		provider := &fakePushProvider{name: "fcm"}
		chain := fallback.NewChain(notification.ChannelPush, []fallback.Provider[push.Message]{provider})
		adapter := push.NewAdapter(chain, store)

		_, err = adapter.Send(ctx, pushNotification(t, notification.PriorityUrgent), notification.Recipient{UserID: "u-1"})
		require.NoError(t, err)
		require.Len(t, provider.sent, 1)
		assert.Equal(t, push.PriorityHigh, provider.sent[0].Priority)
	})

	t.Run("invalid tokens are deactivated", func(t *testing.T) {
		t.Parallel()

		store := push.NewMemoryTokenStore()
		_, err := store.Register(ctx, "u-1", "tok-stale", push.PlatformAndroid, nil)
		require.NoError(t, err)
		_, err = store.Register(ctx, "u-1", "tok-live", push.PlatformAndroid, nil)
		require.NoError(t, err)

		provider := &fakePushProvider{name: "fcm", invalid: []string{"tok-stale"}}
		chain := fallback.NewChain(notification.ChannelPush, []fallback.Provider[push.Message]{provider})
		adapter := push.NewAdapter(chain, store)

		_, err = adapter.Send(ctx, pushNotification(t, notification.PriorityNormal), notification.Recipient{UserID: "u-1"})
		require.NoError(t, err)

		remaining, err := store.ActiveTokens(ctx, "u-1")
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, "tok-live", remaining[0].Token)
	})
}

func TestMemoryTokenStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("reregistering reactivates", func(t *testing.T) {
		t.Parallel()

		store := push.NewMemoryTokenStore()
		_, err := store.Register(ctx, "u-1", "tok-a", push.PlatformAndroid, nil)
		require.NoError(t, err)
		require.NoError(t, store.Deactivate(ctx, "tok-a"))

		tokens, err := store.ActiveTokens(ctx, "u-1")
		require.NoError(t, err)
		assert.Empty(t, tokens)

		_, err = store.Register(ctx, "u-1", "tok-a", push.PlatformAndroid, nil)
		require.NoError(t, err)

		tokens, err = store.ActiveTokens(ctx, "u-1")
		require.NoError(t, err)
		assert.Len(t, tokens, 1)
	})

	t.Run("register stores device info", func(t *testing.T) {
		t.Parallel()

		store := push.NewMemoryTokenStore()
		info := map[string]string{"model": "SM-A155F", "os_version": "13"}
		tok, err := store.Register(ctx, "u-1", "tok-a", push.PlatformAndroid, info)
		require.NoError(t, err)
		assert.Equal(t, info, tok.DeviceInfo)

		// Re-registering refreshes the device info.
		updated := map[string]string{"model": "SM-A155F", "os_version": "14"}
		tok, err = store.Register(ctx, "u-1", "tok-a", push.PlatformAndroid, updated)
		require.NoError(t, err)
		assert.Equal(t, updated, tok.DeviceInfo)

		tokens, err := store.ActiveTokens(ctx, "u-1")
		require.NoError(t, err)
		require.Len(t, tokens, 1)
		assert.Equal(t, updated, tokens[0].DeviceInfo)
	})

	t.Run("unregister removes", func(t *testing.T) {
		t.Parallel()

		store := push.NewMemoryTokenStore()
		_, err := store.Register(ctx, "u-1", "tok-a", push.PlatformWeb, nil)
		require.NoError(t, err)
		require.NoError(t, store.Unregister(ctx, "tok-a"))
		require.ErrorIs(t, store.Unregister(ctx, "tok-a"), push.ErrTokenNotFound)
	})

	t.Run("deactivate ignores unknown tokens", func(t *testing.T) {
		t.Parallel()

		store := push.NewMemoryTokenStore()
		require.NoError(t, store.Deactivate(ctx, "never-registered"))
	})
}
