package webhook_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/campuskit/notify/pkg/webhook"
)

func TestExponentialBackoff(t *testing.T) {
	t.Parallel()

	t.Run("doubles each attempt", func(t *testing.T) {
		t.Parallel()

		b := webhook.ExponentialBackoff{
			InitialInterval: time.Second,
			MaxInterval:     time.Minute,
			Multiplier:      2,
		}
		assert.Equal(t, time.Second, b.NextInterval(1))
		assert.Equal(t, 2*time.Second, b.NextInterval(2))
		assert.Equal(t, 4*time.Second, b.NextInterval(3))
		assert.Equal(t, 8*time.Second, b.NextInterval(4))
	})

	t.Run("caps at max interval", func(t *testing.T) {
		t.Parallel()

		b := webhook.ExponentialBackoff{
			InitialInterval: time.Second,
			MaxInterval:     5 * time.Second,
			Multiplier:      2,
		}
		assert.Equal(t, 5*time.Second, b.NextInterval(10))
	})

	t.Run("jitter stays within bounds", func(t *testing.T) {
		t.Parallel()

		b := webhook.ExponentialBackoff{
			InitialInterval: time.Second,
			MaxInterval:     time.Minute,
			Multiplier:      2,
			JitterFactor:    0.1,
		}
		for range 50 {
			d := b.NextInterval(2)
			assert.GreaterOrEqual(t, d, 1800*time.Millisecond)
			assert.LessOrEqual(t, d, 2200*time.Millisecond)
		}
	})

	t.Run("zero attempt returns zero", func(t *testing.T) {
		t.Parallel()

		b := webhook.ExponentialBackoff{InitialInterval: time.Second}
		assert.Equal(t, time.Duration(0), b.NextInterval(0))
	})

	t.Run("zero values fall back to defaults", func(t *testing.T) {
		t.Parallel()

		var b webhook.ExponentialBackoff
		assert.Equal(t, time.Second, b.NextInterval(1))
		assert.Equal(t, 2*time.Second, b.NextInterval(2))
	})
}

func TestFixedBackoff(t *testing.T) {
	t.Parallel()

	b := webhook.FixedBackoff{Interval: 3 * time.Second}
	assert.Equal(t, 3*time.Second, b.NextInterval(1))
	assert.Equal(t, 3*time.Second, b.NextInterval(7))
	assert.Equal(t, time.Duration(0), b.NextInterval(0))
}
