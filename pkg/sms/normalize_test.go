package sms_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/notify/pkg/sms"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		raw    string
		region string
		want   string
		err    error
	}{
		{name: "national number gets default region", raw: "(415) 555-2671", region: "US", want: "+14155552671"},
		{name: "existing country code kept", raw: "+44 20 7946 0958", region: "US", want: "+442079460958"},
		{name: "digits with dashes", raw: "415-555-2671", region: "US", want: "+14155552671"},
		{name: "empty", raw: "", region: "US", err: sms.ErrInvalidPhoneNumber},
		{name: "garbage", raw: "not a number", region: "US", err: sms.ErrInvalidPhoneNumber},
		{name: "too short", raw: "12345", region: "US", err: sms.ErrInvalidPhoneNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := sms.Normalize(tt.raw, tt.region)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolvePhone(t *testing.T) {
	t.Parallel()

	t.Run("first usable wins", func(t *testing.T) {
		t.Parallel()

		got, err := sms.ResolvePhone([]string{"(415) 555-2671", "+442079460958"}, "US")
		require.NoError(t, err)
		assert.Equal(t, "+14155552671", got)
	})

	t.Run("falls through invalid entries", func(t *testing.T) {
		t.Parallel()

		got, err := sms.ResolvePhone([]string{"n/a", "+442079460958"}, "US")
		require.NoError(t, err)
		assert.Equal(t, "+442079460958", got)
	})

	t.Run("nothing usable", func(t *testing.T) {
		t.Parallel()

		_, err := sms.ResolvePhone([]string{"n/a", ""}, "US")
		require.ErrorIs(t, err, sms.ErrNoPhoneNumber)
	})

	t.Run("empty candidates", func(t *testing.T) {
		t.Parallel()

		_, err := sms.ResolvePhone(nil, "US")
		require.ErrorIs(t, err, sms.ErrNoPhoneNumber)
	})
}
