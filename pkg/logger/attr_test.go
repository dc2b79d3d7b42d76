package logger_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/notify/pkg/logger"
)

func TestGroup(t *testing.T) {
	attr := logger.Group("job", slog.String("id", "1"), slog.Int("attempts", 2))
	require.Equal(t, "job", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "id", g[0].Key)
	assert.Equal(t, "attempts", g[1].Key)
}

func TestError(t *testing.T) {
	err := errors.New("send failed")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	empty := logger.Error(nil)
	assert.True(t, empty.Equal(slog.Attr{}))
}

func TestErrors(t *testing.T) {
	err1 := errors.New("first")
	err2 := errors.New("second")

	attr := logger.Errors(err1, nil, err2)
	require.Equal(t, "errors", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, err1, g[0].Value.Any())
	assert.Equal(t, err2, g[1].Value.Any())

	empty := logger.Errors(nil)
	assert.True(t, empty.Equal(slog.Attr{}))
}

func TestDomainAttrs(t *testing.T) {
	assert.Equal(t, "channel", logger.Channel("email").Key)
	assert.Equal(t, "email", logger.Channel("email").Value.String())

	assert.Equal(t, "provider", logger.Provider("postmark").Key)
	assert.Equal(t, "queue", logger.Queue("notifications").Key)
	assert.Equal(t, "tenant_id", logger.TenantID("school-1").Key)

	assert.True(t, logger.UserID(nil).Equal(slog.Attr{}))
	assert.True(t, logger.NotificationID(nil).Equal(slog.Attr{}))
	assert.True(t, logger.JobID(nil).Equal(slog.Attr{}))

	attempts := logger.Attempts(3)
	assert.Equal(t, "attempts", attempts.Key)
	assert.Equal(t, int64(3), attempts.Value.Int64())
}
