package logger_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/eventbridge/core/logger"
)

func TestError(t *testing.T) {
	t.Parallel()
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())
}

func TestDurationAttrs(t *testing.T) {
	t.Parallel()

	d := 5 * time.Second
	attr := logger.Duration(d)
	require.Equal(t, "duration", attr.Key)
	assert.Equal(t, d, attr.Value.Duration())

	elapsed := logger.Elapsed(time.Now().Add(-500 * time.Millisecond))
	require.Equal(t, "elapsed", elapsed.Key)
	assert.GreaterOrEqual(t, elapsed.Value.Duration(), 500*time.Millisecond)
}

func TestQueueAttrs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "app_mention", logger.Event("app_mention").Value.String())
	assert.Equal(t, "redis", logger.Backend("redis").Value.String())
	assert.Equal(t, "slack_events", logger.Topic("slack_events").Value.String())
	assert.Equal(t, "workers", logger.ConsumerGroup("workers").Value.String())
	assert.Equal(t, int64(3), logger.Count("batch", 3).Value.Int64())

	for _, empty := range []slog.Attr{
		logger.Event(""),
		logger.Topic(""),
		logger.ConsumerGroup(""),
	} {
		assert.True(t, empty.Equal(slog.Attr{}))
	}
}

func TestHTTPAttrs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "method", logger.Method("POST").Key)
	assert.Equal(t, "/slack/events", logger.Path("/slack/events").Value.String())
	assert.Equal(t, int64(200), logger.StatusCode(200).Value.Int64())
	assert.Equal(t, int64(2048), logger.BytesOut(2048).Value.Int64())
	assert.Equal(t, "req-123", logger.RequestID("req-123").Value.String())
	assert.True(t, logger.RequestID("").Equal(slog.Attr{}))
}
