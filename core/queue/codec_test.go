package queue_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/eventbridge/core/queue"
)

func TestCodec(t *testing.T) {
	t.Parallel()

	t.Run("preserves key payload and receive time", func(t *testing.T) {
		t.Parallel()

		msg := queue.Message{
			Key:        "Ev1",
			Payload:    map[string]any{"type": "event_callback", "event": map[string]any{"text": "hi"}},
			ReceivedAt: time.Date(2025, 3, 1, 12, 0, 0, 123, time.UTC),
		}

		data, err := queue.Encode(msg)
		require.NoError(t, err)

		got, err := queue.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, msg.Key, got.Key)
		assert.Equal(t, msg.Payload, got.Payload)
		assert.True(t, msg.ReceivedAt.Equal(got.ReceivedAt))
	})

	t.Run("rejects invalid messages", func(t *testing.T) {
		t.Parallel()

		_, err := queue.Encode(queue.Message{Payload: map[string]any{}})
		assert.ErrorIs(t, err, queue.ErrInvalidMessage)

		_, err = queue.Decode([]byte(`{"key":"k"}`))
		assert.ErrorIs(t, err, queue.ErrInvalidMessage)

		_, err = queue.Decode([]byte(`not json`))
		assert.ErrorIs(t, err, queue.ErrInvalidMessage)
	})
}
