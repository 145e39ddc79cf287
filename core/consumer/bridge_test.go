package consumer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/eventbridge/core/consumer"
	"github.com/dmitrymomot/eventbridge/core/queue"
)

type runtimeEvent struct {
	ID   string
	Text string
}

func translate(msg queue.Message) (runtimeEvent, error) {
	inner, ok := msg.Payload["event"].(map[string]any)
	if !ok {
		return runtimeEvent{}, errors.New("no event object")
	}
	text, _ := inner["text"].(string)
	return runtimeEvent{ID: msg.Key, Text: text}, nil
}

func TestBridge(t *testing.T) {
	t.Parallel()

	t.Run("forwards translated messages in order", func(t *testing.T) {
		t.Parallel()

		backend := queue.NewMemoryBackend()
		inbox := make(chan runtimeEvent, 10)
		b, err := consumer.NewBridge(backend, inbox, translate)
		require.NoError(t, err)

		publish(t, backend, "Ev1", "Ev2", "Ev3")

		done := make(chan error, 1)
		go func() { done <- b.Run(context.Background()) }()

		for _, want := range []string{"Ev1", "Ev2", "Ev3"} {
			select {
			case got := <-inbox:
				assert.Equal(t, runtimeEvent{ID: want, Text: want}, got)
			case <-time.After(time.Second):
				t.Fatalf("%s not forwarded", want)
			}
		}

		require.NoError(t, b.Shutdown(context.Background()))
		require.NoError(t, <-done)
		assert.Equal(t, int64(3), b.Stats().Succeeded)
	})

	t.Run("untranslatable messages are dead-lettered", func(t *testing.T) {
		t.Parallel()

		backend := queue.NewMemoryBackend()
		sink := &deadLetters{}
		inbox := make(chan runtimeEvent, 1)
		b, err := consumer.NewBridge(backend, inbox, translate, consumer.WithDeadLetter(sink))
		require.NoError(t, err)

		require.NoError(t, backend.Publish(context.Background(),
			queue.NewMessage("bad", map[string]any{"type": "event_callback"})))

		done := make(chan error, 1)
		go func() { done <- b.Run(context.Background()) }()

		require.Eventually(t, func() bool { return len(sink.list()) == 1 }, time.Second, 5*time.Millisecond)
		require.NoError(t, b.Shutdown(context.Background()))
		require.NoError(t, <-done)

		assert.ErrorIs(t, sink.list()[0].Err, consumer.ErrTranslate)
		assert.Empty(t, inbox)
	})

	t.Run("validates arguments", func(t *testing.T) {
		t.Parallel()

		_, err := consumer.NewBridge[runtimeEvent](queue.NewMemoryBackend(), nil, translate)
		assert.ErrorIs(t, err, consumer.ErrNilHandler)
	})
}
