package event_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/eventbridge/core/event"
	"github.com/dmitrymomot/eventbridge/core/queue"
)

func slackMessage(typ, subtype string) queue.Message {
	inner := map[string]any{"type": typ, "channel": "C1", "ts": "1700000000.000100"}
	if subtype != "" {
		inner["subtype"] = subtype
	}
	return queue.NewMessage("Ev1", map[string]any{
		"type":     "event_callback",
		"event_id": "Ev1",
		"event":    inner,
	})
}

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) handler(name string, err error) event.HandlerFunc {
	return func(context.Context, queue.Message) error {
		r.mu.Lock()
		r.calls = append(r.calls, name)
		r.mu.Unlock()
		return err
	}
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestRegistry_Handle(t *testing.T) {
	t.Parallel()

	t.Run("routes wildcard, type and subtype in order", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		registry := event.NewRegistry()
		registry.
			On("message.channel_join", rec.handler("join", nil)).
			On("message", rec.handler("message", nil)).
			OnAny(rec.handler("any", nil)).
			On("app_mention", rec.handler("mention", nil))

		require.NoError(t, registry.Handle(context.Background(), slackMessage("message", "channel_join")))
		assert.Equal(t, []string{"any", "message", "join"}, rec.list())
	})

	t.Run("all handlers for a type run in registration order", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		registry := event.NewRegistry()
		require.NoError(t, registry.Register("app_mention", rec.handler("first", nil)))
		require.NoError(t, registry.Register("app_mention", rec.handler("second", nil)))

		require.NoError(t, registry.Handle(context.Background(), slackMessage("app_mention", "")))
		assert.Equal(t, []string{"first", "second"}, rec.list())
	})

	t.Run("unknown type is a logged no-op", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		rec := &recorder{}
		registry := event.NewRegistry(event.WithLogger(log))
		registry.On("app_mention", rec.handler("mention", nil))

		require.NoError(t, registry.Handle(context.Background(), slackMessage("reaction_added", "")))
		assert.Empty(t, rec.list())
		assert.Contains(t, buf.String(), "no handlers for event type")
		assert.Equal(t, int64(1), registry.Stats().Unmatched)
	})

	t.Run("unknown type goes to fallback when configured", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		registry := event.NewRegistry(event.WithFallback(rec.handler("fallback", nil)))

		require.NoError(t, registry.Handle(context.Background(), slackMessage("reaction_added", "")))
		assert.Equal(t, []string{"fallback"}, rec.list())
	})

	t.Run("failing handler does not stop siblings", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		rec := &recorder{}
		registry := event.NewRegistry()
		registry.
			On("app_mention", rec.handler("first", boom)).
			On("app_mention", func(context.Context, queue.Message) error { panic("kaboom") }).
			On("app_mention", rec.handler("third", nil))

		err := registry.Handle(context.Background(), slackMessage("app_mention", ""))
		require.Error(t, err)
		assert.ErrorIs(t, err, event.ErrHandler)
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, err, event.ErrHandlerPanic)
		assert.Equal(t, []string{"first", "third"}, rec.list())

		stats := registry.Stats()
		assert.Equal(t, int64(3), stats.Invoked)
		assert.Equal(t, int64(2), stats.Failed)
	})

	t.Run("falls back to the top-level type", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		registry := event.NewRegistry()
		registry.On("url_verification", rec.handler("verify", nil))

		msg := queue.NewMessage("k", map[string]any{"type": "url_verification"})
		require.NoError(t, registry.Handle(context.Background(), msg))
		assert.Equal(t, []string{"verify"}, rec.list())
	})
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	t.Run("validates input", func(t *testing.T) {
		t.Parallel()

		registry := event.NewRegistry()
		assert.ErrorIs(t, registry.Register("", func(context.Context, queue.Message) error { return nil }), event.ErrEmptyEventType)
		assert.ErrorIs(t, registry.Register("message", nil), event.ErrNilHandler)
		assert.Panics(t, func() { registry.On(" ", nil) })
	})

	t.Run("frozen after first dispatch", func(t *testing.T) {
		t.Parallel()

		registry := event.NewRegistry()
		registry.On("message", func(context.Context, queue.Message) error { return nil })

		require.NoError(t, registry.Handle(context.Background(), slackMessage("message", "")))

		err := registry.Register("app_mention", func(context.Context, queue.Message) error { return nil })
		assert.ErrorIs(t, err, event.ErrRegistryFrozen)
		assert.ElementsMatch(t, []string{"message"}, registry.Types())
	})

	t.Run("explicit freeze", func(t *testing.T) {
		t.Parallel()

		registry := event.NewRegistry()
		registry.Freeze()
		err := registry.Register("message", func(context.Context, queue.Message) error { return nil })
		assert.ErrorIs(t, err, event.ErrRegistryFrozen)
	})
}

func TestEventType(t *testing.T) {
	t.Parallel()

	typ, subtype := event.EventType(slackMessage("message", "bot_message").Payload)
	assert.Equal(t, "message", typ)
	assert.Equal(t, "bot_message", subtype)

	typ, subtype = event.EventType(map[string]any{"type": "url_verification"})
	assert.Equal(t, "url_verification", typ)
	assert.Empty(t, subtype)

	typ, _ = event.EventType(map[string]any{})
	assert.Empty(t, typ)
}
