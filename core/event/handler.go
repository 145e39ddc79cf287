package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrymomot/eventbridge/core/queue"
)

// HandlerFunc processes one queued message.
type HandlerFunc func(ctx context.Context, msg queue.Message) error

// Typed adapts a function taking a concrete event type. The nested "event" object
// of the payload is decoded into T.
//
// Example:
//
//	type AppMention struct {
//	    User    string `json:"user"`
//	    Text    string `json:"text"`
//	    Channel string `json:"channel"`
//	}
//
//	registry.On("app_mention", event.Typed(func(ctx context.Context, e AppMention) error {
//	    return poster.Post(ctx, e.Channel, "hi <@"+e.User+">")
//	}))
func Typed[T any](fn func(ctx context.Context, evt T) error) HandlerFunc {
	return func(ctx context.Context, msg queue.Message) error {
		evt, err := Decode[T](msg)
		if err != nil {
			return err
		}
		return fn(ctx, evt)
	}
}

// Decode converts the nested "event" object of msg into T.
func Decode[T any](msg queue.Message) (T, error) {
	var zero T

	inner, ok := msg.Payload["event"]
	if !ok || inner == nil {
		return zero, ErrMissingEvent
	}

	if typed, ok := inner.(T); ok {
		return typed, nil
	}

	data, err := json.Marshal(inner)
	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrPayloadDecode, err)
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, fmt.Errorf("%w: %w", ErrPayloadDecode, err)
	}
	return out, nil
}

// Decorator wraps a handler with cross-cutting behavior.
type Decorator func(HandlerFunc) HandlerFunc

// Decorate applies decorators so that the first one becomes the outermost wrapper.
func Decorate(fn HandlerFunc, decorators ...Decorator) HandlerFunc {
	for i := len(decorators) - 1; i >= 0; i-- {
		fn = decorators[i](fn)
	}
	return fn
}

// WithTimeout bounds each handler invocation.
func WithTimeout(timeout time.Duration) Decorator {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, msg queue.Message) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, msg)
		}
	}
}

// WithFilter invokes the handler only for messages matching the predicate.
// Skipped messages count as handled.
func WithFilter(match func(queue.Message) bool) Decorator {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, msg queue.Message) error {
			if !match(msg) {
				return nil
			}
			return next(ctx, msg)
		}
	}
}

// IgnoreBots skips messages posted by bots, which avoids reply loops.
func IgnoreBots() Decorator {
	return WithFilter(func(msg queue.Message) bool {
		inner, _ := msg.Payload["event"].(map[string]any)
		if inner == nil {
			return true
		}
		if id, _ := inner["bot_id"].(string); id != "" {
			return false
		}
		subtype, _ := inner["subtype"].(string)
		return subtype != "bot_message"
	})
}
