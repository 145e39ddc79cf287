package consumer

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/eventbridge/core/queue"
)

// Handler processes one message. event.Registry satisfies it.
type Handler interface {
	Handle(ctx context.Context, msg queue.Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg queue.Message) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, msg queue.Message) error {
	return f(ctx, msg)
}

// Consumer pulls messages from a backend and dispatches them to a handler.
type Consumer interface {
	// Run blocks until the consumer is stopped by Shutdown, ctx cancellation or
	// the end of the backend stream.
	Run(ctx context.Context, h Handler) error

	// Shutdown stops receiving, waits for in-flight handlers and returns once the
	// consumer reached StateStopped or ctx is done. Safe to call from any goroutine.
	Shutdown(ctx context.Context) error

	State() State
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-recoverable: the retry consumer dead-letters the
// message without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func invoke(ctx context.Context, h Handler, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return h.Handle(ctx, msg)
}
