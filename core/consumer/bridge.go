package consumer

import (
	"context"

	"github.com/dmitrymomot/eventbridge/core/logger"
	"github.com/dmitrymomot/eventbridge/core/queue"
)

// Bridge forwards messages into another runtime's inbound channel, translating
// each envelope into the type that runtime expects. Sending blocks while the
// inbox is full. Messages that cannot be translated go to the dead-letter sink.
// Bridge processes one message at a time unless WithConcurrency is given.
type Bridge[T any] struct {
	*engine

	inbox     chan<- T
	translate func(queue.Message) (T, error)
	sink      DeadLetterSink
}

// NewBridge creates a bridge into inbox.
func NewBridge[T any](backend queue.Backend, inbox chan<- T, translate func(queue.Message) (T, error), opts ...Option) (*Bridge[T], error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	if inbox == nil || translate == nil {
		return nil, ErrNilHandler
	}

	o := defaultOptions()
	o.concurrency = 1
	for _, opt := range opts {
		opt(o)
	}

	b := &Bridge[T]{
		engine:    newEngine("bridge", backend, o.concurrency, o),
		inbox:     inbox,
		translate: translate,
		sink:      o.deadLetter,
	}
	if b.sink == nil {
		b.sink = NewLogSink(b.logger)
	}
	return b, nil
}

// Run forwards messages until stopped.
func (b *Bridge[T]) Run(ctx context.Context) error {
	return b.run(ctx, b.forward)
}

// RunFunc adapts Run for errgroup.
func (b *Bridge[T]) RunFunc(ctx context.Context) func() error {
	return b.runFunc(ctx, b.Run)
}

// Shutdown stops the bridge gracefully.
func (b *Bridge[T]) Shutdown(ctx context.Context) error {
	return b.shutdown(ctx)
}

func (b *Bridge[T]) forward(ctx context.Context, d queue.Delivery) {
	value, err := b.translate(d.Message)
	if err != nil {
		b.failed.Add(1)
		entry := newDeadLetterEntry(d.Message, 1, ErrTranslate, err)
		if sinkErr := b.sink.Send(ctx, entry); sinkErr != nil {
			b.logger.ErrorContext(ctx, "dead-letter sink failed, returning message to backend",
				logger.MessageKey(d.Key),
				logger.Error(sinkErr))
			b.nack(ctx, d)
			return
		}
		b.deadLettered.Add(1)
		b.ack(ctx, d)
		return
	}

	select {
	case b.inbox <- value:
		b.succeeded.Add(1)
		b.ack(ctx, d)
	case <-ctx.Done():
		b.nack(ctx, d)
	}
}
