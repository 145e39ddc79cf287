package consumer

import (
	"context"
	"time"

	"github.com/dmitrymomot/eventbridge/core/logger"
	"github.com/dmitrymomot/eventbridge/core/queue"
)

// Loop processes one message at a time without retries.
// A failed message is logged and acknowledged; redelivery is left to the backend.
type Loop struct {
	*engine
}

var _ Consumer = (*Loop)(nil)

// NewLoop creates a sequential consumer. WithConcurrency is ignored.
func NewLoop(backend queue.Backend, opts ...Option) (*Loop, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Loop{engine: newEngine("loop", backend, 1, o)}, nil
}

// Run consumes until stopped.
func (l *Loop) Run(ctx context.Context, h Handler) error {
	if h == nil {
		return ErrNilHandler
	}
	return l.run(ctx, func(ctx context.Context, d queue.Delivery) {
		start := time.Now()
		if err := invoke(withAttempt(withDelivery(ctx), 1), h, d.Message); err != nil {
			l.failed.Add(1)
			l.logger.ErrorContext(ctx, "message handling failed",
				logger.MessageKey(d.Key),
				logger.Duration(time.Since(start)),
				logger.Error(err))
		} else {
			l.succeeded.Add(1)
		}
		l.ack(ctx, d)
	})
}

// RunFunc adapts Run for errgroup.
func (l *Loop) RunFunc(ctx context.Context, h Handler) func() error {
	return l.runFunc(ctx, func(ctx context.Context) error { return l.Run(ctx, h) })
}

// Shutdown stops the consumer gracefully.
func (l *Loop) Shutdown(ctx context.Context) error {
	return l.shutdown(ctx)
}
