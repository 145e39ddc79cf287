package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/eventbridge/core/logger"
	"github.com/dmitrymomot/eventbridge/core/queue"
)

// DefaultMaxAttempts is the number of handler invocations before dead-lettering.
const DefaultMaxAttempts = 3

// Retry processes messages concurrently, retrying failed handlers with
// exponential backoff. A message that fails every attempt, or fails with a
// Permanent error, is sent to the dead-letter sink and acknowledged. If the
// sink itself fails the message is returned to the backend instead.
type Retry struct {
	*engine

	maxAttempts int
	backoff     BackoffConfig
	sink        DeadLetterSink
	recoverable func(error) bool
}

var _ Consumer = (*Retry)(nil)

// NewRetry creates a retry-capable consumer. Dead letters go to a LogSink unless
// WithDeadLetter is given.
func NewRetry(backend queue.Backend, opts ...Option) (*Retry, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	r := &Retry{
		engine:      newEngine("retry", backend, o.concurrency, o),
		maxAttempts: o.maxAttempts,
		backoff:     o.backoff,
		sink:        o.deadLetter,
		recoverable: o.recoverable,
	}
	if r.sink == nil {
		r.sink = NewLogSink(r.logger)
	}
	if r.recoverable == nil {
		r.recoverable = isRecoverable
	}
	return r, nil
}

func isRecoverable(err error) bool {
	var p *permanentError
	return !errors.As(err, &p)
}

// Run consumes until stopped.
func (r *Retry) Run(ctx context.Context, h Handler) error {
	if h == nil {
		return ErrNilHandler
	}
	return r.run(ctx, func(ctx context.Context, d queue.Delivery) {
		r.process(ctx, h, d)
	})
}

// RunFunc adapts Run for errgroup.
func (r *Retry) RunFunc(ctx context.Context, h Handler) func() error {
	return r.runFunc(ctx, func(ctx context.Context) error { return r.Run(ctx, h) })
}

// Shutdown stops the consumer gracefully.
func (r *Retry) Shutdown(ctx context.Context) error {
	return r.shutdown(ctx)
}

func (r *Retry) process(ctx context.Context, h Handler, d queue.Delivery) {
	dctx := withDelivery(ctx)
	delays := r.backoff.newBackOff()

	var (
		lastErr  error
		attempts int
	)
	for attempts < r.maxAttempts {
		attempts++
		lastErr = invoke(withAttempt(dctx, attempts), h, d.Message)
		if lastErr == nil {
			r.succeeded.Add(1)
			r.ack(ctx, d)
			return
		}

		if ctx.Err() != nil {
			// Grace period expired: leave the message to the backend.
			r.nack(ctx, d)
			return
		}
		if !r.recoverable(lastErr) || attempts == r.maxAttempts {
			break
		}

		delay := delays.NextBackOff()
		r.retried.Add(1)
		r.logger.WarnContext(ctx, "message handling failed, retrying",
			logger.MessageKey(d.Key),
			logger.Attempt(attempts),
			slog.Duration("delay", delay),
			logger.Error(lastErr))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.nack(ctx, d)
			return
		case <-timer.C:
		}
	}

	r.failed.Add(1)
	cause := ErrRetryExhausted
	if !r.recoverable(lastErr) {
		cause = ErrNonRecoverable
	}
	entry := newDeadLetterEntry(d.Message, attempts, cause, lastErr)
	if err := r.sink.Send(ctx, entry); err != nil {
		r.logger.ErrorContext(ctx, "dead-letter sink failed, returning message to backend",
			logger.MessageKey(d.Key),
			logger.Error(err))
		r.nack(ctx, d)
		return
	}

	r.deadLettered.Add(1)
	r.logger.WarnContext(ctx, "message moved to dead letter",
		logger.MessageKey(d.Key),
		logger.Attempt(attempts),
		slog.String("reason", cause.Error()),
		logger.Error(lastErr))
	r.ack(ctx, d)
}
