package consumer

import (
	"log/slog"
	"time"
)

type options struct {
	group           string
	concurrency     int
	shutdownTimeout time.Duration
	logger          *slog.Logger

	maxAttempts int
	backoff     BackoffConfig
	deadLetter  DeadLetterSink
	recoverable func(error) bool
}

// Option configures a consumer.
type Option func(*options)

// WithGroup sets the consumer group passed to the backend.
func WithGroup(group string) Option {
	return func(o *options) {
		o.group = group
	}
}

// WithConcurrency sets the number of messages processed in parallel.
// The loop consumer ignores it. Non-positive values are ignored.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithShutdownTimeout sets the grace period for in-flight handlers during shutdown.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.shutdownTimeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMaxAttempts sets how many times the retry consumer invokes a handler for one message.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithBackoff sets the delay policy between attempts.
func WithBackoff(cfg BackoffConfig) Option {
	return func(o *options) {
		o.backoff = cfg
	}
}

// WithDeadLetter sets the sink receiving messages that exhausted their attempts.
func WithDeadLetter(sink DeadLetterSink) Option {
	return func(o *options) {
		if sink != nil {
			o.deadLetter = sink
		}
	}
}

// WithRecoverable decides which errors are retried. By default every error is
// retried except those wrapped with Permanent.
func WithRecoverable(fn func(error) bool) Option {
	return func(o *options) {
		if fn != nil {
			o.recoverable = fn
		}
	}
}
