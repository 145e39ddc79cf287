package queue

import (
	"context"
	"log/slog"
)

// Backend is the broker-agnostic publish/consume contract.
//
// Implementations must be safe for concurrent use by many producers and consumers,
// and must document their delivery guarantee. At-least-once is the baseline.
type Backend interface {
	// Publish enqueues one message. It may block under backpressure and must
	// not silently drop messages on a durable backend.
	Publish(ctx context.Context, msg Message) error

	// Consume returns a lazy, forward-only stream of deliveries for the given
	// consumer group (empty means the backend default). Each call starts a fresh
	// delivery position per the backend's semantics. The stream ends when ctx is
	// canceled or the backend is closed.
	Consume(ctx context.Context, group string) (<-chan Delivery, error)
}

// Healthchecker is implemented by backends that can report connectivity.
type Healthchecker interface {
	Healthcheck(ctx context.Context) error
}

// Options are passed to every backend factory.
// Backend specific connection parameters are loaded by the factory itself.
type Options struct {
	// Topic is the stream, queue or table partition messages are published to.
	Topic  string
	Logger *slog.Logger
}

// Factory constructs a backend. Connection failures must be returned, never retried forever.
type Factory func(ctx context.Context, opts Options) (Backend, error)

// Descriptor registers a backend implementation under a unique name.
type Descriptor struct {
	Name    string
	Factory Factory
}
