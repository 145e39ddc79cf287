package queue

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dmitrymomot/eventbridge/core/logger"
)

// MemoryBackend is a bounded, FIFO, single-process backend.
//
// Delivery is at-least-once only while the process is alive: nothing is persisted,
// and a restart loses every queued message. Publishing into a full queue blocks
// until a consumer frees space or the context is canceled.
//
// Nack puts the message back at the tail of the queue. When the queue is full
// it waits for space until the Nack context ends; if none frees up the message
// is dropped, logged at error level, counted in MemoryStats.Dropped and Nack
// returns ErrRequeueFailed.
// All consumers share one queue, so concurrent Consume calls compete for messages.
type MemoryBackend struct {
	ch     chan Delivery
	done   chan struct{}
	logger *slog.Logger

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once

	published atomic.Int64
	requeued  atomic.Int64
	dropped   atomic.Int64
}

// MemoryStats reports queue occupancy.
type MemoryStats struct {
	Published int64
	Requeued  int64
	Dropped   int64
	Depth     int
	Capacity  int
}

// MemoryOption configures a MemoryBackend.
type MemoryOption func(*MemoryBackend)

// WithCapacity bounds the queue. Non-positive values are ignored.
func WithCapacity(capacity int) MemoryOption {
	return func(b *MemoryBackend) {
		if capacity > 0 {
			b.ch = make(chan Delivery, capacity)
		}
	}
}

// WithMemoryLogger sets the logger.
func WithMemoryLogger(logger *slog.Logger) MemoryOption {
	return func(b *MemoryBackend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewMemoryBackend creates an in-memory backend with DefaultMemoryCapacity slots.
func NewMemoryBackend(opts ...MemoryOption) *MemoryBackend {
	b := &MemoryBackend{
		ch:     make(chan Delivery, DefaultMemoryCapacity),
		done:   make(chan struct{}),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// MemoryDescriptor registers the built-in backend. The registry always knows it.
func MemoryDescriptor(opts ...MemoryOption) Descriptor {
	return Descriptor{
		Name: MemoryBackendName,
		Factory: func(_ context.Context, o Options) (Backend, error) {
			return NewMemoryBackend(append([]MemoryOption{WithMemoryLogger(o.Logger)}, opts...)...), nil
		},
	}
}

// Publish enqueues msg, blocking while the queue is full.
func (b *MemoryBackend) Publish(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := b.enqueue(ctx, msg); err != nil {
		return err
	}

	b.published.Add(1)
	b.logger.DebugContext(ctx, "message enqueued",
		logger.MessageKey(msg.Key),
		slog.Int("depth", len(b.ch)))
	return nil
}

func (b *MemoryBackend) enqueue(ctx context.Context, msg Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBackendClosed
	}

	d := NewDelivery(msg, nil, func(ctx context.Context) error {
		return b.requeue(ctx, msg)
	})

	// A free slot wins over an already canceled context.
	select {
	case b.ch <- d:
		return nil
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrBackendClosed
	case b.ch <- d:
		return nil
	}
}

func (b *MemoryBackend) requeue(ctx context.Context, msg Message) error {
	if err := b.enqueue(ctx, msg); err != nil {
		b.dropped.Add(1)
		b.logger.ErrorContext(ctx, "message dropped: requeue failed",
			logger.MessageKey(msg.Key),
			slog.Int("depth", len(b.ch)),
			logger.Error(err))
		return fmt.Errorf("%w: %w", ErrRequeueFailed, err)
	}
	b.requeued.Add(1)
	return nil
}

// Consume returns the shared delivery stream. The group is ignored; the channel
// is closed when the backend is closed.
func (b *MemoryBackend) Consume(_ context.Context, _ string) (<-chan Delivery, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrBackendClosed
	}
	return b.ch, nil
}

// Close stops accepting messages and ends every consumer stream.
// Messages still buffered are delivered before the stream ends.
func (b *MemoryBackend) Close() error {
	err := ErrBackendClosed
	b.closeOnce.Do(func() {
		close(b.done)

		b.mu.Lock()
		defer b.mu.Unlock()

		b.closed = true
		close(b.ch)
		b.logger.Info("memory backend closed", slog.Int("undelivered", len(b.ch)))
		err = nil
	})
	return err
}

// Healthcheck fails once the backend is closed.
func (b *MemoryBackend) Healthcheck(_ context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBackendClosed
	}
	return nil
}

// Stats returns a snapshot of the queue.
func (b *MemoryBackend) Stats() MemoryStats {
	return MemoryStats{
		Published: b.published.Load(),
		Requeued:  b.requeued.Load(),
		Dropped:   b.dropped.Load(),
		Depth:     len(b.ch),
		Capacity:  cap(b.ch),
	}
}
