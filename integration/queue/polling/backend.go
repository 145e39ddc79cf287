package polling

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/eventbridge/core/logger"
	"github.com/dmitrymomot/eventbridge/core/queue"
)

var (
	ErrNilStore   = errors.New("polling backend: store is nil")
	ErrEmptyTopic = errors.New("polling backend: topic is empty")
)

// Backend turns a Store into a queue.Backend by polling for claimable messages.
//
// Delivery is at-least-once: a message is deleted only on Ack, and a claimed
// message whose consumer dies is claimed again once its lease expires. All
// consumers of a topic compete for messages; the group argument is ignored.
type Backend struct {
	store  Store
	topic  string
	cfg    Config
	logger *slog.Logger
	closer func() error

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithCloser runs fn when the backend is closed, after every consumer stopped.
func WithCloser(fn func() error) Option {
	return func(b *Backend) { b.closer = fn }
}

// New creates a Backend publishing to and consuming from topic.
func New(store Store, topic string, cfg Config, opts ...Option) (*Backend, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if topic == "" {
		return nil, ErrEmptyTopic
	}

	b := &Backend{
		store:  store,
		topic:  topic,
		cfg:    cfg.withDefaults(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		done:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

// Publish stores msg.
func (b *Backend) Publish(ctx context.Context, msg queue.Message) error {
	if b.isClosed() {
		return queue.ErrBackendClosed
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := b.store.Insert(ctx, b.topic, msg); err != nil {
		return err
	}

	b.logger.DebugContext(ctx, "message stored",
		logger.Topic(b.topic),
		logger.MessageKey(msg.Key))
	return nil
}

// Consume starts a claim loop. The stream ends when ctx is canceled or the backend is closed.
func (b *Backend) Consume(ctx context.Context, _ string) (<-chan queue.Delivery, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, queue.ErrBackendClosed
	}

	out := make(chan queue.Delivery)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer close(out)
		b.loop(ctx, out)
	}()
	return out, nil
}

func (b *Backend) loop(ctx context.Context, out chan<- queue.Delivery) {
	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	for {
		batch, err := b.store.Claim(ctx, b.topic, b.cfg.BatchSize, b.cfg.Lease)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.ErrorContext(ctx, "failed to claim messages",
				logger.Topic(b.topic),
				logger.Error(err))
		}

		for i, l := range batch {
			if !b.send(ctx, l, out) {
				b.releaseAll(ctx, batch[i:])
				return
			}
		}

		// A full batch means more work is likely waiting.
		if err == nil && len(batch) == b.cfg.BatchSize {
			if ctx.Err() != nil || b.isClosed() {
				return
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case <-ticker.C:
		}
	}
}

func (b *Backend) send(ctx context.Context, l Leased, out chan<- queue.Delivery) bool {
	id := l.ID
	d := queue.NewDelivery(l.Message,
		func(ctx context.Context) error { return b.store.Delete(ctx, id) },
		func(ctx context.Context) error { return b.store.Release(ctx, id) },
	)

	select {
	case out <- d:
		return true
	case <-ctx.Done():
		return false
	case <-b.done:
		return false
	}
}

// releaseAll hands back claimed messages that were never delivered.
func (b *Backend) releaseAll(ctx context.Context, batch []Leased) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	for _, l := range batch {
		if err := b.store.Release(ctx, l.ID); err != nil {
			b.logger.WarnContext(ctx, "failed to release undelivered message",
				logger.MessageKey(l.Message.Key),
				logger.Error(err))
		}
	}
}

func (b *Backend) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Healthcheck pings the store.
func (b *Backend) Healthcheck(ctx context.Context) error {
	if b.isClosed() {
		return queue.ErrBackendClosed
	}
	return b.store.Ping(ctx)
}

// Close stops every claim loop and runs the closer.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return queue.ErrBackendClosed
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.wg.Wait()
	if b.closer != nil {
		return b.closer()
	}
	return nil
}
