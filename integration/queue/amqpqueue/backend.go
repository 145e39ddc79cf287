package amqpqueue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dmitrymomot/eventbridge/core/logger"
	"github.com/dmitrymomot/eventbridge/core/queue"
)

// Name is the registry name of this backend.
const Name = "amqp"

// Backend publishes to and consumes from a durable RabbitMQ queue.
//
// Delivery is at-least-once. Publish returns only after the broker confirms
// the message. Consumers acknowledge manually; unacknowledged deliveries are
// requeued by the broker when the channel or connection goes away. Consumer
// groups are not modelled: every consumer competes on the same queue.
type Backend struct {
	conn      Connection
	queueName string
	cfg       Config
	logger    *slog.Logger
	ownsConn  bool

	pubMu sync.Mutex
	pubCh Channel

	mu       sync.Mutex
	closed   bool
	done     chan struct{}
	channels []Channel
	wg       sync.WaitGroup
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

// WithOwnedConnection makes Close also close the connection.
func WithOwnedConnection() Option {
	return func(b *Backend) { b.ownsConn = true }
}

// Dial connects to cfg.URL, retrying the initial dial.
func Dial(ctx context.Context, cfg Config) (Connection, error) {
	var lastErr error
	attempts := max(cfg.DialRetryAttempts, 1)
	for i := range attempts {
		conn, err := amqp.Dial(cfg.URL)
		if err == nil {
			return Wrap(conn), nil
		}
		lastErr = err

		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrDial, ctx.Err())
		case <-time.After(cfg.DialRetryInterval):
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrDial, lastErr)
}

// New declares queueName as a durable queue and opens a confirming publish channel.
// Use Wrap to pass a connection dialed elsewhere.
func New(conn Connection, queueName string, cfg Config, opts ...Option) (*Backend, error) {
	if conn == nil {
		return nil, ErrNilConnection
	}
	if queueName == "" {
		return nil, ErrEmptyQueue
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = DefaultConfig().Prefetch
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfig().ConfirmTimeout
	}

	b := &Backend{
		conn:      conn,
		queueName: queueName,
		cfg:       cfg,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetup, err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%w: declare queue %s: %w", ErrSetup, queueName, err)
	}
	if cfg.Exchange != "" {
		if err := ch.QueueBind(queueName, queueName, cfg.Exchange, false, nil); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("%w: bind queue %s: %w", ErrSetup, queueName, err)
		}
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%w: enable confirms: %w", ErrSetup, err)
	}
	b.pubCh = ch

	return b, nil
}

// Publish sends msg and waits for the broker confirm.
func (b *Backend) Publish(ctx context.Context, msg queue.Message) error {
	if b.isClosed() {
		return queue.ErrBackendClosed
	}

	pub, err := ToPublishing(msg)
	if err != nil {
		return err
	}

	b.pubMu.Lock()
	conf, err := b.pubCh.PublishConfirmed(ctx, b.cfg.Exchange, b.queueName, pub)
	b.pubMu.Unlock()
	if errors.Is(err, ErrNotConfirmed) {
		return err
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, b.cfg.ConfirmTimeout)
	defer cancel()

	acked, err := conf.WaitContext(waitCtx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotConfirmed, err)
	}
	if !acked {
		return ErrNotConfirmed
	}

	b.logger.DebugContext(ctx, "message published",
		slog.String("queue", b.queueName),
		logger.MessageKey(msg.Key))
	return nil
}

// Consume opens a channel with the configured prefetch and streams its deliveries.
// Canceling ctx stops new deliveries but keeps the channel open, so in-flight
// deliveries can still be acknowledged until Close.
func (b *Backend) Consume(ctx context.Context, group string) (<-chan queue.Delivery, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, queue.ErrBackendClosed
	}

	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetup, err)
	}
	if err := ch.Qos(b.cfg.Prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%w: qos: %w", ErrSetup, err)
	}

	if group == "" {
		group = "eventbridge"
	}
	tag := group + "-" + uuid.NewString()[:8]

	deliveries, err := ch.Consume(b.queueName, tag, false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%w: consume: %w", ErrSetup, err)
	}
	b.channels = append(b.channels, ch)

	out := make(chan queue.Delivery)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer close(out)
		b.forward(ctx, ch, tag, deliveries, out)
	}()

	b.logger.InfoContext(ctx, "amqp consumer started",
		slog.String("queue", b.queueName),
		slog.String("consumer_tag", tag))
	return out, nil
}

func (b *Backend) forward(ctx context.Context, ch Channel, tag string, in <-chan amqp.Delivery, out chan<- queue.Delivery) {
	defer func() {
		if err := ch.Cancel(tag, false); err != nil && !ch.IsClosed() {
			b.logger.Warn("failed to cancel amqp consumer", slog.String("consumer_tag", tag), logger.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case raw, ok := <-in:
			if !ok {
				return
			}

			d, err := FromDelivery(raw)
			if err != nil {
				b.logger.ErrorContext(ctx, "rejecting malformed amqp delivery",
					slog.String("message_id", raw.MessageId),
					logger.Error(err))
				_ = raw.Nack(false, false)
				continue
			}

			select {
			case out <- d:
			case <-ctx.Done():
				_ = raw.Nack(false, true)
				return
			case <-b.done:
				_ = raw.Nack(false, true)
				return
			}
		}
	}
}

func (b *Backend) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Healthcheck reports whether the connection is open.
func (b *Backend) Healthcheck(context.Context) error {
	if b.isClosed() {
		return queue.ErrBackendClosed
	}
	if b.conn.IsClosed() {
		return ErrConnClosed
	}
	return nil
}

// Close stops consumers, closes every channel and, when owned, the connection.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return queue.ErrBackendClosed
	}
	b.closed = true
	close(b.done)
	channels := b.channels
	b.mu.Unlock()

	b.wg.Wait()

	for _, ch := range channels {
		_ = ch.Close()
	}
	b.pubMu.Lock()
	_ = b.pubCh.Close()
	b.pubMu.Unlock()

	if b.ownsConn {
		return b.conn.Close()
	}
	return nil
}

// Descriptor registers the backend under Name. The topic names the queue.
func Descriptor(cfg Config) queue.Descriptor {
	return queue.Descriptor{
		Name: Name,
		Factory: func(ctx context.Context, o queue.Options) (queue.Backend, error) {
			conn, err := Dial(ctx, cfg)
			if err != nil {
				return nil, err
			}
			b, err := New(conn, o.Topic, cfg, WithLogger(o.Logger), WithOwnedConnection())
			if err != nil {
				_ = conn.Close()
				return nil, err
			}
			return b, nil
		},
	}
}
