package redisstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/eventbridge/core/logger"
	"github.com/dmitrymomot/eventbridge/core/queue"
)

// Name is the registry name of this backend.
const Name = "redis"

const (
	fieldKey     = "key"
	fieldMessage = "message"
)

// Backend stores messages in a Redis stream and consumes them through consumer groups.
//
// Delivery is at-least-once. An entry stays in the group's pending list until
// acknowledged with XACK; entries left pending longer than ClaimIdle (for
// example after a crash) are reclaimed with XAUTOCLAIM and redelivered.
// Nack acknowledges the entry and appends a fresh copy, so the message is
// redelivered immediately under the same key.
type Backend struct {
	client     redis.UniversalClient
	stream     string
	cfg        Config
	consumer   string
	logger     *slog.Logger
	ownsClient bool

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

// WithOwnedClient makes Close also close the client.
func WithOwnedClient() Option {
	return func(b *Backend) { b.ownsClient = true }
}

// New creates a Backend on stream.
func New(client redis.UniversalClient, stream string, cfg Config, opts ...Option) (*Backend, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if stream == "" {
		return nil, ErrEmptyStream
	}
	if cfg.Group == "" {
		cfg.Group = DefaultConfig().Group
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.Block <= 0 {
		cfg.Block = DefaultConfig().Block
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultConfig().RetryInterval
	}

	consumer := cfg.Consumer
	if consumer == "" {
		host, _ := os.Hostname()
		consumer = strings.Trim(host+"-"+uuid.NewString()[:8], "-")
	}

	b := &Backend{
		client:   client,
		stream:   stream,
		cfg:      cfg,
		consumer: consumer,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

// Publish appends msg to the stream.
func (b *Backend) Publish(ctx context.Context, msg queue.Message) error {
	if b.isClosed() {
		return queue.ErrBackendClosed
	}

	data, err := queue.Encode(msg)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: b.stream,
		Values: map[string]any{fieldKey: msg.Key, fieldMessage: data},
	}

	id, err := b.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}

	if trimmed, err := b.trim(ctx); err != nil {
		b.logger.WarnContext(ctx, "stream trim failed",
			slog.String("stream", b.stream),
			logger.Error(err))
	} else if trimmed > 0 {
		b.logger.DebugContext(ctx, "stream trimmed",
			slog.String("stream", b.stream),
			logger.Count("trimmed", int(trimmed)))
	}

	b.logger.DebugContext(ctx, "message appended to stream",
		slog.String("stream", b.stream),
		slog.String("entry_id", id),
		logger.MessageKey(msg.Key))
	return nil
}

// Consume joins group, creating it when missing, and streams its entries.
// Entries already in the stream when the group is created are delivered too.
func (b *Backend) Consume(ctx context.Context, group string) (<-chan queue.Delivery, error) {
	if group == "" {
		group = b.cfg.Group
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, queue.ErrBackendClosed
	}

	if err := b.client.XGroupCreateMkStream(ctx, b.stream, group, "0").Err(); err != nil &&
		!strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("%w: %w", ErrCreateGroup, err)
	}

	out := make(chan queue.Delivery)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer close(out)
		b.loop(ctx, group, out)
	}()

	b.logger.InfoContext(ctx, "joined stream consumer group",
		slog.String("stream", b.stream),
		logger.ConsumerGroup(group),
		slog.String("consumer", b.consumer))
	return out, nil
}

func (b *Backend) loop(ctx context.Context, group string, out chan<- queue.Delivery) {
	claimStart := "0-0"
	for {
		if ctx.Err() != nil || b.isClosed() {
			return
		}

		if b.cfg.ClaimIdle > 0 {
			next, ok := b.reclaim(ctx, group, claimStart, out)
			if !ok {
				return
			}
			claimStart = next
		}

		streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: b.consumer,
			Streams:  []string{b.stream, ">"},
			Count:    b.cfg.BatchSize,
			Block:    b.cfg.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
				return
			}
			b.logger.ErrorContext(ctx, "failed to read from stream",
				slog.String("stream", b.stream),
				logger.ConsumerGroup(group),
				logger.Error(err))
			if !b.sleep(ctx, b.cfg.RetryInterval) {
				return
			}
			continue
		}

		for _, s := range streams {
			for _, entry := range s.Messages {
				if !b.deliver(ctx, group, entry, out) {
					return
				}
			}
		}
	}
}

// reclaim takes over entries idle longer than ClaimIdle. It returns the cursor
// for the next scan and false when the loop must stop.
func (b *Backend) reclaim(ctx context.Context, group, start string, out chan<- queue.Delivery) (string, bool) {
	entries, next, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   b.stream,
		Group:    group,
		Consumer: b.consumer,
		MinIdle:  b.cfg.ClaimIdle,
		Start:    start,
		Count:    b.cfg.BatchSize,
	}).Result()
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
			return start, false
		}
		b.logger.WarnContext(ctx, "failed to reclaim pending entries", logger.Error(err))
		return "0-0", true
	}

	if len(entries) > 0 {
		b.logger.InfoContext(ctx, "reclaimed pending entries",
			slog.String("stream", b.stream),
			logger.Count("count", len(entries)))
	}
	for _, entry := range entries {
		if !b.deliver(ctx, group, entry, out) {
			return next, false
		}
	}
	return next, true
}

func (b *Backend) deliver(ctx context.Context, group string, entry redis.XMessage, out chan<- queue.Delivery) bool {
	msg, err := decodeEntry(entry)
	if err != nil {
		b.logger.ErrorContext(ctx, "dropping malformed stream entry",
			slog.String("entry_id", entry.ID),
			logger.Error(err))
		_ = b.client.XAck(context.WithoutCancel(ctx), b.stream, group, entry.ID).Err()
		return true
	}

	id := entry.ID
	d := queue.NewDelivery(msg,
		func(ctx context.Context) error {
			return b.client.XAck(ctx, b.stream, group, id).Err()
		},
		func(ctx context.Context) error {
			return b.requeue(ctx, group, id, msg)
		},
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

// requeue acknowledges id and appends msg again in one transaction.
func (b *Backend) requeue(ctx context.Context, group, id string, msg queue.Message) error {
	data, err := queue.Encode(msg)
	if err != nil {
		return err
	}
	_, err = b.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.XAck(ctx, b.stream, group, id)
		p.XAdd(ctx, &redis.XAddArgs{
			Stream: b.stream,
			Values: map[string]any{fieldKey: msg.Key, fieldMessage: data},
		})
		return nil
	})
	return err
}

func decodeEntry(entry redis.XMessage) (queue.Message, error) {
	raw, ok := entry.Values[fieldMessage].(string)
	if !ok {
		return queue.Message{}, fmt.Errorf("%w: missing %q field", ErrMalformedItem, fieldMessage)
	}
	return queue.Decode([]byte(raw))
}

func (b *Backend) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-b.done:
		return false
	}
}

func (b *Backend) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Healthcheck pings Redis.
func (b *Backend) Healthcheck(ctx context.Context) error {
	if b.isClosed() {
		return queue.ErrBackendClosed
	}
	return b.client.Ping(ctx).Err()
}

// Close ends every consumer stream and, when owned, closes the client.
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
	if b.ownsClient {
		return b.client.Close()
	}
	return nil
}
