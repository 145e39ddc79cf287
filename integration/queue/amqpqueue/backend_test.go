package amqpqueue_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/eventbridge/core/queue"
	"github.com/dmitrymomot/eventbridge/integration/queue/amqpqueue"
)

type confirmation struct {
	acked bool
	err   error
	block bool
}

func (c confirmation) WaitContext(ctx context.Context) (bool, error) {
	if c.block {
		<-ctx.Done()
		return false, ctx.Err()
	}
	return c.acked, c.err
}

type fakeChannel struct {
	mu sync.Mutex

	declared   []string
	bound      []string
	confirmOn  bool
	prefetch   int
	cancelled  []string
	closed     bool
	published  []amqp.Publishing
	routingKey string

	declareErr error
	publishErr error
	confirm    confirmation
	deliveries chan amqp.Delivery
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		confirm:    confirmation{acked: true},
		deliveries: make(chan amqp.Delivery),
	}
}

func (c *fakeChannel) QueueDeclare(name string, durable, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.declareErr != nil {
		return amqp.Queue{}, c.declareErr
	}
	if durable {
		c.declared = append(c.declared, name)
	}
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) QueueBind(name, _, exchange string, _ bool, _ amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bound = append(c.bound, exchange+"->"+name)
	return nil
}

func (c *fakeChannel) Confirm(bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmOn = true
	return nil
}

func (c *fakeChannel) Qos(prefetch, _ int, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefetch = prefetch
	return nil
}

func (c *fakeChannel) Consume(_, _ string, autoAck, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	if autoAck {
		return nil, errors.New("auto ack not expected")
	}
	return c.deliveries, nil
}

func (c *fakeChannel) Cancel(consumer string, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = append(c.cancelled, consumer)
	return nil
}

func (c *fakeChannel) PublishConfirmed(_ context.Context, _, key string, msg amqp.Publishing) (amqpqueue.Confirmation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return nil, c.publishErr
	}
	c.routingKey = key
	c.published = append(c.published, msg)
	return c.confirm, nil
}

func (c *fakeChannel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) cancelledTags() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.cancelled...)
}

// fakeConnection hands out the publish channel first, then consume channels.
type fakeConnection struct {
	mu       sync.Mutex
	channels []*fakeChannel
	next     int
	closed   bool
}

func newFakeConnection(channels ...*fakeChannel) *fakeConnection {
	return &fakeConnection{channels: channels}
}

func (c *fakeConnection) Channel() (amqpqueue.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next >= len(c.channels) {
		return nil, errors.New("no more channels")
	}
	ch := c.channels[c.next]
	c.next++
	return ch, nil
}

func (c *fakeConnection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// syncAcknowledger is safe to read while the backend goroutine acknowledges.
type syncAcknowledger struct {
	mu       sync.Mutex
	acked    []uint64
	nacked   []uint64
	requeues []bool
}

func (a *syncAcknowledger) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *syncAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = append(a.nacked, tag)
	a.requeues = append(a.requeues, requeue)
	return nil
}

func (a *syncAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *syncAcknowledger) snapshot() (acked, nacked []uint64, requeues []bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]uint64(nil), a.acked...), append([]uint64(nil), a.nacked...), append([]bool(nil), a.requeues...)
}

func testConfig() amqpqueue.Config {
	cfg := amqpqueue.DefaultConfig()
	cfg.Prefetch = 5
	cfg.ConfirmTimeout = 50 * time.Millisecond
	return cfg
}

func delivery(t *testing.T, ack amqp.Acknowledger, tag uint64, key string) amqp.Delivery {
	t.Helper()
	pub, err := amqpqueue.ToPublishing(queue.NewMessage(key, map[string]any{"type": "event_callback"}))
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, MessageId: key, Body: pub.Body}
}

func receive(t *testing.T, stream <-chan queue.Delivery) queue.Delivery {
	t.Helper()
	select {
	case d, ok := <-stream:
		require.True(t, ok, "stream closed")
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery")
		return queue.Delivery{}
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("declares durable queue with confirms", func(t *testing.T) {
		t.Parallel()

		pubCh := newFakeChannel()
		b, err := amqpqueue.New(newFakeConnection(pubCh), "events", testConfig())
		require.NoError(t, err)
		defer b.Close()

		assert.Equal(t, []string{"events"}, pubCh.declared)
		assert.Empty(t, pubCh.bound)
		assert.True(t, pubCh.confirmOn)
	})

	t.Run("binds to exchange", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig()
		cfg.Exchange = "slack"
		pubCh := newFakeChannel()
		b, err := amqpqueue.New(newFakeConnection(pubCh), "events", cfg)
		require.NoError(t, err)
		defer b.Close()

		assert.Equal(t, []string{"slack->events"}, pubCh.bound)
	})

	t.Run("setup failure closes channel", func(t *testing.T) {
		t.Parallel()

		pubCh := newFakeChannel()
		pubCh.declareErr = errors.New("access refused")
		_, err := amqpqueue.New(newFakeConnection(pubCh), "events", testConfig())
		assert.ErrorIs(t, err, amqpqueue.ErrSetup)
		assert.True(t, pubCh.IsClosed())
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()

		_, err := amqpqueue.New(nil, "q", testConfig())
		assert.ErrorIs(t, err, amqpqueue.ErrNilConnection)
		assert.Nil(t, amqpqueue.Wrap(nil))

		_, err = amqpqueue.New(newFakeConnection(newFakeChannel()), "", testConfig())
		assert.ErrorIs(t, err, amqpqueue.ErrEmptyQueue)
	})
}

func TestBackend_Publish(t *testing.T) {
	t.Parallel()

	msg := queue.NewMessage("Ev1", map[string]any{"type": "event_callback"})

	t.Run("confirmed", func(t *testing.T) {
		t.Parallel()

		pubCh := newFakeChannel()
		b, err := amqpqueue.New(newFakeConnection(pubCh), "events", testConfig())
		require.NoError(t, err)
		defer b.Close()

		require.NoError(t, b.Publish(context.Background(), msg))
		require.Len(t, pubCh.published, 1)
		assert.Equal(t, "Ev1", pubCh.published[0].MessageId)
		assert.Equal(t, amqp.Persistent, pubCh.published[0].DeliveryMode)
		assert.Equal(t, "events", pubCh.routingKey)
	})

	tests := []struct {
		name    string
		setup   func(*fakeChannel)
		wantErr error
	}{
		{
			name:    "broker nack",
			setup:   func(c *fakeChannel) { c.confirm = confirmation{acked: false} },
			wantErr: amqpqueue.ErrNotConfirmed,
		},
		{
			name:    "confirm timeout",
			setup:   func(c *fakeChannel) { c.confirm = confirmation{block: true} },
			wantErr: amqpqueue.ErrNotConfirmed,
		},
		{
			name:    "confirm mode off",
			setup:   func(c *fakeChannel) { c.publishErr = amqpqueue.ErrNotConfirmed },
			wantErr: amqpqueue.ErrNotConfirmed,
		},
		{
			name:    "channel error",
			setup:   func(c *fakeChannel) { c.publishErr = amqp.ErrClosed },
			wantErr: amqpqueue.ErrPublish,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pubCh := newFakeChannel()
			tt.setup(pubCh)
			b, err := amqpqueue.New(newFakeConnection(pubCh), "events", testConfig())
			require.NoError(t, err)
			defer b.Close()

			err = b.Publish(context.Background(), msg)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("closed backend", func(t *testing.T) {
		t.Parallel()

		b, err := amqpqueue.New(newFakeConnection(newFakeChannel()), "events", testConfig())
		require.NoError(t, err)
		require.NoError(t, b.Close())

		assert.ErrorIs(t, b.Publish(context.Background(), msg), queue.ErrBackendClosed)
	})
}

func TestBackend_Consume(t *testing.T) {
	t.Parallel()

	t.Run("forwards and acknowledges", func(t *testing.T) {
		t.Parallel()

		consumeCh := newFakeChannel()
		b, err := amqpqueue.New(newFakeConnection(newFakeChannel(), consumeCh), "events", testConfig())
		require.NoError(t, err)
		defer b.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		stream, err := b.Consume(ctx, "workers")
		require.NoError(t, err)
		assert.Equal(t, 5, consumeCh.prefetch)

		ack := &syncAcknowledger{}
		consumeCh.deliveries <- delivery(t, ack, 1, "Ev1")

		d := receive(t, stream)
		assert.Equal(t, "Ev1", d.Key)
		require.NoError(t, d.Ack(ctx))

		acked, _, _ := ack.snapshot()
		assert.Equal(t, []uint64{1}, acked)
	})

	t.Run("rejects malformed delivery without requeue", func(t *testing.T) {
		t.Parallel()

		consumeCh := newFakeChannel()
		b, err := amqpqueue.New(newFakeConnection(newFakeChannel(), consumeCh), "events", testConfig())
		require.NoError(t, err)
		defer b.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		stream, err := b.Consume(ctx, "")
		require.NoError(t, err)

		ack := &syncAcknowledger{}
		consumeCh.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte("not json")}
		consumeCh.deliveries <- delivery(t, ack, 2, "Ev2")

		assert.Equal(t, "Ev2", receive(t, stream).Key)

		_, nacked, requeues := ack.snapshot()
		assert.Equal(t, []uint64{1}, nacked)
		assert.Equal(t, []bool{false}, requeues)
	})

	t.Run("requeues undelivered message on cancel", func(t *testing.T) {
		t.Parallel()

		consumeCh := newFakeChannel()
		b, err := amqpqueue.New(newFakeConnection(newFakeChannel(), consumeCh), "events", testConfig())
		require.NoError(t, err)
		defer b.Close()

		ctx, cancel := context.WithCancel(context.Background())
		stream, err := b.Consume(ctx, "")
		require.NoError(t, err)

		ack := &syncAcknowledger{}
		consumeCh.deliveries <- delivery(t, ack, 9, "Ev9")
		cancel()

		require.Eventually(t, func() bool {
			_, nacked, _ := ack.snapshot()
			return len(nacked) == 1
		}, time.Second, 5*time.Millisecond)

		_, nacked, requeues := ack.snapshot()
		assert.Equal(t, []uint64{9}, nacked)
		assert.Equal(t, []bool{true}, requeues)

		for range stream {
		}
		assert.Len(t, consumeCh.cancelledTags(), 1)
		assert.False(t, consumeCh.IsClosed(), "channel stays open for in-flight acks until Close")
	})
}

func TestBackend_HealthcheckAndClose(t *testing.T) {
	t.Parallel()

	pubCh := newFakeChannel()
	consumeCh := newFakeChannel()
	conn := newFakeConnection(pubCh, consumeCh)
	b, err := amqpqueue.New(conn, "events", testConfig(), amqpqueue.WithOwnedConnection())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, b.Healthcheck(ctx))

	stream, err := b.Consume(ctx, "")
	require.NoError(t, err)

	conn.mu.Lock()
	conn.closed = true
	conn.mu.Unlock()
	assert.ErrorIs(t, b.Healthcheck(ctx), amqpqueue.ErrConnClosed)

	require.NoError(t, b.Close())
	_, open := <-stream
	assert.False(t, open)
	assert.True(t, pubCh.IsClosed())
	assert.True(t, consumeCh.IsClosed())
	assert.True(t, conn.IsClosed())

	assert.ErrorIs(t, b.Healthcheck(ctx), queue.ErrBackendClosed)
	assert.ErrorIs(t, b.Close(), queue.ErrBackendClosed)
	_, err = b.Consume(ctx, "")
	assert.ErrorIs(t, err, queue.ErrBackendClosed)
}

// TestBackend_RabbitMQ runs against a real broker when AMQP_TEST_URL is set.
func TestBackend_RabbitMQ(t *testing.T) {
	url := os.Getenv("AMQP_TEST_URL")
	if url == "" {
		t.Skip("AMQP_TEST_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := amqpqueue.DefaultConfig()
	cfg.URL = url

	reg := queue.NewRegistry(queue.WithTopic("eventbridge_test_" + time.Now().Format("150405")))
	reg.MustRegister(amqpqueue.Descriptor(cfg))
	backend, name, err := reg.Resolve(ctx, amqpqueue.Name)
	require.NoError(t, err)
	assert.Equal(t, amqpqueue.Name, name)
	defer backend.(*amqpqueue.Backend).Close()

	require.NoError(t, backend.Publish(ctx, queue.NewMessage("k1", map[string]any{})))

	stream, err := backend.Consume(ctx, "test")
	require.NoError(t, err)
	d := <-stream
	assert.Equal(t, "k1", d.Key)
	require.NoError(t, d.Ack(ctx))
}
