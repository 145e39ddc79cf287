package redisstream_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/eventbridge/core/queue"
	redisdb "github.com/dmitrymomot/eventbridge/integration/database/redis"
	"github.com/dmitrymomot/eventbridge/integration/queue/redisstream"
)

func testConfig() redisstream.Config {
	cfg := redisstream.DefaultConfig()
	cfg.Consumer = "test"
	cfg.Block = 50 * time.Millisecond
	cfg.ClaimIdle = 0
	cfg.MaxLen = 0
	cfg.RetryInterval = 10 * time.Millisecond
	return cfg
}

func newBackend(t *testing.T) (*redisstream.Backend, *miniredis.Miniredis) {
	t.Helper()
	b, mr, _ := newBackendWithClient(t)
	return b, mr
}

func newBackendWithClient(t *testing.T) (*redisstream.Backend, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	return newBackendWithConfig(t, testConfig())
}

func newBackendWithConfig(t *testing.T, cfg redisstream.Config) (*redisstream.Backend, *miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	b, err := redisstream.New(client, "events", cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b, mr, client
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

func TestBackend_PublishConsumeAck(t *testing.T) {
	t.Parallel()

	b, _, client := newBackendWithClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := range 3 {
		require.NoError(t, b.Publish(ctx, queue.NewMessage(fmt.Sprintf("k%d", i), map[string]any{"n": i})))
	}

	stream, err := b.Consume(ctx, "")
	require.NoError(t, err)

	for i := range 3 {
		d := receive(t, stream)
		assert.Equal(t, fmt.Sprintf("k%d", i), d.Key)
		assert.EqualValues(t, i, d.Payload["n"])
		require.NoError(t, d.Ack(ctx))
	}

	pending, err := client.XPending(ctx, "events", "eventbridge").Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestBackend_Nack(t *testing.T) {
	t.Parallel()

	b, _ := newBackend(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, b.Publish(ctx, queue.NewMessage("retry-me", map[string]any{"type": "message"})))

	stream, err := b.Consume(ctx, "")
	require.NoError(t, err)

	first := receive(t, stream)
	require.NoError(t, first.Nack(ctx))

	second := receive(t, stream)
	assert.Equal(t, "retry-me", second.Key)
	require.NoError(t, second.Ack(ctx))
}

func TestBackend_GroupsFanOut(t *testing.T) {
	t.Parallel()

	b, _ := newBackend(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := b.Consume(ctx, "audit")
	require.NoError(t, err)
	c, err := b.Consume(ctx, "workers")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, queue.NewMessage("k", map[string]any{})))

	assert.Equal(t, "k", receive(t, a).Key)
	assert.Equal(t, "k", receive(t, c).Key)
}

func TestBackend_MalformedEntrySkipped(t *testing.T) {
	t.Parallel()

	b, mr := newBackend(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := mr.XAdd("events", "*", []string{"key", "bad", "message", "{not json"})
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, queue.NewMessage("good", map[string]any{})))

	stream, err := b.Consume(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "good", receive(t, stream).Key)
}

func TestBackend_StreamEndsOnCancel(t *testing.T) {
	t.Parallel()

	b, _ := newBackend(t)
	ctx, cancel := context.WithCancel(context.Background())

	stream, err := b.Consume(ctx, "")
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-stream:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBackend_Close(t *testing.T) {
	t.Parallel()

	b, _ := newBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Healthcheck(ctx))
	require.NoError(t, b.Close())

	assert.ErrorIs(t, b.Publish(ctx, queue.NewMessage("k", map[string]any{})), queue.ErrBackendClosed)
	_, err := b.Consume(ctx, "")
	assert.ErrorIs(t, err, queue.ErrBackendClosed)
	assert.ErrorIs(t, b.Healthcheck(ctx), queue.ErrBackendClosed)
	assert.ErrorIs(t, b.Close(), queue.ErrBackendClosed)
}

func TestDefaultConfig_NoTrimming(t *testing.T) {
	t.Parallel()
	assert.Zero(t, redisstream.DefaultConfig().MaxLen)
}

func TestBackend_MaxLenKeepsUnconsumedEntries(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxLen = 3
	b, _, client := newBackendWithConfig(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := range 6 {
		require.NoError(t, b.Publish(ctx, queue.NewMessage(fmt.Sprintf("m%d", i), map[string]any{})))
	}

	length, err := client.XLen(ctx, "events").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 6, length)

	stream, err := b.Consume(ctx, "late")
	require.NoError(t, err)

	for i := range 6 {
		d := receive(t, stream)
		assert.Equal(t, fmt.Sprintf("m%d", i), d.Key)
		require.NoError(t, d.Ack(ctx))
	}
}

func TestBackend_MaxLenTrimsAcknowledgedEntries(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxLen = 2
	b, _, client := newBackendWithConfig(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := b.Consume(ctx, "")
	require.NoError(t, err)

	for i := range 4 {
		require.NoError(t, b.Publish(ctx, queue.NewMessage(fmt.Sprintf("m%d", i), map[string]any{})))
	}

	var held []queue.Delivery
	for i := range 4 {
		d := receive(t, stream)
		assert.Equal(t, fmt.Sprintf("m%d", i), d.Key)
		if i < 2 {
			require.NoError(t, d.Ack(ctx))
			continue
		}
		held = append(held, d)
	}

	require.NoError(t, b.Publish(ctx, queue.NewMessage("m4", map[string]any{})))

	entries, err := client.XRange(ctx, "events", "-", "+").Result()
	require.NoError(t, err)
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Values["key"].(string))
	}
	assert.Equal(t, []string{"m2", "m3", "m4"}, keys, "pending and unread entries survive trimming")

	for _, d := range held {
		require.NoError(t, d.Ack(ctx))
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := redisstream.New(nil, "events", testConfig())
	assert.ErrorIs(t, err, redisstream.ErrNilClient)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	_, err = redisstream.New(client, "", testConfig())
	assert.ErrorIs(t, err, redisstream.ErrEmptyStream)
}

func TestDescriptor(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	reg := queue.NewRegistry(queue.WithTopic("slack_events"))
	reg.MustRegister(redisstream.Descriptor(redisdb.Config{ConnectionURL: "redis://" + mr.Addr(), RetryAttempts: 1}, testConfig()))

	backend, name, err := reg.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, redisstream.Name, name)

	require.NoError(t, backend.Publish(context.Background(), queue.NewMessage("k", map[string]any{})))
	assert.True(t, mr.Exists("slack_events"))
	require.NoError(t, backend.(*redisstream.Backend).Close())
}
