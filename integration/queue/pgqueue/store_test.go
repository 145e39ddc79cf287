package pgqueue_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/eventbridge/core/queue"
	"github.com/dmitrymomot/eventbridge/integration/database/pg"
	"github.com/dmitrymomot/eventbridge/integration/queue/pgqueue"
	"github.com/dmitrymomot/eventbridge/integration/queue/polling"
)

type mockDB struct {
	mock.Mock
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	a := m.Called(ctx, sql, args)
	return pgconn.NewCommandTag(a.String(0)), a.Error(1)
}

func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	a := m.Called(ctx, sql, args)
	rows, _ := a.Get(0).(pgx.Rows)
	return rows, a.Error(1)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return m.Called(ctx, sql, args).Get(0).(pgx.Row)
}

func (m *mockDB) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// fakeRows yields (id, message, attempts) tuples.
type fakeRows struct {
	pgx.Rows
	data [][]any
	pos  int
	err  error
}

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos <= len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	*dest[0].(*int64) = row[0].(int64)
	*dest[1].(*[]byte) = row[1].([]byte)
	*dest[2].(*int) = row[2].(int)
	return nil
}

func (r *fakeRows) Err() error { return r.err }
func (r *fakeRows) Close()     {}

func encoded(t *testing.T, key string) []byte {
	t.Helper()
	b, err := queue.Encode(queue.NewMessage(key, map[string]any{"type": "event_callback"}))
	require.NoError(t, err)
	return b
}

func TestStore_Insert(t *testing.T) {
	t.Parallel()

	db := &mockDB{}
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		return len(args) == 3 && args[0] == "slack_events" && args[1] == "Ev1"
	})).Return("INSERT 0 1", nil).Once()

	s := pgqueue.NewStore(db)
	require.NoError(t, s.Insert(context.Background(), "slack_events", queue.NewMessage("Ev1", map[string]any{})))
	db.AssertExpectations(t)
}

func TestStore_InsertJoinsTransaction(t *testing.T) {
	t.Parallel()

	pool := &mockDB{}
	tx := &mockTx{}
	tx.On("Exec", mock.Anything, mock.Anything, mock.Anything).Return("INSERT 0 1", nil).Once()

	ctx := pg.WithTx(context.Background(), tx)
	require.NoError(t, pgqueue.NewStore(pool).Insert(ctx, "t", queue.NewMessage("k", map[string]any{})))

	tx.AssertExpectations(t)
	pool.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

type mockTx struct {
	pgx.Tx
	mock.Mock
}

func (m *mockTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	a := m.Called(ctx, sql, args)
	return pgconn.NewCommandTag(a.String(0)), a.Error(1)
}

func TestStore_ClaimSortsAndDecodes(t *testing.T) {
	t.Parallel()

	rows := &fakeRows{data: [][]any{
		{int64(12), encoded(t, "second"), 1},
		{int64(7), encoded(t, "first"), 2},
	}}

	db := &mockDB{}
	db.On("Query", mock.Anything, mock.Anything, []any{"events", 10, float64(30)}).Return(rows, nil).Once()

	got, err := pgqueue.NewStore(db).Claim(context.Background(), "events", 10, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, polling.Leased{ID: "7", Message: got[0].Message, Attempts: 2}, got[0])
	assert.Equal(t, "first", got[0].Message.Key)
	assert.Equal(t, "second", got[1].Message.Key)
	db.AssertExpectations(t)
}

func TestStore_ClaimSkipsMalformedRows(t *testing.T) {
	t.Parallel()

	rows := &fakeRows{data: [][]any{
		{int64(3), encoded(t, "first"), 1},
		{int64(4), []byte("{not json"), 5},
		{int64(5), encoded(t, "second"), 1},
	}}

	db := &mockDB{}
	db.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(rows, nil).Once()
	db.On("Exec", mock.Anything, mock.Anything, []any{int64(4)}).Return("DELETE 1", nil).Once()

	got, err := pgqueue.NewStore(db).Claim(context.Background(), "events", 10, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "3", got[0].ID)
	assert.Equal(t, "5", got[1].ID)
	db.AssertExpectations(t)

	t.Run("delete failure still returns healthy rows", func(t *testing.T) {
		t.Parallel()

		rows := &fakeRows{data: [][]any{
			{int64(8), []byte("{"), 1},
			{int64(9), encoded(t, "ok"), 1},
		}}
		db := &mockDB{}
		db.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(rows, nil).Once()
		db.On("Exec", mock.Anything, mock.Anything, []any{int64(8)}).Return("", errors.New("conn reset")).Once()

		got, err := pgqueue.NewStore(db).Claim(context.Background(), "events", 10, time.Second)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "ok", got[0].Message.Key)
		db.AssertExpectations(t)
	})
}

func TestStore_ClaimErrors(t *testing.T) {
	t.Parallel()

	db := &mockDB{}
	db.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("conn busy")).Once()
	_, err := pgqueue.NewStore(db).Claim(context.Background(), "events", 1, time.Second)
	assert.ErrorIs(t, err, pgqueue.ErrClaim)

	db = &mockDB{}
	db.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(&fakeRows{err: errors.New("eof")}, nil).Once()
	_, err = pgqueue.NewStore(db).Claim(context.Background(), "events", 1, time.Second)
	assert.ErrorIs(t, err, pgqueue.ErrClaim)
}

func TestStore_DeleteAndRelease(t *testing.T) {
	t.Parallel()

	db := &mockDB{}
	db.On("Exec", mock.Anything, mock.Anything, []any{int64(42)}).Return("UPDATE 1", nil).Twice()

	s := pgqueue.NewStore(db)
	require.NoError(t, s.Delete(context.Background(), "42"))
	require.NoError(t, s.Release(context.Background(), "42"))
	assert.ErrorIs(t, s.Delete(context.Background(), "not-a-number"), pgqueue.ErrUpdate)
	db.AssertExpectations(t)
}

// TestBackend_Postgres runs against a real database when PGQUEUE_TEST_URL is set.
func TestBackend_Postgres(t *testing.T) {
	url := os.Getenv("PGQUEUE_TEST_URL")
	if url == "" {
		t.Skip("PGQUEUE_TEST_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.Connect(ctx, pg.Config{ConnectionString: url, RetryAttempts: 1})
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, pgqueue.Migrate(ctx, pool, nil))

	topic := "test_" + time.Now().Format("150405.000000")
	b, err := pgqueue.New(pool, topic, polling.Config{PollInterval: 20 * time.Millisecond})
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Publish(ctx, queue.NewMessage("k1", map[string]any{"n": 1})))

	stream, err := b.Consume(ctx, "")
	require.NoError(t, err)
	d := <-stream
	assert.Equal(t, "k1", d.Key)
	require.NoError(t, d.Ack(ctx))
}
