package pgqueue

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/dmitrymomot/eventbridge/core/logger"
	"github.com/dmitrymomot/eventbridge/core/queue"
	"github.com/dmitrymomot/eventbridge/integration/database/pg"
	"github.com/dmitrymomot/eventbridge/integration/queue/polling"
)

const (
	insertSQL = `INSERT INTO queue_messages (topic, message_key, message) VALUES ($1, $2, $3)`

	claimSQL = `
UPDATE queue_messages
SET locked_until = now() + make_interval(secs => $3), attempts = attempts + 1
WHERE id IN (
    SELECT id FROM queue_messages
    WHERE topic = $1 AND (locked_until IS NULL OR locked_until < now())
    ORDER BY id
    LIMIT $2
    FOR UPDATE SKIP LOCKED
)
RETURNING id, message, attempts`

	deleteSQL  = `DELETE FROM queue_messages WHERE id = $1`
	releaseSQL = `UPDATE queue_messages SET locked_until = NULL WHERE id = $1`
)

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	pg.Querier
	Ping(ctx context.Context) error
}

// Store keeps messages in the queue_messages table.
type Store struct {
	db     DB
	logger *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger used to report dropped rows.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a Store on db.
func NewStore(db DB, opts ...StoreOption) *Store {
	s := &Store{
		db:     db,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert stores msg. When ctx carries a transaction (see pg.WithTx) the insert joins it.
func (s *Store) Insert(ctx context.Context, topic string, msg queue.Message) error {
	data, err := queue.Encode(msg)
	if err != nil {
		return err
	}
	if _, err := pg.QuerierFrom(ctx, s.db).Exec(ctx, insertSQL, topic, msg.Key, data); err != nil {
		return fmt.Errorf("%w: %w", ErrInsert, err)
	}
	return nil
}

// Claim leases up to limit messages with FOR UPDATE SKIP LOCKED, so concurrent
// claimers never receive the same row. Rows whose message cannot be decoded
// are deleted and left out of the result; the rest of the batch is returned.
func (s *Store) Claim(ctx context.Context, topic string, limit int, lease time.Duration) ([]polling.Leased, error) {
	rows, err := s.db.Query(ctx, claimSQL, topic, limit, lease.Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClaim, err)
	}
	defer rows.Close()

	type claimed struct {
		id    int64
		lease polling.Leased
	}
	var (
		batch     []claimed
		malformed []int64
	)

	for rows.Next() {
		var (
			id       int64
			data     []byte
			attempts int
		)
		if err := rows.Scan(&id, &data, &attempts); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrClaim, err)
		}
		msg, err := queue.Decode(data)
		if err != nil {
			s.logger.ErrorContext(ctx, "dropping malformed queue row",
				slog.Int64("row_id", id),
				logger.Topic(topic),
				logger.Attempt(attempts),
				logger.Error(err))
			malformed = append(malformed, id)
			continue
		}
		batch = append(batch, claimed{
			id:    id,
			lease: polling.Leased{ID: strconv.FormatInt(id, 10), Message: msg, Attempts: attempts},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClaim, err)
	}
	rows.Close()

	for _, id := range malformed {
		if _, err := s.db.Exec(ctx, deleteSQL, id); err != nil {
			s.logger.WarnContext(ctx, "failed to delete malformed queue row",
				slog.Int64("row_id", id),
				logger.Error(err))
		}
	}

	// RETURNING does not preserve the subquery order.
	slices.SortFunc(batch, func(a, b claimed) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		default:
			return 0
		}
	})

	out := make([]polling.Leased, len(batch))
	for i, c := range batch {
		out[i] = c.lease
	}
	return out, nil
}

// Delete removes an acknowledged message.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.exec(ctx, deleteSQL, id)
}

// Release clears the lease of a message.
func (s *Store) Release(ctx context.Context, id string) error {
	return s.exec(ctx, releaseSQL, id)
}

func (s *Store) exec(ctx context.Context, sql, id string) error {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid id %q", ErrUpdate, id)
	}
	if _, err := s.db.Exec(ctx, sql, n); err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
