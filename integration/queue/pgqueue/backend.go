package pgqueue

import (
	"context"
	"embed"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/eventbridge/core/queue"
	"github.com/dmitrymomot/eventbridge/integration/database/pg"
	"github.com/dmitrymomot/eventbridge/integration/queue/polling"
)

// Name is the registry name of this backend.
const Name = "postgres"

// MigrationsTable records applied queue migrations apart from application ones.
const MigrationsTable = "queue_schema_migrations"

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate creates or upgrades the queue table.
func Migrate(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger) error {
	return pg.MigrateFS(ctx, pool, migrations, "migrations", MigrationsTable, log)
}

// New creates a backend on db publishing to topic.
func New(db DB, topic string, cfg polling.Config, opts ...polling.Option) (*polling.Backend, error) {
	return polling.New(NewStore(db), topic, cfg, opts...)
}

// Descriptor registers the backend under Name. The factory connects, applies
// the queue migration and closes the pool when the backend is closed.
func Descriptor(conn pg.Config, cfg polling.Config) queue.Descriptor {
	return queue.Descriptor{
		Name: Name,
		Factory: func(ctx context.Context, o queue.Options) (queue.Backend, error) {
			pool, err := pg.Connect(ctx, conn)
			if err != nil {
				return nil, err
			}
			if err := Migrate(ctx, pool, o.Logger); err != nil {
				pool.Close()
				return nil, err
			}

			store := NewStore(pool, WithStoreLogger(o.Logger))
			b, err := polling.New(store, o.Topic, cfg,
				polling.WithLogger(o.Logger),
				polling.WithCloser(func() error {
					pool.Close()
					return nil
				}))
			if err != nil {
				pool.Close()
				return nil, err
			}
			return b, nil
		},
	}
}
