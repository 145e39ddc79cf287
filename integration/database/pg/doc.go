// Package pg creates pgx connection pools with retry, applies goose
// migrations and provides health checking.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.MigrateFS(ctx, pool, migrations, "migrations", "queue_migrations", log); err != nil {
//		return err
//	}
//
// Migrate and MigrateFS run goose over a database/sql wrapper of the pool,
// so no second connection pool is opened.
//
// WithTx stores a transaction in the context; QuerierFrom picks it up, which
// lets storage code join a transaction started by its caller.
package pg
