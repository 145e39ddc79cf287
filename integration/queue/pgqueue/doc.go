// Package pgqueue implements a queue backend on a PostgreSQL table.
//
// Messages are rows in queue_messages. Consumers claim batches with
// FOR UPDATE SKIP LOCKED and a lease; Ack deletes the row and Nack clears the
// lease.
//
// Guarantee: at-least-once with competing consumers. A crashed consumer's rows
// become claimable again when their lease expires. Publishing inside a caller's
// transaction (pg.WithTx) makes the message visible only on commit.
//
//	if err := pgqueue.Migrate(ctx, pool, log); err != nil {
//		return err
//	}
//	backend, err := pgqueue.New(pool, "slack_events", polling.DefaultConfig())
package pgqueue
