package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dmitrymomot/eventbridge/core/config"
	"github.com/dmitrymomot/eventbridge/core/consumer"
	"github.com/dmitrymomot/eventbridge/core/queue"
	mongodb "github.com/dmitrymomot/eventbridge/integration/database/mongo"
	"github.com/dmitrymomot/eventbridge/integration/database/pg"
	redisdb "github.com/dmitrymomot/eventbridge/integration/database/redis"
	"github.com/dmitrymomot/eventbridge/integration/queue/amqpqueue"
	"github.com/dmitrymomot/eventbridge/integration/queue/mongoqueue"
	"github.com/dmitrymomot/eventbridge/integration/queue/pgqueue"
	"github.com/dmitrymomot/eventbridge/integration/queue/polling"
	"github.com/dmitrymomot/eventbridge/integration/queue/redisstream"
	"github.com/dmitrymomot/eventbridge/integration/storage/s3"
)

// configured reports whether a backend should be registered: its connection
// variable is set or it was selected explicitly.
func configured(selected, name, envVar string) bool {
	return strings.EqualFold(strings.TrimSpace(selected), name) || os.Getenv(envVar) != ""
}

// registerBackends adds a descriptor for every durable backend the
// environment configures. Registration order is the auto-selection order.
func registerBackends(reg *queue.Registry, selected string) error {
	if configured(selected, redisstream.Name, "REDIS_URL") {
		var conn redisdb.Config
		var cfg redisstream.Config
		if err := loadPair(&conn, &cfg); err != nil {
			return err
		}
		if err := reg.Register(redisstream.Descriptor(conn, cfg)); err != nil {
			return err
		}
	}

	if configured(selected, pgqueue.Name, "PG_CONN_URL") {
		var conn pg.Config
		var cfg polling.Config
		if err := loadPair(&conn, &cfg); err != nil {
			return err
		}
		if err := reg.Register(pgqueue.Descriptor(conn, cfg)); err != nil {
			return err
		}
	}

	if configured(selected, mongoqueue.Name, "MONGODB_URL") {
		var conn mongodb.Config
		var cfg polling.Config
		if err := loadPair(&conn, &cfg); err != nil {
			return err
		}
		if err := reg.Register(mongoqueue.Descriptor(conn, cfg)); err != nil {
			return err
		}
	}

	if configured(selected, amqpqueue.Name, "AMQP_URL") {
		var cfg amqpqueue.Config
		if err := config.Load(&cfg); err != nil {
			return err
		}
		if err := reg.Register(amqpqueue.Descriptor(cfg)); err != nil {
			return err
		}
	}

	return nil
}

func loadPair[A, B any](a *A, b *B) error {
	if err := config.Load(a); err != nil {
		return err
	}
	return config.Load(b)
}

// deadLetterSink builds the sink named by cfg.DeadLetter.
func deadLetterSink(ctx context.Context, cfg consumer.Config, reg *queue.Registry, backendName string, log *slog.Logger) (consumer.DeadLetterSink, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(strings.TrimSpace(cfg.DeadLetter)) {
	case "", consumer.DeadLetterLog:
		return consumer.NewLogSink(log), noop, nil

	case consumer.DeadLetterTopic:
		target, err := reg.Open(ctx, backendName, queue.Options{Topic: cfg.DeadLetterTopic, Logger: log})
		if err != nil {
			return nil, noop, fmt.Errorf("open dead-letter topic %q: %w", cfg.DeadLetterTopic, err)
		}
		return consumer.NewPublishSink(target), closeBackend(target), nil

	case consumer.DeadLetterS3:
		var s3cfg s3.Config
		if err := config.Load(&s3cfg); err != nil {
			return nil, noop, err
		}
		store, err := s3.New(ctx, s3cfg)
		if err != nil {
			return nil, noop, err
		}
		return consumer.NewObjectSink(store, cfg.DeadLetterPath), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown dead-letter sink %q", cfg.DeadLetter)
	}
}

type closer interface {
	Close() error
}

func closeBackend(b queue.Backend) func() error {
	return func() error {
		if c, ok := b.(closer); ok {
			return c.Close()
		}
		return nil
	}
}
