package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/eventbridge/core/queue"
)

// Consumer modes accepted by NewFromConfig.
const (
	ModeLoop  = "loop"
	ModeRetry = "retry"
)

// Dead-letter sink kinds.
const (
	DeadLetterLog   = "log"
	DeadLetterTopic = "topic"
	DeadLetterS3    = "s3"
)

// Config holds consumer settings loaded from the environment.
type Config struct {
	Mode            string        `env:"CONSUMER_MODE" envDefault:"retry"`
	Group           string        `env:"CONSUMER_GROUP"`
	Concurrency     int           `env:"CONSUMER_CONCURRENCY" envDefault:"10"`
	MaxAttempts     int           `env:"CONSUMER_MAX_ATTEMPTS" envDefault:"3"`
	InitialBackoff  time.Duration `env:"CONSUMER_INITIAL_BACKOFF" envDefault:"100ms"`
	MaxBackoff      time.Duration `env:"CONSUMER_MAX_BACKOFF" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"CONSUMER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	DeadLetter      string        `env:"CONSUMER_DEAD_LETTER" envDefault:"log"`
	DeadLetterTopic string        `env:"CONSUMER_DEAD_LETTER_TOPIC" envDefault:"slack_events_dlq"`
	DeadLetterPath  string        `env:"CONSUMER_DEAD_LETTER_PREFIX" envDefault:"dead-letters"`
}

// DefaultConfig returns defaults matching the env tags.
func DefaultConfig() Config {
	def := DefaultBackoffConfig()
	return Config{
		Mode:            ModeRetry,
		Concurrency:     DefaultConcurrency,
		MaxAttempts:     DefaultMaxAttempts,
		InitialBackoff:  def.InitialInterval,
		MaxBackoff:      def.MaxInterval,
		ShutdownTimeout: DefaultShutdownTimeout,
		DeadLetter:      DeadLetterLog,
		DeadLetterTopic: "slack_events_dlq",
		DeadLetterPath:  "dead-letters",
	}
}

// Options converts the config into consumer options.
func (c Config) Options() []Option {
	return []Option{
		WithGroup(c.Group),
		WithConcurrency(c.Concurrency),
		WithMaxAttempts(c.MaxAttempts),
		WithShutdownTimeout(c.ShutdownTimeout),
		WithBackoff(BackoffConfig{
			InitialInterval: c.InitialBackoff,
			MaxInterval:     c.MaxBackoff,
		}),
	}
}

// ConsumerWithStats is a Consumer that also reports counters and health and
// can run under an errgroup.
type ConsumerWithStats interface {
	Consumer
	RunFunc(ctx context.Context, h Handler) func() error
	Stats() Stats
	Healthcheck(ctx context.Context) error
}

// NewFromConfig builds the consumer variant named by cfg.Mode.
// Extra options are applied after the config options.
func NewFromConfig(cfg Config, backend queue.Backend, logger *slog.Logger, opts ...Option) (ConsumerWithStats, error) {
	all := append(cfg.Options(), WithLogger(logger))
	all = append(all, opts...)

	switch cfg.Mode {
	case ModeLoop:
		c, err := NewLoop(backend, all...)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ModeRetry, "":
		c, err := NewRetry(backend, all...)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown consumer mode %q (expected %q or %q)", cfg.Mode, ModeLoop, ModeRetry)
	}
}
