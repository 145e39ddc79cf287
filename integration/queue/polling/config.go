package polling

import "time"

// Config tunes the claim loop.
type Config struct {
	PollInterval time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"500ms"`
	BatchSize    int           `env:"QUEUE_POLL_BATCH_SIZE" envDefault:"10"`
	Lease        time.Duration `env:"QUEUE_LEASE" envDefault:"5m"`
}

// DefaultConfig returns defaults matching the env tags.
func DefaultConfig() Config {
	return Config{
		PollInterval: 500 * time.Millisecond,
		BatchSize:    10,
		Lease:        5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.Lease <= 0 {
		c.Lease = d.Lease
	}
	return c
}
