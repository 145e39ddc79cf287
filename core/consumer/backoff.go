package consumer

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BackoffConfig describes exponential delays between retry attempts.
// Zero fields take the defaults.
type BackoffConfig struct {
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultBackoffConfig starts at 100ms and doubles up to 10s with 10% jitter.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		Multiplier:          2,
		RandomizationFactor: 0.1,
	}
}

func (c BackoffConfig) newBackOff() backoff.BackOff {
	def := DefaultBackoffConfig()
	b := backoff.NewExponentialBackOff()

	b.InitialInterval = def.InitialInterval
	if c.InitialInterval > 0 {
		b.InitialInterval = c.InitialInterval
	}
	b.MaxInterval = def.MaxInterval
	if c.MaxInterval > 0 {
		b.MaxInterval = c.MaxInterval
	}
	b.Multiplier = def.Multiplier
	if c.Multiplier >= 1 {
		b.Multiplier = c.Multiplier
	}
	b.RandomizationFactor = def.RandomizationFactor
	if c.RandomizationFactor > 0 && c.RandomizationFactor < 1 {
		b.RandomizationFactor = c.RandomizationFactor
	}
	// Attempts are bounded by the consumer, not by elapsed time.
	b.MaxElapsedTime = 0
	b.Reset()

	return b
}
