package redisstream

import "time"

// Config holds stream consumption settings. Connection settings live in
// integration/database/redis.
type Config struct {
	// Group is the default consumer group when Consume is called with an empty group.
	Group string `env:"REDIS_STREAM_GROUP" envDefault:"eventbridge"`
	// Consumer names this process within the group. Empty generates a unique name.
	Consumer string `env:"REDIS_STREAM_CONSUMER"`
	// MaxLen is the length above which entries every consumer group has
	// acknowledged are trimmed. Unconsumed entries are never trimmed, so the
	// stream may exceed it. Zero disables trimming.
	MaxLen int64 `env:"REDIS_STREAM_MAXLEN" envDefault:"0"`
	// BatchSize is the XREADGROUP COUNT.
	BatchSize int64 `env:"REDIS_STREAM_BATCH_SIZE" envDefault:"10"`
	// Block bounds one XREADGROUP call.
	Block time.Duration `env:"REDIS_STREAM_BLOCK" envDefault:"2s"`
	// ClaimIdle is how long a pending entry may stay unacknowledged before
	// another consumer reclaims it. Zero disables reclaiming.
	ClaimIdle time.Duration `env:"REDIS_STREAM_CLAIM_IDLE" envDefault:"1m"`
	// RetryInterval is the pause after a failed read.
	RetryInterval time.Duration `env:"REDIS_STREAM_RETRY_INTERVAL" envDefault:"1s"`
}

// DefaultConfig returns defaults matching the env tags.
func DefaultConfig() Config {
	return Config{
		Group:         "eventbridge",
		BatchSize:     10,
		Block:         2 * time.Second,
		ClaimIdle:     time.Minute,
		RetryInterval: time.Second,
	}
}
