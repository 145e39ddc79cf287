package amqpqueue

import "time"

// Config holds broker settings.
type Config struct {
	URL string `env:"AMQP_URL,required"`
	// Exchange to publish to. Empty publishes through the default exchange
	// straight to the queue named after the topic.
	Exchange string `env:"AMQP_EXCHANGE"`
	// Prefetch bounds unacknowledged deliveries per consumer.
	Prefetch int `env:"AMQP_PREFETCH" envDefault:"20"`
	// ConfirmTimeout bounds waiting for a publisher confirm.
	ConfirmTimeout time.Duration `env:"AMQP_CONFIRM_TIMEOUT" envDefault:"5s"`
	// DialRetryAttempts and DialRetryInterval control the initial connection.
	DialRetryAttempts int           `env:"AMQP_RETRY_ATTEMPTS" envDefault:"3"`
	DialRetryInterval time.Duration `env:"AMQP_RETRY_INTERVAL" envDefault:"2s"`
}

// DefaultConfig returns defaults matching the env tags.
func DefaultConfig() Config {
	return Config{
		Prefetch:          20,
		ConfirmTimeout:    5 * time.Second,
		DialRetryAttempts: 3,
		DialRetryInterval: 2 * time.Second,
	}
}
