package queue

// Config selects and parameterizes the active backend.
type Config struct {
	// Backend is the explicit backend name. Empty enables auto-selection.
	Backend        string `env:"QUEUE_BACKEND"`
	Topic          string `env:"SLACK_EVENTS_TOPIC" envDefault:"slack_events"`
	MemoryCapacity int    `env:"QUEUE_MEMORY_CAPACITY" envDefault:"1000"`
}

// DefaultConfig returns defaults matching the env tags.
func DefaultConfig() Config {
	return Config{
		Topic:          DefaultTopic,
		MemoryCapacity: DefaultMemoryCapacity,
	}
}

const (
	// MemoryBackendName is the reserved name of the built-in backend.
	MemoryBackendName = "memory"

	// DefaultTopic is used when no topic is configured.
	DefaultTopic = "slack_events"

	// DefaultMemoryCapacity bounds the in-memory queue.
	DefaultMemoryCapacity = 1000
)
