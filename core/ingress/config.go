package ingress

import "time"

const (
	// DefaultPath is the events endpoint.
	DefaultPath = "/slack/events"

	// DefaultMaxBodyBytes bounds inbound bodies.
	DefaultMaxBodyBytes = 1 << 20
)

// Config holds ingress settings loaded from the environment.
type Config struct {
	SigningSecret string        `env:"SLACK_SIGNING_SECRET,required"`
	Path          string        `env:"SLACK_EVENTS_PATH" envDefault:"/slack/events"`
	Tolerance     time.Duration `env:"SLACK_SIGNATURE_TOLERANCE" envDefault:"5m"`
	MaxBodyBytes  int64         `env:"SLACK_MAX_BODY_BYTES" envDefault:"1048576"`
}

// NewFromConfig creates a Handler from cfg. Additional options override config values.
func NewFromConfig(cfg Config, p Publisher, opts ...Option) (*Handler, error) {
	configOpts := []Option{
		WithTolerance(cfg.Tolerance),
		WithMaxBodyBytes(cfg.MaxBodyBytes),
	}
	return New(p, cfg.SigningSecret, append(configOpts, opts...)...)
}
