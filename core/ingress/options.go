package ingress

import (
	"log/slog"
	"time"
)

// Option configures a Handler.
type Option func(*Handler)

// WithTolerance sets the accepted age of a signed request.
func WithTolerance(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.tolerance = d
		}
	}
}

// WithMaxBodyBytes limits the request body size.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithClock overrides the time source used for signature freshness checks.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}
