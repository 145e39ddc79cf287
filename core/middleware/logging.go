package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/eventbridge/core/logger"
)

// LoggingOption configures Logging.
type LoggingOption func(*loggingConfig)

type loggingConfig struct {
	level         slog.Level
	slowThreshold time.Duration
	component     string
	skip          func(*http.Request) bool
}

// WithLogLevel sets the level for successful requests.
func WithLogLevel(level slog.Level) LoggingOption {
	return func(c *loggingConfig) {
		c.level = level
	}
}

// WithSlowThreshold logs requests slower than d at warning level.
func WithSlowThreshold(d time.Duration) LoggingOption {
	return func(c *loggingConfig) {
		if d > 0 {
			c.slowThreshold = d
		}
	}
}

// WithComponent sets the component attribute.
func WithComponent(name string) LoggingOption {
	return func(c *loggingConfig) {
		if name != "" {
			c.component = name
		}
	}
}

// SkipPaths disables logging for the given exact paths, typically health checks and
// the metrics endpoint.
func SkipPaths(paths ...string) LoggingOption {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return func(c *loggingConfig) {
		c.skip = func(r *http.Request) bool {
			_, ok := set[r.URL.Path]
			return ok
		}
	}
}

// Logging writes one record per completed request. 5xx responses are logged
// at error level, 4xx and slow requests at warning level.
func Logging(log *slog.Logger, opts ...LoggingOption) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Discard()
	}
	cfg := &loggingConfig{
		level:         slog.LevelInfo,
		slowThreshold: 5 * time.Second,
		component:     "http",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.skip != nil && cfg.skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			duration := time.Since(start)

			attrs := []slog.Attr{
				logger.Component(cfg.component),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.StatusCode(wrapped.statusCode),
				logger.BytesOut(int64(wrapped.size)),
				logger.Duration(duration),
			}
			if id, ok := GetRequestID(r.Context()); ok {
				attrs = append(attrs, logger.RequestID(id))
			}

			level := cfg.level
			switch {
			case wrapped.statusCode >= 500:
				level = slog.LevelError
			case wrapped.statusCode >= 400:
				level = slog.LevelWarn
			case duration > cfg.slowThreshold:
				level = slog.LevelWarn
				attrs = append(attrs, slog.Bool("slow_request", true))
			}

			log.LogAttrs(r.Context(), level, "http request completed", attrs...)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode    int
	size          int
	headerWritten bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if rw.headerWritten {
		return
	}
	rw.statusCode = statusCode
	rw.headerWritten = true
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.headerWritten {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
