package health

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/dmitrymomot/eventbridge/core/logger"
)

// DefaultCheckTimeout bounds a single readiness check.
const DefaultCheckTimeout = 2 * time.Second

// CheckFunc reports whether a dependency is usable.
type CheckFunc func(ctx context.Context) error

// Check is a named dependency check.
type Check struct {
	Name string
	Fn   CheckFunc
}

// Named pairs a check function with the name used in logs.
func Named(name string, fn CheckFunc) Check {
	return Check{Name: name, Fn: fn}
}

// Readiness verifies all dependencies are functioning.
// Returns "READY" if every check passes, 503 Service Unavailable otherwise.
// Checks run in order and stop at the first failure.
func Readiness(log *slog.Logger, checks ...Check) http.HandlerFunc {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return func(w http.ResponseWriter, r *http.Request) {
		for _, c := range checks {
			if c.Fn == nil {
				continue
			}

			ctx, cancel := context.WithTimeout(r.Context(), DefaultCheckTimeout)
			err := c.Fn(ctx)
			cancel()

			if err != nil {
				log.ErrorContext(r.Context(), "Readiness check failed",
					slog.String("check", c.Name),
					logger.Error(err))
				writeText(w, http.StatusServiceUnavailable, "NOT READY")
				return
			}
		}

		writeText(w, http.StatusOK, "READY")
	}
}

// Routes mounts /health/live, /health/ready and /ping on r.
func Routes(r *mux.Router, log *slog.Logger, checks ...Check) {
	r.HandleFunc("/health/live", Liveness).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/health/ready", Readiness(log, checks...)).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/ping", NoContent).Methods(http.MethodGet, http.MethodHead)
}
