package health_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/eventbridge/core/health"
)

func TestLiveness(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	health.Liveness(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ALIVE", rec.Body.String())
}

func TestReadiness(t *testing.T) {
	t.Parallel()

	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name   string
		checks []health.Check
		status int
		body   string
	}{
		{name: "no checks", status: http.StatusOK, body: "READY"},
		{name: "all pass", checks: []health.Check{health.Named("a", ok), health.Named("b", ok)}, status: http.StatusOK, body: "READY"},
		{name: "one fails", checks: []health.Check{health.Named("a", ok), health.Named("b", fail)}, status: http.StatusServiceUnavailable, body: "NOT READY"},
		{name: "nil check skipped", checks: []health.Check{health.Named("nil", nil)}, status: http.StatusOK, body: "READY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			health.Readiness(nil, tt.checks...)(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.body, rec.Body.String())
		})
	}
}

func TestReadiness_CheckTimeout(t *testing.T) {
	t.Parallel()

	slow := func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		if !ok {
			return errors.New("no deadline")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
			return nil
		}
	}

	rec := httptest.NewRecorder()
	health.Readiness(nil, health.Named("slow", slow))(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoutes(t *testing.T) {
	t.Parallel()

	r := mux.NewRouter()
	health.Routes(r, nil, health.Named("queue", func(context.Context) error { return errors.New("closed") }))

	for path, status := range map[string]int{
		"/health/live":  http.StatusOK,
		"/health/ready": http.StatusServiceUnavailable,
		"/ping":         http.StatusNoContent,
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, status, rec.Code, path)
	}
}
