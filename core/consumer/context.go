package consumer

import (
	"context"
	"sync"
)

type (
	attemptKey  struct{}
	progressKey struct{}
)

type progress struct {
	mu   sync.Mutex
	done map[string]struct{}
}

// withDelivery prepares a context shared by every attempt of one delivery.
func withDelivery(ctx context.Context) context.Context {
	return context.WithValue(ctx, progressKey{}, &progress{done: make(map[string]struct{})})
}

func withAttempt(ctx context.Context, attempt int) context.Context {
	return context.WithValue(ctx, attemptKey{}, attempt)
}

// AttemptFromContext returns the 1-based attempt number of the current delivery.
// It returns 1 outside a consumer.
func AttemptFromContext(ctx context.Context) int {
	if n, ok := ctx.Value(attemptKey{}).(int); ok && n > 0 {
		return n
	}
	return 1
}

// Completed reports whether step already succeeded in an earlier attempt of the current delivery.
func Completed(ctx context.Context, step string) bool {
	p, ok := ctx.Value(progressKey{}).(*progress)
	if !ok {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, done := p.done[step]
	return done
}

// MarkCompleted records that step succeeded, so retries of the same delivery skip it.
// It is a no-op outside a consumer.
func MarkCompleted(ctx context.Context, step string) {
	p, ok := ctx.Value(progressKey{}).(*progress)
	if !ok {
		return
	}
	p.mu.Lock()
	p.done[step] = struct{}{}
	p.mu.Unlock()
}
