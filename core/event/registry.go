package event

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/eventbridge/core/consumer"
	"github.com/dmitrymomot/eventbridge/core/logger"
	"github.com/dmitrymomot/eventbridge/core/queue"
)

// Registry maps event types to ordered handler sets.
//
// Handlers are registered during setup. The first Handle call freezes the
// registry; registering afterwards returns ErrRegistryFrozen.
//
// Keys are "*" (every event), "<type>" and "<type>.<subtype>". A message runs
// the handlers of every matching key in that order.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string][]HandlerFunc
	fallback HandlerFunc
	logger   *slog.Logger
	frozen   atomic.Bool

	dispatched atomic.Int64
	unmatched  atomic.Int64
	invoked    atomic.Int64
	failed     atomic.Int64
}

// RegistryStats reports dispatch counters.
type RegistryStats struct {
	Dispatched int64
	Unmatched  int64
	Invoked    int64
	Failed     int64
	Handlers   int
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for handler failures and unmatched events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithFallback handles messages no registered type matches.
// Without a fallback unmatched messages are logged and skipped.
func WithFallback(fn HandlerFunc) Option {
	return func(r *Registry) {
		if fn != nil {
			r.fallback = fn
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		handlers: make(map[string][]HandlerFunc),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register appends fn to the handlers of eventType.
func (r *Registry) Register(eventType string, fn HandlerFunc) error {
	eventType = normalizeType(eventType)
	if eventType == "" {
		return ErrEmptyEventType
	}
	if fn == nil {
		return ErrNilHandler
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return fmt.Errorf("%w: cannot register %q", ErrRegistryFrozen, eventType)
	}

	r.handlers[eventType] = append(r.handlers[eventType], fn)
	return nil
}

// On registers fn for eventType and returns the registry for chaining.
// It panics on invalid input, like http.HandleFunc, and is meant for setup code.
func (r *Registry) On(eventType string, fn HandlerFunc) *Registry {
	if err := r.Register(eventType, fn); err != nil {
		panic(err)
	}
	return r
}

// OnAny registers fn for every event type.
func (r *Registry) OnAny(fn HandlerFunc) *Registry {
	return r.On(Wildcard, fn)
}

// Freeze stops further registration. Handle freezes implicitly.
func (r *Registry) Freeze() {
	r.frozen.Store(true)
}

// Types lists the registered keys.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}

type route struct {
	step string
	fn   HandlerFunc
}

func (r *Registry) match(typ, subtype string) []route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var routes []route
	for _, key := range routingKeys(typ, subtype) {
		for i, fn := range r.handlers[key] {
			routes = append(routes, route{step: key + "#" + strconv.Itoa(i), fn: fn})
		}
	}
	return routes
}

// Handle runs every handler matching msg in registration order.
//
// A failing or panicking handler is logged and does not prevent its siblings
// from running. The returned error joins all handler failures, each wrapping
// ErrHandler. Handlers that succeeded in an earlier attempt of the same
// delivery are skipped. Unmatched messages go to the fallback or are skipped.
func (r *Registry) Handle(ctx context.Context, msg queue.Message) error {
	r.frozen.Store(true)
	r.dispatched.Add(1)

	typ, subtype := EventType(msg.Payload)
	routes := r.match(typ, subtype)

	if len(routes) == 0 {
		r.unmatched.Add(1)
		if r.fallback != nil {
			routes = []route{{step: "fallback", fn: r.fallback}}
		} else {
			r.logger.DebugContext(ctx, "no handlers for event type",
				logger.Event(typ),
				slog.String("event_subtype", subtype),
				logger.MessageKey(msg.Key))
			return nil
		}
	}

	var errs []error
	for _, rt := range routes {
		if consumer.Completed(ctx, rt.step) {
			continue
		}

		start := time.Now()
		err := r.invoke(ctx, rt.fn, msg)
		r.invoked.Add(1)

		if err != nil {
			r.failed.Add(1)
			r.logger.ErrorContext(ctx, "event handler failed",
				slog.String("handler", rt.step),
				logger.Event(typ),
				logger.MessageKey(msg.Key),
				logger.Attempt(consumer.AttemptFromContext(ctx)),
				logger.Duration(time.Since(start)),
				logger.Error(err))
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrHandler, rt.step, err))
			continue
		}

		consumer.MarkCompleted(ctx, rt.step)
		r.logger.DebugContext(ctx, "event handled",
			slog.String("handler", rt.step),
			logger.Event(typ),
			logger.MessageKey(msg.Key),
			logger.Duration(time.Since(start)))
	}

	return errors.Join(errs...)
}

func (r *Registry) invoke(ctx context.Context, fn HandlerFunc, msg queue.Message) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "event handler panic",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, rec)
		}
	}()
	return fn(ctx, msg)
}

// Stats returns dispatch counters.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	handlers := 0
	for _, fns := range r.handlers {
		handlers += len(fns)
	}
	r.mu.RUnlock()

	return RegistryStats{
		Dispatched: r.dispatched.Load(),
		Unmatched:  r.unmatched.Load(),
		Invoked:    r.invoked.Load(),
		Failed:     r.failed.Load(),
		Handlers:   handlers,
	}
}
