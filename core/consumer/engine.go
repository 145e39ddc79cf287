package consumer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/eventbridge/core/logger"
	"github.com/dmitrymomot/eventbridge/core/queue"
)

const (
	// DefaultShutdownTimeout is the grace period for in-flight handlers.
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultConcurrency is the retry consumer parallelism.
	DefaultConcurrency = 10
)

// Stats reports consumer counters.
type Stats struct {
	State        State
	Received     int64
	Succeeded    int64
	Failed       int64
	Retried      int64
	DeadLettered int64
	InFlight     int32
	// Capacity is the number of concurrent handler slots.
	Capacity int32
}

// engine runs the receive loop shared by every consumer variant.
type engine struct {
	kind            string
	backend         queue.Backend
	group           string
	shutdownTimeout time.Duration
	logger          *slog.Logger
	sem             chan struct{}

	state       atomic.Int32
	stopCh      chan struct{}
	stopOnce    sync.Once
	stopped     chan struct{}
	stoppedOnce sync.Once
	wg          sync.WaitGroup

	received     atomic.Int64
	succeeded    atomic.Int64
	failed       atomic.Int64
	retried      atomic.Int64
	deadLettered atomic.Int64
	inFlight     atomic.Int32
}

func newEngine(kind string, backend queue.Backend, concurrency int, o *options) *engine {
	if concurrency <= 0 {
		concurrency = 1
	}
	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &engine{
		kind:            kind,
		backend:         backend,
		group:           o.group,
		shutdownTimeout: o.shutdownTimeout,
		logger:          logger.With(slog.String("consumer", kind)),
		sem:             make(chan struct{}, concurrency),
		stopCh:          make(chan struct{}),
		stopped:         make(chan struct{}),
	}
}

func defaultOptions() *options {
	return &options{
		concurrency:     DefaultConcurrency,
		shutdownTimeout: DefaultShutdownTimeout,
		maxAttempts:     DefaultMaxAttempts,
		backoff:         DefaultBackoffConfig(),
	}
}

// run receives deliveries until stopped and hands each to process in its own goroutine.
func (e *engine) run(ctx context.Context, process func(ctx context.Context, d queue.Delivery)) error {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		if e.State() == StateStopped {
			return ErrStopped
		}
		return ErrAlreadyRunning
	}
	defer e.markStopped()

	consumeCtx, cancelConsume := context.WithCancel(ctx)
	defer cancelConsume()

	stream, err := e.backend.Consume(consumeCtx, e.group)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConsume, err)
	}

	// Handlers outlive run cancellation until the grace period expires.
	handlerCtx, cancelHandlers := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelHandlers()

	e.logger.InfoContext(ctx, "consumer started",
		logger.ConsumerGroup(e.group),
		slog.Int("concurrency", cap(e.sem)))

receive:
	for {
		select {
		case <-e.stopCh:
			break receive
		case <-ctx.Done():
			break receive
		case e.sem <- struct{}{}:
		}

		select {
		case <-e.stopCh:
			<-e.sem
			break receive
		case <-ctx.Done():
			<-e.sem
			break receive
		case d, ok := <-stream:
			if !ok {
				<-e.sem
				e.logger.InfoContext(ctx, "consumer stream closed")
				break receive
			}

			e.received.Add(1)
			e.inFlight.Add(1)
			e.wg.Add(1)
			go func() {
				defer e.wg.Done()
				defer func() { <-e.sem }()
				defer e.inFlight.Add(-1)
				defer func() {
					if r := recover(); r != nil {
						e.failed.Add(1)
						e.logger.ErrorContext(handlerCtx, "panic while processing message",
							logger.MessageKey(d.Key),
							slog.Any("panic", r),
							slog.String("stack", string(debug.Stack())))
					}
				}()
				process(handlerCtx, d)
			}()
		}
	}

	e.state.Store(int32(StateDraining))
	cancelConsume()
	return e.drain(cancelHandlers)
}

func (e *engine) drain(cancelHandlers context.CancelFunc) error {
	start := time.Now()
	e.logger.Info("consumer draining",
		logger.Count("in_flight", int(e.inFlight.Load())),
		slog.Duration("timeout", e.shutdownTimeout))

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(e.shutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
		e.logger.Info("consumer stopped cleanly", logger.Elapsed(start))
		return nil
	case <-timer.C:
		cancelHandlers()
		e.logger.Warn("consumer shutdown timeout exceeded, in-flight handlers abandoned",
			logger.Count("in_flight", int(e.inFlight.Load())),
			slog.Duration("timeout", e.shutdownTimeout))
		return fmt.Errorf("%w after %s", ErrShutdownTimeout, e.shutdownTimeout)
	}
}

func (e *engine) markStopped() {
	e.state.Store(int32(StateStopped))
	e.stoppedOnce.Do(func() { close(e.stopped) })
}

func (e *engine) shutdown(ctx context.Context) error {
	if e.state.CompareAndSwap(int32(StateIdle), int32(StateStopped)) {
		e.stoppedOnce.Do(func() { close(e.stopped) })
	}
	e.stopOnce.Do(func() { close(e.stopCh) })

	select {
	case <-e.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runFunc adapts run for errgroup: ctx cancellation triggers a graceful shutdown.
func (e *engine) runFunc(ctx context.Context, run func(ctx context.Context) error) func() error {
	return func() error {
		err := run(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
}

// State returns the current lifecycle stage.
func (e *engine) State() State {
	return State(e.state.Load())
}

// Stats returns a snapshot of the consumer counters.
func (e *engine) Stats() Stats {
	return Stats{
		State:        e.State(),
		Received:     e.received.Load(),
		Succeeded:    e.succeeded.Load(),
		Failed:       e.failed.Load(),
		Retried:      e.retried.Load(),
		DeadLettered: e.deadLettered.Load(),
		InFlight:     e.inFlight.Load(),
		Capacity:     int32(cap(e.sem)),
	}
}

// Healthcheck fails when the consumer is not running. A consumer with every
// slot busy is still healthy; saturation shows in Stats as InFlight reaching
// Capacity.
func (e *engine) Healthcheck(_ context.Context) error {
	if e.State() != StateRunning {
		return errors.Join(ErrHealthcheckFailed, ErrNotRunning)
	}
	return nil
}

// ackTimeout bounds acknowledgement calls, which run even after handler
// contexts are canceled.
const ackTimeout = 5 * time.Second

func (e *engine) ack(ctx context.Context, d queue.Delivery) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
	defer cancel()

	if err := d.Ack(ctx); err != nil {
		e.logger.ErrorContext(ctx, "failed to acknowledge message",
			logger.MessageKey(d.Key),
			logger.Error(err))
	}
}

func (e *engine) nack(ctx context.Context, d queue.Delivery) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
	defer cancel()

	if err := d.Nack(ctx); err != nil {
		e.logger.ErrorContext(ctx, "failed to return message to backend",
			logger.MessageKey(d.Key),
			logger.Error(err))
	}
}
