// Command eventbridge receives chat platform webhooks, queues them on the
// configured backend and dispatches them to event handlers.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/eventbridge/core/config"
	"github.com/dmitrymomot/eventbridge/core/consumer"
	"github.com/dmitrymomot/eventbridge/core/event"
	"github.com/dmitrymomot/eventbridge/core/health"
	"github.com/dmitrymomot/eventbridge/core/ingress"
	"github.com/dmitrymomot/eventbridge/core/logger"
	"github.com/dmitrymomot/eventbridge/core/metrics"
	"github.com/dmitrymomot/eventbridge/core/middleware"
	"github.com/dmitrymomot/eventbridge/core/queue"
	"github.com/dmitrymomot/eventbridge/core/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var app appConfig
	config.MustLoad(&app)

	log := newLogger(app)
	slog.SetDefault(log)

	if err := run(ctx, app, log); err != nil {
		log.Error("eventbridge stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("eventbridge stopped")
}

func newLogger(app appConfig) *slog.Logger {
	opts := []logger.Option{logger.WithProduction(app.ServiceName)}
	if app.Environment == "development" {
		opts = []logger.Option{logger.WithDevelopment(app.ServiceName)}
	}
	opts = append(opts,
		logger.WithLevelString(app.LogLevel),
		logger.WithContextExtractors(middleware.RequestIDExtractor),
	)
	return logger.New(opts...)
}

func run(ctx context.Context, app appConfig, log *slog.Logger) error {
	if !app.runsIngress() && !app.runsConsumer() {
		return errors.New("APP_ROLE must be one of all, ingress, consumer")
	}

	var (
		qcfg queue.Config
		ccfg consumer.Config
		scfg server.Config
	)
	if err := config.Load(&qcfg); err != nil {
		return err
	}
	if err := config.Load(&ccfg); err != nil {
		return err
	}
	if err := config.Load(&scfg); err != nil {
		return err
	}

	registry := queue.NewRegistryFromConfig(qcfg, queue.WithRegistryLogger(log))
	if err := registerBackends(registry, qcfg.Backend); err != nil {
		return err
	}

	backend, backendName, err := registry.Resolve(ctx, qcfg.Backend)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeBackend(backend)(); err != nil {
			log.Error("failed to close queue backend", logger.Backend(backendName), logger.Error(err))
		}
	}()

	if backendName == queue.MemoryBackendName && !(app.runsIngress() && app.runsConsumer()) {
		log.Warn("memory backend is process-local; ingress and consumer must run in one process",
			slog.String("role", app.Role))
	}

	router := mux.NewRouter()
	router.Use(
		middleware.Recover(log),
		middleware.RequestID(),
		middleware.Logging(log, middleware.SkipPaths("/health/live", "/health/ready", "/ping", app.MetricsPath)),
	)

	var (
		collectorOpts []metrics.Option
		checks        []health.Check
	)
	if hc, ok := backend.(queue.Healthchecker); ok {
		checks = append(checks, health.Named("queue", hc.Healthcheck))
	}
	if mem, ok := backend.(*queue.MemoryBackend); ok {
		collectorOpts = append(collectorOpts, metrics.WithMemoryBackend(mem))
	}

	if app.runsIngress() {
		var icfg ingress.Config
		if err := config.Load(&icfg); err != nil {
			return err
		}
		webhook, err := ingress.NewFromConfig(icfg, backend, ingress.WithLogger(log))
		if err != nil {
			return err
		}
		webhook.Routes(router, icfg.Path)
		collectorOpts = append(collectorOpts, metrics.WithIngress(webhook))
	}

	g, gctx := errgroup.WithContext(ctx)

	if app.runsConsumer() {
		handlers := event.NewRegistry(event.WithLogger(log))
		registerHandlers(handlers, logPoster{log: log}, log, app.HandlerTimeout)
		handlers.Freeze()

		sink, closeSink, err := deadLetterSink(ctx, ccfg, registry, backendName, log)
		if err != nil {
			return err
		}
		defer func() { _ = closeSink() }()

		c, err := consumer.NewFromConfig(ccfg, backend, log, consumer.WithDeadLetter(sink))
		if err != nil {
			return err
		}

		checks = append(checks, health.Named("consumer", c.Healthcheck))
		collectorOpts = append(collectorOpts,
			metrics.WithConsumer(c),
			metrics.WithDispatch(handlers),
		)

		g.Go(c.RunFunc(gctx, handlers))
	}

	promRegistry, err := metrics.NewRegistry(metrics.NewCollector(metrics.DefaultNamespace, collectorOpts...))
	if err != nil {
		return err
	}
	health.Routes(router, log, checks...)
	metrics.Routes(router, app.MetricsPath, promRegistry, log)

	srv, err := server.NewFromConfig(scfg, server.WithLogger(log))
	if err != nil {
		return err
	}
	g.Go(srv.Run(gctx, router))

	log.Info("eventbridge started",
		slog.String("role", app.Role),
		logger.Backend(backendName),
		slog.String("addr", scfg.Addr))

	return g.Wait()
}
