// Package logger builds slog loggers and provides attribute helpers shared by
// the ingress, queue backends and consumers.
//
// Create loggers with New and options:
//
//	log := logger.New(
//		logger.WithProduction("eventbridge"),
//		logger.WithLevelString(os.Getenv("LOG_LEVEL")),
//	)
//
//	log.Info("message published",
//		logger.Component("ingress"),
//		logger.MessageKey(msg.Key),
//		logger.Event("app_mention"),
//	)
//
// Attribute helpers return an empty slog.Attr for zero values, which slog
// drops, so optional fields can be passed unconditionally:
//
//	log.Error("handler failed", logger.Error(err), logger.Attempt(3))
//
// Request-scoped attributes can be injected from the context:
//
//	log := logger.New(logger.WithContextExtractors(func(ctx context.Context) (slog.Attr, bool) {
//		id, ok := ctx.Value(requestIDKey{}).(string)
//		return slog.String("request_id", id), ok
//	}))
package logger
