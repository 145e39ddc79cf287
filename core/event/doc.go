// Package event routes queued Slack events to application handlers.
//
// Handlers are registered by event type during setup, either through explicit
// Register calls or the chainable On form:
//
//	registry := event.NewRegistry(event.WithLogger(log))
//	registry.
//		OnAny(auditLog).
//		On("app_mention", event.Typed(onMention)).
//		On("message.channel_join", onJoin)
//
// The event type is read from the nested "event" object of the payload and
// falls back to the top-level "type" field. A message is delivered to the
// wildcard handlers, then to the "<type>" handlers, then to the
// "<type>.<subtype>" handlers.
//
// Registry implements the consumer handler contract, so it can be passed
// directly to a consumer:
//
//	c := consumer.NewRetry(backend, consumer.WithMaxAttempts(3))
//	err := c.Run(ctx, registry)
//
// Unknown event types are skipped with a debug log. A failing handler is
// logged and never prevents sibling handlers from running. When used with the
// retry consumer only the handlers that failed are invoked again.
package event
