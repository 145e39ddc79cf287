// Package health provides HTTP handlers for service health monitoring.
//
// Handlers:
//   - Liveness: Process is running (no dependency checks)
//   - Readiness: All dependencies are available
//   - NoContent: Returns 204 for minimal overhead
//
// Usage:
//
//	health.Routes(router, log,
//		health.Named("queue", backend.Healthcheck),
//		health.Named("consumer", consumer.Healthcheck),
//	)
//
// Dependency checks must follow the func(context.Context) error signature.
// Each one is bounded by DefaultCheckTimeout.
package health
