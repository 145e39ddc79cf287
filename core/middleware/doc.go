// Package middleware provides net/http middleware shared by the service's
// HTTP surface: request identifiers, access logging and panic recovery.
//
// Every constructor returns func(http.Handler) http.Handler, so the middleware
// plugs into gorilla/mux through Router.Use:
//
//	r := mux.NewRouter()
//	r.Use(
//	    middleware.Recover(log),
//	    middleware.RequestID(),
//	    middleware.Logging(log, middleware.SkipPaths("/health/live", "/metrics")),
//	)
//
// The request ID is available to handlers through GetRequestID and to loggers
// built with logger.WithContextExtractors(middleware.RequestIDExtractor).
package middleware
