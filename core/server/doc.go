// Package server runs the HTTP listener that hosts the webhook endpoint and
// the operational routes (health checks and metrics).
//
// The server binds its listener eagerly, so Addr reports the real address
// even when configured with port 0:
//
//	srv := server.New(":8080",
//		server.WithLogger(log),
//		server.WithShutdownTimeout(10*time.Second),
//	)
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(srv.Run(ctx, router))
//
// Run stops accepting connections when ctx is canceled and waits up to the
// shutdown timeout for in-flight requests. A webhook request that is still
// publishing at that point completes its publish before the server exits.
//
// TLS is optional. NewFromConfig enables it when both SERVER_TLS_CERT_FILE and
// SERVER_TLS_KEY_FILE are set, using DefaultTLSConfig as the base.
package server
