// Package metrics exports component counters in the Prometheus format.
//
// Components keep their own atomic counters and expose them through Stats.
// The Collector reads those snapshots on each scrape:
//
//	col := metrics.NewCollector("",
//		metrics.WithIngress(webhookHandler),
//		metrics.WithConsumer(consumer),
//		metrics.WithDispatch(handlers),
//	)
//	reg, err := metrics.NewRegistry(col)
//	metrics.Routes(router, "/metrics", reg, log)
package metrics
