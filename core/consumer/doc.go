// Package consumer pulls messages from a queue backend and dispatches them to
// handlers.
//
// Every consumer moves through Idle, Running, Draining and Stopped. Run blocks
// while the consumer is running. Shutdown (safe from any goroutine), ctx
// cancellation or the end of the backend stream start draining: no new
// messages are received and in-flight handlers get a grace period to finish.
// Run returns once the consumer is stopped.
//
// Three variants share that lifecycle:
//
//   - Loop processes one message at a time without retries.
//   - Retry processes messages concurrently, retries failed handlers with
//     exponential backoff and moves exhausted messages to a DeadLetterSink.
//   - Bridge forwards messages into another runtime's channel.
//
// Usage with the event registry and errgroup:
//
//	c, err := consumer.NewRetry(backend,
//		consumer.WithConcurrency(10),
//		consumer.WithMaxAttempts(3),
//		consumer.WithDeadLetter(consumer.NewPublishSink(dlqBackend)),
//		consumer.WithLogger(log),
//	)
//	if err != nil {
//		return err
//	}
//	g.Go(c.RunFunc(ctx, registry))
//
// Ordering across keys is not guaranteed. With concurrency above one even
// messages of the same key may complete out of order.
package consumer
