// Package queue defines the broker-agnostic backend contract, the built-in
// in-memory backend and the registry that resolves the active backend at startup.
//
// A Backend has exactly two operations:
//
//	Publish(ctx, msg)        // enqueue one Message
//	Consume(ctx, group)      // lazy stream of Deliveries
//
// Consumers acknowledge each Delivery with Ack once it reached a terminal state
// (handled or dead-lettered) and use Nack to hand it back for redelivery.
//
// # Backend selection
//
// Backends are registered by name during initialization and resolved once:
//
//	registry := queue.NewRegistry(queue.WithRegistryLogger(log), queue.WithTopic("slack_events"))
//	registry.MustRegister(redisstream.Descriptor())
//
//	backend, name, err := registry.Resolve(ctx, os.Getenv("QUEUE_BACKEND"))
//	if err != nil {
//		log.Error("queue backend unavailable", logger.Error(err))
//		os.Exit(1)
//	}
//
// An explicit name that is not registered fails with ErrUnknownBackend. With no
// name the first registered backend wins. With nothing registered the memory
// backend is used and a warning is logged: it is suitable for development and
// single-instance deployments only.
//
// # Delivery guarantees
//
// The memory backend is at-least-once while the process is alive and loses
// queued messages on restart. Integration backends document their own guarantee.
package queue
