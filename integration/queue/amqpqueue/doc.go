// Package amqpqueue implements a queue backend on RabbitMQ.
//
// Messages are persistent publishings on a durable queue named after the
// topic. Publish waits for the publisher confirm; consumers acknowledge
// manually and Nack requeues on the broker.
//
// Guarantee: at-least-once with competing consumers. Deliveries that were
// never acknowledged return to the queue when their channel closes. A
// delivery already taken from the broker but not yet handed to a consumer
// when its context ends is requeued. Malformed deliveries are rejected
// without requeue.
//
// The backend drives the broker through the Connection and Channel
// interfaces. Dial returns a ready Connection; Wrap adapts one dialed
// elsewhere:
//
//	conn, err := amqpqueue.Dial(ctx, cfg)
//	backend, err := amqpqueue.New(conn, "slack_events", cfg, amqpqueue.WithOwnedConnection())
package amqpqueue
