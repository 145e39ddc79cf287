package queue

import (
	"context"
	"fmt"
	"time"
)

// Message is the canonical envelope placed on a queue.
type Message struct {
	// Key is the idempotency key: replays of the same source event share it.
	Key        string         `json:"key"`
	Payload    map[string]any `json:"payload"`
	ReceivedAt time.Time      `json:"received_at"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(key string, payload map[string]any) Message {
	return Message{Key: key, Payload: payload, ReceivedAt: time.Now().UTC()}
}

// Validate reports whether the message can be published.
func (m Message) Validate() error {
	if m.Key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidMessage)
	}
	if m.Payload == nil {
		return fmt.Errorf("%w: nil payload", ErrInvalidMessage)
	}
	return nil
}

// Delivery is a message handed to a consumer together with its acknowledgement callbacks.
// Ack marks the message terminal (handled or dead-lettered). Nack hands it back to the
// backend for redelivery according to the backend's own semantics.
type Delivery struct {
	Message

	ack  func(ctx context.Context) error
	nack func(ctx context.Context) error
}

// NewDelivery wraps msg. Nil callbacks are treated as no-ops.
func NewDelivery(msg Message, ack, nack func(ctx context.Context) error) Delivery {
	return Delivery{Message: msg, ack: ack, nack: nack}
}

// Ack acknowledges the delivery.
func (d Delivery) Ack(ctx context.Context) error {
	if d.ack == nil {
		return nil
	}
	return d.ack(ctx)
}

// Nack returns the delivery to the backend.
func (d Delivery) Nack(ctx context.Context) error {
	if d.nack == nil {
		return nil
	}
	return d.nack(ctx)
}
