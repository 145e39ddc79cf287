package polling

import (
	"context"
	"time"

	"github.com/dmitrymomot/eventbridge/core/queue"
)

// Leased is a stored message claimed by one consumer until its lease expires.
type Leased struct {
	ID       string
	Message  queue.Message
	Attempts int
}

// Store is the persistence contract of a lease-based queue.
//
// Claim must atomically pick at most limit available messages of topic in
// insertion order and hide them from other claimers for lease. A message
// whose lease expires becomes available again.
type Store interface {
	Insert(ctx context.Context, topic string, msg queue.Message) error
	Claim(ctx context.Context, topic string, limit int, lease time.Duration) ([]Leased, error)
	// Delete removes a handled message.
	Delete(ctx context.Context, id string) error
	// Release makes a claimed message available again immediately.
	Release(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}
