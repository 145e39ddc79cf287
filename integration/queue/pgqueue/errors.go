package pgqueue

import "errors"

var (
	ErrInsert = errors.New("pgqueue: failed to insert message")
	ErrClaim  = errors.New("pgqueue: failed to claim messages")
	ErrUpdate = errors.New("pgqueue: failed to update message")
)
