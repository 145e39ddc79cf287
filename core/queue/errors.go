package queue

import "errors"

var (
	ErrBackendClosed         = errors.New("queue backend is closed")
	ErrUnknownBackend        = errors.New("unknown queue backend")
	ErrBackendInitialization = errors.New("queue backend initialization failed")
	ErrTransientDelivery     = errors.New("transient delivery failure")
	ErrRegistryFrozen        = errors.New("backend registry is frozen after resolution")
	ErrDuplicateBackend      = errors.New("queue backend already registered")
	ErrInvalidDescriptor     = errors.New("invalid backend descriptor")
	ErrInvalidMessage        = errors.New("invalid queue message")
	ErrRequeueFailed         = errors.New("message could not be requeued")
)
