package event

import "errors"

var (
	ErrRegistryFrozen = errors.New("handler registry is frozen")
	ErrNilHandler     = errors.New("handler cannot be nil")
	ErrEmptyEventType = errors.New("event type cannot be empty")
	ErrHandler        = errors.New("event handler failed")
	ErrHandlerPanic   = errors.New("event handler panicked")
	ErrMissingEvent   = errors.New("payload has no event object")
	ErrPayloadDecode  = errors.New("failed to decode event payload")
)
