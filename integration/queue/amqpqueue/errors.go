package amqpqueue

import "errors"

var (
	ErrNilConnection = errors.New("amqp backend: connection is nil")
	ErrEmptyQueue    = errors.New("amqp backend: queue name is empty")
	ErrDial          = errors.New("amqp backend: failed to connect")
	ErrSetup         = errors.New("amqp backend: failed to set up channel")
	ErrPublish       = errors.New("amqp backend: failed to publish")
	ErrNotConfirmed  = errors.New("amqp backend: broker did not confirm publish")
	ErrConnClosed    = errors.New("amqp backend: connection is closed")
)
