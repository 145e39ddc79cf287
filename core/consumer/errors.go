package consumer

import "errors"

var (
	ErrHandler           = errors.New("handler failed")
	ErrHandlerPanic      = errors.New("handler panicked")
	ErrRetryExhausted    = errors.New("retry attempts exhausted")
	ErrNonRecoverable    = errors.New("handler error is not recoverable")
	ErrAlreadyRunning    = errors.New("consumer is already running")
	ErrStopped           = errors.New("consumer is stopped")
	ErrShutdownTimeout   = errors.New("consumer shutdown timeout exceeded")
	ErrConsume           = errors.New("failed to open consumer stream")
	ErrTranslate         = errors.New("failed to translate message")
	ErrNilBackend        = errors.New("backend cannot be nil")
	ErrNilHandler        = errors.New("handler cannot be nil")
	ErrHealthcheckFailed = errors.New("consumer healthcheck failed")
	ErrNotRunning        = errors.New("consumer is not running")
	ErrDeadLetter        = errors.New("failed to dead-letter message")
)
