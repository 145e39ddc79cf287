package ingress

import "errors"

var (
	ErrAuthentication = errors.New("webhook authentication failed")
	ErrValidation     = errors.New("invalid webhook payload")
	ErrPublish        = errors.New("failed to publish event")
	ErrNilPublisher   = errors.New("publisher cannot be nil")
	ErrEmptySecret    = errors.New("signing secret cannot be empty")
)
