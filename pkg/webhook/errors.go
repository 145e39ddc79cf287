package webhook

import "errors"

var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrInvalidTimestamp = errors.New("invalid webhook timestamp")
	ErrExpiredTimestamp = errors.New("webhook timestamp outside tolerance window")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrEmptySecret      = errors.New("signing secret cannot be empty")
)
