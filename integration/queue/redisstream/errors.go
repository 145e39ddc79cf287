package redisstream

import "errors"

var (
	ErrNilClient     = errors.New("redis stream backend: client is nil")
	ErrEmptyStream   = errors.New("redis stream backend: stream name is empty")
	ErrCreateGroup   = errors.New("redis stream backend: failed to create consumer group")
	ErrPublish       = errors.New("redis stream backend: failed to publish")
	ErrMalformedItem = errors.New("redis stream backend: malformed stream entry")
)
