package logger

import (
	"log/slog"
	"time"
)

// Attribute helpers return an empty Attr for zero inputs, so calls like
// log.Info("msg", logger.Error(err)) need no nil checks.

// Error creates an attribute for a single error under the key "error".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Duration creates an attribute for a duration.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Elapsed logs the time since start.
func Elapsed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}

// Component names the subsystem emitting the record.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event names an event type.
func Event(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("event_type", name)
}

// MessageKey is the idempotency key of a queued message.
func MessageKey(key string) slog.Attr {
	if key == "" {
		return slog.Attr{}
	}
	return slog.String("message_key", key)
}

// Backend names a queue backend.
func Backend(name string) slog.Attr {
	return slog.String("backend", name)
}

// Topic names a queue topic, stream or table.
func Topic(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("topic", name)
}

// ConsumerGroup names a consumer group.
func ConsumerGroup(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("consumer_group", name)
}

// Attempt is the 1-based delivery attempt.
func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

// Count creates a generic counter attribute.
func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// StatusCode creates an attribute for HTTP status codes.
func StatusCode(code int) slog.Attr {
	return slog.Int("status_code", code)
}

// Method creates an attribute for an HTTP method.
func Method(method string) slog.Attr {
	return slog.String("method", method)
}

// Path creates an attribute for a URL path.
func Path(path string) slog.Attr {
	return slog.String("path", path)
}

// RequestID creates an attribute for a request identifier.
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// BytesOut creates an attribute for the response size.
func BytesOut(n int64) slog.Attr {
	return slog.Int64("bytes_out", n)
}
