package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/eventbridge/core/logger"
	"github.com/dmitrymomot/eventbridge/core/queue"
)

// DeadLetterEntry is a message that could not be handled, with its failure metadata.
type DeadLetterEntry struct {
	Message   queue.Message `json:"message"`
	Attempts  int           `json:"attempts"`
	LastError string        `json:"last_error"`
	FailedAt  time.Time     `json:"failed_at"`

	// Err wraps the cause and the last handler error. The cause is ErrRetryExhausted
	// when every attempt failed, ErrNonRecoverable when the handler returned a
	// non-recoverable error, and ErrTranslate for the bridge.
	Err error `json:"-"`
}

func newDeadLetterEntry(msg queue.Message, attempts int, cause, lastErr error) DeadLetterEntry {
	return DeadLetterEntry{
		Message:   msg,
		Attempts:  attempts,
		LastError: lastErr.Error(),
		FailedAt:  time.Now().UTC(),
		Err:       fmt.Errorf("%w: %w", cause, lastErr),
	}
}

// DeadLetterSink receives messages that reached a terminal failure.
type DeadLetterSink interface {
	Send(ctx context.Context, entry DeadLetterEntry) error
}

// SinkFunc adapts a function to DeadLetterSink.
type SinkFunc func(ctx context.Context, entry DeadLetterEntry) error

// Send calls f.
func (f SinkFunc) Send(ctx context.Context, entry DeadLetterEntry) error {
	return f(ctx, entry)
}

// LogSink records dead letters as error logs. The message payload is included
// so it can be replayed from log storage.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger uses slog.Default.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Send logs the entry.
func (s *LogSink) Send(ctx context.Context, entry DeadLetterEntry) error {
	s.logger.ErrorContext(ctx, "message dead-lettered",
		logger.MessageKey(entry.Message.Key),
		slog.Int("attempts", entry.Attempts),
		slog.String("last_error", entry.LastError),
		slog.Time("failed_at", entry.FailedAt),
		slog.Any("payload", entry.Message.Payload))
	return nil
}

type publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// PublishSink forwards dead letters to another backend topic.
type PublishSink struct {
	target publisher
}

// NewPublishSink creates a sink publishing to target.
func NewPublishSink(target publisher) *PublishSink {
	return &PublishSink{target: target}
}

// Send publishes the entry under the original message key.
func (s *PublishSink) Send(ctx context.Context, entry DeadLetterEntry) error {
	msg := queue.Message{
		Key: entry.Message.Key,
		Payload: map[string]any{
			"key":         entry.Message.Key,
			"payload":     entry.Message.Payload,
			"received_at": entry.Message.ReceivedAt.Format(time.RFC3339Nano),
			"attempts":    entry.Attempts,
			"last_error":  entry.LastError,
			"failed_at":   entry.FailedAt.Format(time.RFC3339Nano),
		},
		ReceivedAt: entry.FailedAt,
	}
	if err := s.target.Publish(ctx, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrDeadLetter, err)
	}
	return nil
}

// ObjectWriter stores a blob under a key. The S3 integration implements it.
type ObjectWriter interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// ObjectSink writes each dead letter as a JSON document to an object store,
// under <prefix>/<yyyy>/<mm>/<dd>/<message key>-<uuid>.json.
type ObjectSink struct {
	writer ObjectWriter
	prefix string
}

// NewObjectSink creates an ObjectSink.
func NewObjectSink(writer ObjectWriter, prefix string) *ObjectSink {
	return &ObjectSink{writer: writer, prefix: prefix}
}

// Send marshals and stores the entry.
func (s *ObjectSink) Send(ctx context.Context, entry DeadLetterEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeadLetter, err)
	}
	if err := s.writer.Put(ctx, s.objectKey(entry), body, "application/json"); err != nil {
		return fmt.Errorf("%w: %w", ErrDeadLetter, err)
	}
	return nil
}

func (s *ObjectSink) objectKey(entry DeadLetterEntry) string {
	return path.Join(s.prefix, entry.FailedAt.Format("2006/01/02"),
		fmt.Sprintf("%s-%s.json", entry.Message.Key, uuid.NewString()))
}
