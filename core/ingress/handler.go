package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"github.com/dmitrymomot/eventbridge/core/logger"
	"github.com/dmitrymomot/eventbridge/core/queue"
	"github.com/dmitrymomot/eventbridge/pkg/webhook"
)

// Publisher is the producer side of the active queue backend.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Handler receives signed event callbacks and publishes them to the queue.
//
// It answers as soon as the publish call returns, so processing time never
// counts against the sender's acknowledgement budget. Every accepted request
// results in exactly one Publish call.
type Handler struct {
	publisher    Publisher
	secret       string
	tolerance    time.Duration
	maxBodyBytes int64
	logger       *slog.Logger
	now          func() time.Time

	accepted        atomic.Int64
	handshakes      atomic.Int64
	rejectedAuth    atomic.Int64
	rejectedInvalid atomic.Int64
	publishFailures atomic.Int64
}

// Stats reports request outcomes.
type Stats struct {
	Accepted        int64
	Handshakes      int64
	RejectedAuth    int64
	RejectedInvalid int64
	PublishFailures int64
}

// New creates a Handler.
func New(p Publisher, secret string, opts ...Option) (*Handler, error) {
	if p == nil {
		return nil, ErrNilPublisher
	}
	if secret == "" {
		return nil, ErrEmptySecret
	}

	h := &Handler{
		publisher:    p,
		secret:       secret,
		tolerance:    webhook.DefaultTolerance,
		maxBodyBytes: DefaultMaxBodyBytes,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h, nil
}

// Routes mounts the handler on r at path for POST requests.
func (h *Handler) Routes(r *mux.Router, path string) {
	if path == "" {
		path = DefaultPath
	}
	r.Handle(path, h).Methods(http.MethodPost)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		h.rejectedInvalid.Add(1)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if err := h.verify(r.Header, body); err != nil {
		h.rejectedAuth.Add(1)
		h.logger.WarnContext(ctx, "webhook signature rejected",
			slog.String("remote_addr", r.RemoteAddr),
			logger.Error(err))
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	raw, payload, err := parse(body)
	if err != nil {
		h.rejectedInvalid.Add(1)
		h.logger.WarnContext(ctx, "webhook payload rejected", logger.Error(err))
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if raw.IsHandshake() {
		if raw.Challenge == "" {
			h.rejectedInvalid.Add(1)
			writeError(w, http.StatusBadRequest, "missing challenge")
			return
		}
		h.handshakes.Add(1)
		h.logger.InfoContext(ctx, "url verification handshake answered")
		writeJSON(w, http.StatusOK, map[string]string{"challenge": raw.Challenge})
		return
	}

	if raw.Type == "" || raw.Event == nil {
		h.rejectedInvalid.Add(1)
		h.logger.WarnContext(ctx, "webhook payload rejected", slog.String("reason", "missing type or event"))
		writeError(w, http.StatusBadRequest, "missing type or event")
		return
	}

	msg := queue.Message{
		Key:        IdempotencyKey(raw),
		Payload:    payload,
		ReceivedAt: h.now().UTC(),
	}

	logAttrs := []any{
		logger.MessageKey(msg.Key),
		logger.Event(stringField(raw.Event, "type")),
	}
	if retry := r.Header.Get("X-Slack-Retry-Num"); retry != "" {
		logAttrs = append(logAttrs,
			slog.String("retry_num", retry),
			slog.String("retry_reason", r.Header.Get("X-Slack-Retry-Reason")))
	}

	if err := h.publisher.Publish(ctx, msg); err != nil {
		h.publishFailures.Add(1)
		h.logger.ErrorContext(ctx, "failed to publish event", append(logAttrs, logger.Error(err))...)

		status := http.StatusInternalServerError
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, ErrPublish.Error())
		return
	}

	h.accepted.Add(1)
	h.logger.DebugContext(ctx, "event published", logAttrs...)
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) verify(header http.Header, body []byte) error {
	sig, err := webhook.ExtractSignatureHeaders(header)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	if err := webhook.VerifySignatureAt(h.secret, body, sig, h.tolerance, h.now()); err != nil {
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	return nil
}

// parse decodes the body both as RawEvent and as the generic payload published to the queue.
func parse(body []byte) (RawEvent, map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return RawEvent{}, nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if payload == nil {
		return RawEvent{}, nil, fmt.Errorf("%w: body is not an object", ErrValidation)
	}

	var raw RawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return RawEvent{}, nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return raw, payload, nil
}

// Stats returns a snapshot of request outcomes.
func (h *Handler) Stats() Stats {
	return Stats{
		Accepted:        h.accepted.Load(),
		Handshakes:      h.handshakes.Load(),
		RejectedAuth:    h.rejectedAuth.Load(),
		RejectedInvalid: h.rejectedInvalid.Load(),
		PublishFailures: h.publishFailures.Load(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
