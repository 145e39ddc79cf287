package ingress

import (
	"strconv"

	"github.com/google/uuid"
)

// keyNamespace scopes derived idempotency keys.
var keyNamespace = uuid.MustParse("6f1c2a8e-3b7d-5c41-9e2f-8a0d4b6c1e73")

// RawEvent is the inbound callback body.
type RawEvent struct {
	Type      string         `json:"type"`
	Token     string         `json:"token,omitempty"`
	TeamID    string         `json:"team_id,omitempty"`
	APIAppID  string         `json:"api_app_id,omitempty"`
	Event     map[string]any `json:"event,omitempty"`
	EventID   string         `json:"event_id,omitempty"`
	EventTime int64          `json:"event_time,omitempty"`
	Challenge string         `json:"challenge,omitempty"`
}

// IsHandshake reports whether the body is a URL verification request.
func (e RawEvent) IsHandshake() bool {
	return e.Challenge != "" || e.Type == "url_verification"
}

// IdempotencyKey returns event_id when present. Otherwise it derives a
// deterministic UUIDv5 from the channel, timestamp and type of the event, so
// redeliveries of the same event always share a key.
func IdempotencyKey(e RawEvent) string {
	if e.EventID != "" {
		return e.EventID
	}

	channel := channelID(e.Event["channel"])

	ts := stringField(e.Event, "ts")
	if ts == "" {
		ts = stringField(e.Event, "event_ts")
	}
	if ts == "" && e.EventTime > 0 {
		ts = strconv.FormatInt(e.EventTime, 10)
	}

	typ := stringField(e.Event, "type")
	if typ == "" {
		typ = e.Type
	}

	return uuid.NewSHA1(keyNamespace, []byte(channel+"|"+ts+"|"+typ)).String()
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

// channelID handles both the string form and the object form ({"id": ...}) of channels.
func channelID(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case map[string]any:
		id, _ := c["id"].(string)
		return id
	default:
		return ""
	}
}
