package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// SignatureHeader carries "v0=<hex hmac>".
	SignatureHeader = "X-Slack-Signature"

	// TimestampHeader carries the request time in Unix seconds.
	TimestampHeader = "X-Slack-Request-Timestamp"

	// SignatureVersion prefixes both the signed base string and the header value.
	SignatureVersion = "v0"

	// DefaultTolerance is the accepted clock difference between sender and receiver.
	DefaultTolerance = 5 * time.Minute
)

// Signature is the pair of values sent in the signature headers.
type Signature struct {
	Value     string
	Timestamp int64
}

// Sign computes "v0=" + hex(HMAC-SHA256(secret, "v0:<timestamp>:<body>")).
func Sign(secret string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(SignatureVersion + ":" + strconv.FormatInt(timestamp, 10) + ":"))
	mac.Write(body)
	return SignatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}

// SignPayload signs body with the current time.
func SignPayload(secret string, body []byte) (Signature, error) {
	if secret == "" {
		return Signature{}, ErrEmptySecret
	}
	ts := time.Now().Unix()
	return Signature{Value: Sign(secret, ts, body), Timestamp: ts}, nil
}

// SetHeaders writes sig into h.
func SetHeaders(h http.Header, sig Signature) {
	h.Set(SignatureHeader, sig.Value)
	h.Set(TimestampHeader, strconv.FormatInt(sig.Timestamp, 10))
}

// ExtractSignatureHeaders reads the signature headers from h.
func ExtractSignatureHeaders(h http.Header) (Signature, error) {
	value := strings.TrimSpace(h.Get(SignatureHeader))
	if value == "" {
		return Signature{}, ErrMissingSignature
	}

	raw := strings.TrimSpace(h.Get(TimestampHeader))
	if raw == "" {
		return Signature{}, ErrMissingSignature
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ts <= 0 {
		return Signature{}, ErrInvalidTimestamp
	}

	return Signature{Value: value, Timestamp: ts}, nil
}

// VerifySignature checks sig against body using the current time.
func VerifySignature(secret string, body []byte, sig Signature, tolerance time.Duration) error {
	return VerifySignatureAt(secret, body, sig, tolerance, time.Now())
}

// VerifySignatureAt checks sig against body as of now. The timestamp must be
// positive and within tolerance of now in either direction, and the comparison
// is constant time.
func VerifySignatureAt(secret string, body []byte, sig Signature, tolerance time.Duration, now time.Time) error {
	if secret == "" {
		return ErrEmptySecret
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	if sig.Timestamp <= 0 {
		return ErrInvalidTimestamp
	}

	// Whole seconds: time.Duration saturates for timestamps far from now.
	skew := now.Unix() - sig.Timestamp
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(tolerance/time.Second) {
		return ErrExpiredTimestamp
	}

	expected := Sign(secret, sig.Timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(sig.Value)) {
		return ErrInvalidSignature
	}
	return nil
}
