// Package webhook signs and verifies Slack-style webhook requests.
//
// The signature is an HMAC-SHA256 over "v0:<timestamp>:<raw body>" keyed with
// the shared signing secret and sent as "v0=<hex>" in X-Slack-Signature, with
// the Unix timestamp in X-Slack-Request-Timestamp.
//
// Verify an inbound request:
//
//	body, _ := io.ReadAll(r.Body)
//	sig, err := webhook.ExtractSignatureHeaders(r.Header)
//	if err != nil {
//		http.Error(w, "missing signature", http.StatusUnauthorized)
//		return
//	}
//	if err := webhook.VerifySignature(secret, body, sig, 5*time.Minute); err != nil {
//		http.Error(w, "invalid signature", http.StatusUnauthorized)
//		return
//	}
//
// Sign a payload, for example to replay a captured event against a local server:
//
//	sig, err := webhook.SignPayload(secret, body)
//	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
//	webhook.SetHeaders(req.Header, sig)
//
// Requests older or newer than the tolerance are rejected with
// ErrExpiredTimestamp to prevent replays. Mismatches return ErrInvalidSignature.
package webhook
