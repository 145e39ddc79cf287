// Package ingress implements the HTTP endpoint receiving Slack event callbacks.
//
// For every POST the handler:
//
//  1. verifies the v0 HMAC signature and timestamp freshness (401 on failure);
//  2. decodes the JSON body (400 when malformed);
//  3. answers url_verification handshakes with {"challenge": "<token>"};
//  4. derives the idempotency key (event_id, or a UUIDv5 of channel, ts and type);
//  5. publishes one queue.Message and answers 200 {} (500 when publishing fails,
//     so the sender retries).
//
// Mount it on a gorilla/mux router:
//
//	h, err := ingress.NewFromConfig(cfg, backend, ingress.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	r := mux.NewRouter()
//	h.Routes(r, cfg.Path)
package ingress
