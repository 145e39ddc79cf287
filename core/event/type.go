package event

import "strings"

// Wildcard matches every event type.
const Wildcard = "*"

// EventType returns the type and subtype of a payload. They are taken from the
// nested "event" object and fall back to the top-level fields.
func EventType(payload map[string]any) (typ, subtype string) {
	if inner, ok := payload["event"].(map[string]any); ok {
		typ, _ = inner["type"].(string)
		subtype, _ = inner["subtype"].(string)
	}
	if typ == "" {
		typ, _ = payload["type"].(string)
		subtype, _ = payload["subtype"].(string)
	}
	return typ, subtype
}

// routingKeys returns the registry keys matching a payload, most generic first.
func routingKeys(typ, subtype string) []string {
	keys := []string{Wildcard}
	if typ == "" {
		return keys
	}
	keys = append(keys, typ)
	if subtype != "" {
		keys = append(keys, typ+"."+subtype)
	}
	return keys
}

func normalizeType(eventType string) string {
	return strings.TrimSpace(eventType)
}
