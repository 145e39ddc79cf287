// Package redisstream implements queue.Backend on Redis streams.
//
// Each message is one stream entry holding the message key and its JSON
// encoding. Consumers join a consumer group (created on first use with
// MKSTREAM), read with XREADGROUP and acknowledge with XACK.
//
// Guarantee: at-least-once across processes. Unacknowledged entries are
// reclaimed by another consumer of the same group after ClaimIdle. Separate
// groups each receive every message.
//
// Trimming is off by default. With MaxLen set, Publish trims only entries
// below the lowest ID that any existing group has pending or not yet read,
// and a stream with no groups is never trimmed. A group created later starts
// from the oldest retained entry, so it misses entries every earlier group
// had already acknowledged.
//
//	client, _ := redis.Connect(ctx, redisCfg)
//	backend, err := redisstream.New(client, "slack_events", redisstream.DefaultConfig())
//
// Or through the backend registry:
//
//	registry.MustRegister(redisstream.Descriptor(redisCfg, streamCfg))
package redisstream
