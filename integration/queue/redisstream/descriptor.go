package redisstream

import (
	"context"

	"github.com/dmitrymomot/eventbridge/core/queue"
	redisdb "github.com/dmitrymomot/eventbridge/integration/database/redis"
)

// Descriptor registers the backend under Name. The factory connects with
// conn and uses the registry topic as the stream name.
func Descriptor(conn redisdb.Config, cfg Config) queue.Descriptor {
	return queue.Descriptor{
		Name: Name,
		Factory: func(ctx context.Context, o queue.Options) (queue.Backend, error) {
			client, err := redisdb.Connect(ctx, conn)
			if err != nil {
				return nil, err
			}

			b, err := New(client, o.Topic, cfg, WithLogger(o.Logger), WithOwnedClient())
			if err != nil {
				_ = client.Close()
				return nil, err
			}
			return b, nil
		},
	}
}
