// Package redis creates go-redis clients with connection verification and
// health checking.
//
//	client, err := redis.Connect(ctx, redis.Config{
//		ConnectionURL:  "redis://localhost:6379/0",
//		RetryAttempts:  3,
//		RetryInterval:  5 * time.Second,
//		ConnectTimeout: 30 * time.Second,
//	})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
// Connect accepts redis:// and rediss:// URLs only. It retries the initial
// ping with a linearly growing interval and gives up when the attempts are
// exhausted or the connect timeout expires, returning ErrRedisNotReady.
//
// Healthcheck returns a func(context.Context) error suitable for readiness
// checks.
package redis
