// Package mongo creates MongoDB clients with connection retry and health
// checking.
//
// New retries the initial connect and ping, which covers cold starts of
// managed clusters and brief network interruptions during startup.
//
//	client, err := mongo.New(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Disconnect(ctx)
//
// Configuration is read from MONGODB_* environment variables via Config.
package mongo
