package mongoqueue

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/dmitrymomot/eventbridge/core/queue"
	mongodb "github.com/dmitrymomot/eventbridge/integration/database/mongo"
	"github.com/dmitrymomot/eventbridge/integration/queue/polling"
)

// Name is the registry name of this backend.
const Name = "mongo"

// CollectionName holds queued messages.
const CollectionName = "queue_messages"

// EnsureIndexes creates the claim index.
func EnsureIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "topic", Value: 1},
			{Key: "locked_until", Value: 1},
			{Key: "_id", Value: 1},
		},
	})
	return err
}

// New creates a backend on db publishing to topic.
func New(db *mongo.Database, topic string, cfg polling.Config, opts ...polling.Option) (*polling.Backend, error) {
	store := NewStore(db.Collection(CollectionName), mongodb.Healthcheck(db.Client()))
	return polling.New(store, topic, cfg, opts...)
}

// Descriptor registers the backend under Name. The factory connects, ensures
// indexes and disconnects when the backend is closed.
func Descriptor(conn mongodb.Config, cfg polling.Config) queue.Descriptor {
	return queue.Descriptor{
		Name: Name,
		Factory: func(ctx context.Context, o queue.Options) (queue.Backend, error) {
			db, err := mongodb.NewWithDatabase(ctx, conn, conn.Database)
			if err != nil {
				return nil, err
			}
			disconnect := func() error { return db.Client().Disconnect(context.Background()) }

			if err := EnsureIndexes(ctx, db.Collection(CollectionName)); err != nil {
				_ = disconnect()
				return nil, err
			}

			b, err := New(db, o.Topic, cfg, polling.WithLogger(o.Logger), polling.WithCloser(disconnect))
			if err != nil {
				_ = disconnect()
				return nil, err
			}
			return b, nil
		},
	}
}
