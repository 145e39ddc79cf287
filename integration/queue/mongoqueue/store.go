package mongoqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/eventbridge/core/queue"
	"github.com/dmitrymomot/eventbridge/integration/queue/polling"
)

var (
	ErrInsert    = errors.New("mongoqueue: failed to insert message")
	ErrClaim     = errors.New("mongoqueue: failed to claim message")
	ErrUpdate    = errors.New("mongoqueue: failed to update message")
	ErrInvalidID = errors.New("mongoqueue: invalid message id")
)

// Collection is the subset of *mongo.Collection used by Store.
type Collection interface {
	InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error)
	FindOneAndUpdate(ctx context.Context, filter, update any, opts ...options.Lister[options.FindOneAndUpdateOptions]) *mongo.SingleResult
	DeleteOne(ctx context.Context, filter any, opts ...options.Lister[options.DeleteOneOptions]) (*mongo.DeleteResult, error)
	UpdateOne(ctx context.Context, filter, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongo.UpdateResult, error)
}

type document struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	Topic       string        `bson:"topic"`
	Key         string        `bson:"key"`
	Message     string        `bson:"message"`
	Attempts    int           `bson:"attempts"`
	LockedUntil *time.Time    `bson:"locked_until"`
	CreatedAt   time.Time     `bson:"created_at"`
}

// Store keeps one document per message. Each claim is a single
// FindOneAndUpdate, so two consumers never lease the same document.
type Store struct {
	coll Collection
	ping func(ctx context.Context) error
	now  func() time.Time
}

// NewStore creates a Store on coll. ping backs Store.Ping and may be nil.
func NewStore(coll Collection, ping func(ctx context.Context) error) *Store {
	return &Store{coll: coll, ping: ping, now: time.Now}
}

// Insert stores msg.
func (s *Store) Insert(ctx context.Context, topic string, msg queue.Message) error {
	data, err := queue.Encode(msg)
	if err != nil {
		return err
	}

	_, err = s.coll.InsertOne(ctx, document{
		Topic:     topic,
		Key:       msg.Key,
		Message:   string(data),
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInsert, err)
	}
	return nil
}

// Claim leases up to limit documents, oldest first.
func (s *Store) Claim(ctx context.Context, topic string, limit int, lease time.Duration) ([]polling.Leased, error) {
	now := s.now().UTC()
	filter := bson.M{
		"topic": topic,
		"$or": bson.A{
			bson.M{"locked_until": nil},
			bson.M{"locked_until": bson.M{"$lt": now}},
		},
	}
	update := bson.M{
		"$set": bson.M{"locked_until": now.Add(lease)},
		"$inc": bson.M{"attempts": 1},
	}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetReturnDocument(options.After)

	var out []polling.Leased
	for len(out) < limit {
		var doc document
		err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("%w: %w", ErrClaim, err)
		}

		msg, err := queue.Decode([]byte(doc.Message))
		if err != nil {
			return out, err
		}
		out = append(out, polling.Leased{ID: doc.ID.Hex(), Message: msg, Attempts: doc.Attempts})
	}
	return out, nil
}

// Delete removes an acknowledged message.
func (s *Store) Delete(ctx context.Context, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid}); err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}
	return nil
}

// Release clears the lease of a message.
func (s *Store) Release(ctx context.Context, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if _, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"locked_until": nil}}); err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}
