package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository implements Repository on a MongoDB collection. The
// collection's TTL index on expiresAt purges records in the background;
// DeleteExpired covers the window before the TTL monitor runs.
type MongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository creates a repository over the given sessions collection.
func NewMongoRepository(coll *mongo.Collection) *MongoRepository {
	return &MongoRepository{coll: coll}
}

// Get returns the record with the given ID.
func (r *MongoRepository) Get(ctx context.Context, id string) (*Record, error) {
	var rec Record
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return &rec, nil
}

// Save inserts or replaces the record.
func (r *MongoRepository) Save(ctx context.Context, rec *Record) error {
	_, err := r.coll.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: rec.ID}}, rec,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Delete removes the record.
func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}}); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpired removes expired records.
func (r *MongoRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx,
		bson.D{{Key: "expiresAt", Value: bson.D{{Key: "$lte", Value: now}}}})
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return res.DeletedCount, nil
}
