package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/devicehub/devicehub-core/internal/infrastructure/mongodb"
)

// MongoUserRepository implements UserRepository on a MongoDB collection.
// The device list is stored inline as the devices array.
type MongoUserRepository struct {
	coll *mongo.Collection
}

// NewMongoUserRepository creates a repository over the given users collection.
func NewMongoUserRepository(coll *mongo.Collection) *MongoUserRepository {
	return &MongoUserRepository{coll: coll}
}

// Create inserts a new user account with an empty device list.
func (r *MongoUserRepository) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Devices = []string{}

	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		if mongodb.IsDuplicateKey(err) {
			return ErrUsernameExists
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by their unique ID.
func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

// GetByUsername retrieves a user by their username.
func (r *MongoUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.findOne(ctx, bson.D{{Key: "username", Value: username}})
}

// AddDevice appends deviceID with $addToSet.
func (r *MongoUserRepository) AddDevice(ctx context.Context, userID, deviceID string) error {
	return r.update(ctx, userID, bson.D{{Key: "$addToSet", Value: bson.D{{Key: "devices", Value: deviceID}}}})
}

// RemoveDevice removes deviceID with $pull.
func (r *MongoUserRepository) RemoveDevice(ctx context.Context, userID, deviceID string) error {
	return r.update(ctx, userID, bson.D{{Key: "$pull", Value: bson.D{{Key: "devices", Value: deviceID}}}})
}

func (r *MongoUserRepository) update(ctx context.Context, userID string, update bson.D) error {
	res, err := r.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: userID}}, update)
	if err != nil {
		return fmt.Errorf("updating user devices: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.D) (*User, error) {
	var u User
	if err := r.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	if u.Devices == nil {
		u.Devices = []string{}
	}
	return &u, nil
}
