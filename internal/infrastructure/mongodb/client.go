package mongodb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/devicehub/devicehub-core/internal/infrastructure/config"
)

// Collection names used by DeviceHub.
const (
	CollectionDevices  = "devices"
	CollectionUsers    = "users"
	CollectionImages   = "images"
	CollectionSessions = "sessions"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultDisconnectTimeout = 5 * time.Second
)

// Client wraps a mongo.Client bound to the configured DeviceHub database.
//
// Thread Safety:
//   - All methods are safe for concurrent use; the driver pools connections.
type Client struct {
	client *mongo.Client
	db     *mongo.Database

	closeOnce sync.Once
}

// Connect opens a connection pool to MongoDB and verifies it with a ping
// against the primary.
//
// Parameters:
//   - ctx: Parent context; the connect/ping is additionally bounded by
//     cfg.ConnectTimeout seconds (default 10s)
//   - cfg: MongoDB configuration from config.yaml
//
// Returns:
//   - *Client: Connected client
//   - error: If the URI is invalid or the server is unreachable
func Connect(ctx context.Context, cfg config.MongoDBConfig) (*Client, error) {
	timeout := time.Duration(cfg.ConnectTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background()) //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(cfg.Database),
	}, nil
}

// Database returns the DeviceHub database handle.
func (c *Client) Database() *mongo.Database {
	return c.db
}

// Collection returns a handle to the named collection.
func (c *Client) Collection(name string) *mongo.Collection {
	return c.db.Collection(name)
}

// EnsureIndexes creates the indexes DeviceHub relies on. It is idempotent.
//
//   - users.username unique: registration rejects duplicates
//   - images.serialNumber unique: one image per device serial
//   - devices.serialNumber: lookups by serial
//   - sessions.expiresAt TTL: the server purges expired sessions
func (c *Client) EnsureIndexes(ctx context.Context) error {
	specs := []struct {
		collection string
		model      mongo.IndexModel
	}{
		{CollectionUsers, mongo.IndexModel{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("username_unique"),
		}},
		{CollectionImages, mongo.IndexModel{
			Keys:    bson.D{{Key: "serialNumber", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("serial_number_unique"),
		}},
		{CollectionDevices, mongo.IndexModel{
			Keys:    bson.D{{Key: "serialNumber", Value: 1}},
			Options: options.Index().SetName("serial_number"),
		}},
		{CollectionSessions, mongo.IndexModel{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("expires_at_ttl"),
		}},
	}

	for _, s := range specs {
		if _, err := c.db.Collection(s.collection).Indexes().CreateOne(ctx, s.model); err != nil {
			return fmt.Errorf("creating index on %s: %w", s.collection, err)
		}
	}
	return nil
}

// HealthCheck pings the primary.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongodb health check failed: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultDisconnectTimeout)
		defer cancel()
		if dErr := c.client.Disconnect(ctx); dErr != nil {
			err = fmt.Errorf("closing mongodb: %w", dErr)
		}
	})
	return err
}

// IsDuplicateKey reports whether err is a unique index violation.
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
