package device

import (
	"context"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/devicehub/devicehub-core/internal/infrastructure/config"
	"github.com/devicehub/devicehub-core/internal/infrastructure/mongodb"
)

// setupMongo returns a fresh database on the server named by
// DEVICEHUB_TEST_MONGODB_URI, dropped when the test ends.
func setupMongo(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("DEVICEHUB_TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("DEVICEHUB_TEST_MONGODB_URI not set, skipping MongoDB integration test")
	}

	ctx := context.Background()
	client, err := mongodb.Connect(ctx, config.MongoDBConfig{
		URI:            uri,
		Database:       "devicehub_device_test_" + time.Now().Format("150405.000000"),
		ConnectTimeout: 5,
	})
	if err != nil {
		t.Fatalf("mongodb.Connect() error = %v", err)
	}
	if err := client.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes() error = %v", err)
	}
	t.Cleanup(func() {
		_ = client.Database().Drop(context.Background()) //nolint:errcheck // Test cleanup
		_ = client.Close()                               //nolint:errcheck // Test cleanup
	})
	return client.Database()
}

func TestMongoRepository_Contract(t *testing.T) {
	runRepositoryContract(t, func(t *testing.T) Repository {
		return NewMongoRepository(setupMongo(t).Collection(mongodb.CollectionDevices))
	})
}

func TestMongoImageRepository_Contract(t *testing.T) {
	runImageRepositoryContract(t, func(t *testing.T) ImageRepository {
		return NewMongoImageRepository(setupMongo(t).Collection(mongodb.CollectionImages))
	})
}
