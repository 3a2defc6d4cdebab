package auth

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/devicehub/devicehub-core/internal/infrastructure/config"
	"github.com/devicehub/devicehub-core/internal/infrastructure/mongodb"
)

func TestMongoUserRepository_Contract(t *testing.T) {
	uri := os.Getenv("DEVICEHUB_TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("DEVICEHUB_TEST_MONGODB_URI not set, skipping MongoDB integration test")
	}

	runUserRepositoryContract(t, func(t *testing.T) UserRepository {
		ctx := context.Background()
		client, err := mongodb.Connect(ctx, config.MongoDBConfig{
			URI:            uri,
			Database:       "devicehub_auth_test_" + time.Now().Format("150405.000000"),
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
		return NewMongoUserRepository(client.Collection(mongodb.CollectionUsers))
	})
}
