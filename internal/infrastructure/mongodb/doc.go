// Package mongodb provides the MongoDB backend for DeviceHub Core.
//
// Selecting database.driver: mongodb in config.yaml stores devices, users,
// images, and sessions as documents in the configured database, mirroring
// the collection layout of the original Mongoose service. The repositories
// in the device, auth, and session packages take a *mongo.Database from
// Client.Database.
//
// Usage:
//
//	client, err := mongodb.Connect(ctx, cfg.Database.MongoDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	if err := client.EnsureIndexes(ctx); err != nil {
//	    return err
//	}
package mongodb
