package device

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// naturalOrder sorts documents in insertion order, the order used for
// "first device with this serial number".
var naturalOrder = bson.D{{Key: "$natural", Value: 1}}

// MongoRepository implements Repository on a MongoDB collection.
type MongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository creates a repository over the given devices collection.
func NewMongoRepository(coll *mongo.Collection) *MongoRepository {
	return &MongoRepository{coll: coll}
}

// List returns every device in insertion order.
func (r *MongoRepository) List(ctx context.Context) ([]Device, error) {
	cur, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(naturalOrder))
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer cur.Close(ctx) //nolint:errcheck // Cursor close error is not actionable

	devices := make([]Device, 0)
	if err := cur.All(ctx, &devices); err != nil {
		return nil, fmt.Errorf("decoding devices: %w", err)
	}
	return devices, nil
}

// GetBySerial returns the first device with the serial number.
func (r *MongoRepository) GetBySerial(ctx context.Context, serial string) (*Device, error) {
	var d Device
	err := r.coll.FindOne(ctx,
		bson.D{{Key: "serialNumber", Value: serial}},
		options.FindOne().SetSort(naturalOrder),
	).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by serial: %w", err)
	}
	return &d, nil
}

// GetByID returns the device with the given ID.
func (r *MongoRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	var d Device
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return &d, nil
}

// Create stores a new device.
func (r *MongoRepository) Create(ctx context.Context, d *Device) error {
	if d.ID == "" {
		d.ID = GenerateID()
	}
	if _, err := r.coll.InsertOne(ctx, d); err != nil {
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// ReplaceBySerial overwrites the descriptive fields of the first matching device.
func (r *MongoRepository) ReplaceBySerial(ctx context.Context, serial string, fields Device) (*Device, error) {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "deviceName", Value: fields.DeviceName},
		{Key: "description", Value: fields.Description},
		{Key: "serialNumber", Value: fields.SerialNumber},
		{Key: "manufacturer", Value: fields.Manufacturer},
		{Key: "qrCode", Value: fields.QRCode},
	}}}
	opts := options.FindOneAndUpdate().
		SetSort(naturalOrder).
		SetReturnDocument(options.After)

	var d Device
	err := r.coll.FindOneAndUpdate(ctx, bson.D{{Key: "serialNumber", Value: serial}}, update, opts).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("updating device: %w", err)
	}
	return &d, nil
}

// DeleteBySerial removes the first matching device and returns it.
func (r *MongoRepository) DeleteBySerial(ctx context.Context, serial string) (*Device, error) {
	var d Device
	err := r.coll.FindOneAndDelete(ctx,
		bson.D{{Key: "serialNumber", Value: serial}},
		options.FindOneAndDelete().SetSort(naturalOrder),
	).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("deleting device: %w", err)
	}
	return &d, nil
}

// CompareAndSetHolder conditionally changes the holder with a single
// filtered update, which MongoDB applies atomically per document.
func (r *MongoRepository) CompareAndSetHolder(ctx context.Context, id, expected, next string) error {
	filter := bson.D{{Key: "_id", Value: id}, {Key: "user", Value: holderMatch(expected)}}

	var update bson.D
	if next == "" {
		update = bson.D{{Key: "$unset", Value: bson.D{{Key: "user", Value: ""}}}}
	} else {
		update = bson.D{{Key: "$set", Value: bson.D{{Key: "user", Value: next}}}}
	}

	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("updating device holder: %w", err)
	}
	if result.MatchedCount == 1 {
		return nil
	}

	n, err := r.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("checking device exists: %w", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return ErrHolderChanged
}

// holderMatch builds the filter value for the user field. An empty
// expectation matches a missing, null, or empty holder.
func holderMatch(expected string) any {
	if expected == "" {
		return bson.D{{Key: "$in", Value: bson.A{nil, ""}}}
	}
	return expected
}

// MongoImageRepository implements ImageRepository on a MongoDB collection.
// The collection must carry a unique index on serialNumber.
type MongoImageRepository struct {
	coll *mongo.Collection
}

// NewMongoImageRepository creates an image repository over the given collection.
func NewMongoImageRepository(coll *mongo.Collection) *MongoImageRepository {
	return &MongoImageRepository{coll: coll}
}

// GetBySerial returns the image for the serial number.
func (r *MongoImageRepository) GetBySerial(ctx context.Context, serial string) (*Image, error) {
	var img Image
	err := r.coll.FindOne(ctx, bson.D{{Key: "serialNumber", Value: serial}}).Decode(&img)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("querying image: %w", err)
	}
	return &img, nil
}

// Upsert stores data as the image for the serial number.
func (r *MongoImageRepository) Upsert(ctx context.Context, serial, data string) (*Image, error) {
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: "data", Value: data}}},
		{Key: "$setOnInsert", Value: bson.D{{Key: "_id", Value: GenerateID()}}},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var img Image
	err := r.coll.FindOneAndUpdate(ctx, bson.D{{Key: "serialNumber", Value: serial}}, update, opts).Decode(&img)
	if err != nil {
		return nil, fmt.Errorf("upserting image: %w", err)
	}
	return &img, nil
}

// DeleteBySerial removes the image for the serial number.
func (r *MongoImageRepository) DeleteBySerial(ctx context.Context, serial string) error {
	result, err := r.coll.DeleteOne(ctx, bson.D{{Key: "serialNumber", Value: serial}})
	if err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrImageNotFound
	}
	return nil
}
