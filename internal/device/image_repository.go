package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ImageRepository defines image persistence. There is at most one image
// per serial number.
type ImageRepository interface {
	// GetBySerial returns the image for the serial number.
	// Returns ErrImageNotFound if there is none.
	GetBySerial(ctx context.Context, serial string) (*Image, error)

	// Upsert stores data as the image for the serial number, replacing any
	// previous image.
	Upsert(ctx context.Context, serial, data string) (*Image, error)

	// DeleteBySerial removes the image for the serial number.
	// Returns ErrImageNotFound if there is none.
	DeleteBySerial(ctx context.Context, serial string) error
}

// SQLiteImageRepository implements ImageRepository using SQLite.
type SQLiteImageRepository struct {
	db *sql.DB
}

// NewSQLiteImageRepository creates a new SQLite-backed image repository.
func NewSQLiteImageRepository(db *sql.DB) *SQLiteImageRepository {
	return &SQLiteImageRepository{db: db}
}

// GetBySerial returns the image for the serial number.
func (r *SQLiteImageRepository) GetBySerial(ctx context.Context, serial string) (*Image, error) {
	var img Image
	err := r.db.QueryRowContext(ctx,
		`SELECT id, serial_number, data FROM images WHERE serial_number = ?`, serial,
	).Scan(&img.ID, &img.SerialNumber, &img.Data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("querying image: %w", err)
	}
	return &img, nil
}

// Upsert stores data as the image for the serial number. The record ID is
// kept when an existing image is replaced.
func (r *SQLiteImageRepository) Upsert(ctx context.Context, serial, data string) (*Image, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO images (id, serial_number, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(serial_number) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at`,
		GenerateID(), serial, data, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting image: %w", err)
	}
	return r.GetBySerial(ctx, serial)
}

// DeleteBySerial removes the image for the serial number.
func (r *SQLiteImageRepository) DeleteBySerial(ctx context.Context, serial string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM images WHERE serial_number = ?`, serial)
	if err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrImageNotFound
	}
	return nil
}
