package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines device persistence.
// Implementations exist for SQLite and MongoDB.
type Repository interface {
	// List returns every device in insertion order.
	List(ctx context.Context) ([]Device, error)

	// GetBySerial returns the first device with the serial number.
	// Returns ErrDeviceNotFound if none matches.
	GetBySerial(ctx context.Context, serial string) (*Device, error)

	// GetByID returns the device with the given ID.
	// Returns ErrDeviceNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// Create stores a new device. A missing ID is generated; the ID is
	// written back into d.
	Create(ctx context.Context, d *Device) error

	// ReplaceBySerial overwrites the descriptive fields of the first device
	// with the serial number and returns the updated device. The ID and the
	// holder are left untouched. Returns ErrDeviceNotFound if none matches.
	ReplaceBySerial(ctx context.Context, serial string, fields Device) (*Device, error)

	// DeleteBySerial removes the first device with the serial number and
	// returns it. Returns ErrDeviceNotFound if none matches.
	DeleteBySerial(ctx context.Context, serial string) (*Device, error)

	// CompareAndSetHolder sets the holder of device id to next only if the
	// stored holder equals expected ("" meaning no holder).
	// Returns ErrHolderChanged if the stored holder differs, or
	// ErrDeviceNotFound if the device is gone.
	CompareAndSetHolder(ctx context.Context, id, expected, next string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open, migrated SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `id, device_name, description, serial_number, manufacturer, qr_code, user_id`

// List returns every device in insertion order.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	devices := make([]Device, 0)
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// GetBySerial returns the first device with the serial number.
func (r *SQLiteRepository) GetBySerial(ctx context.Context, serial string) (*Device, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE serial_number = ? ORDER BY rowid LIMIT 1`,
		serial,
	)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by serial: %w", err)
	}
	return d, nil
}

// GetByID returns the device with the given ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// Create stores a new device.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	if d.ID == "" {
		d.ID = GenerateID()
	}
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (
			id, device_name, description, serial_number, manufacturer, qr_code,
			user_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.DeviceName, d.Description, d.SerialNumber, d.Manufacturer, d.QRCode,
		nullableString(d.User), now, now,
	)
	if err != nil {
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// ReplaceBySerial overwrites the descriptive fields of the first matching device.
func (r *SQLiteRepository) ReplaceBySerial(ctx context.Context, serial string, fields Device) (*Device, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	var id string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM devices WHERE serial_number = ? ORDER BY rowid LIMIT 1`, serial,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("finding device by serial: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE devices SET
			device_name = ?, description = ?, serial_number = ?, manufacturer = ?,
			qr_code = ?, updated_at = ?
		WHERE id = ?`,
		fields.DeviceName, fields.Description, fields.SerialNumber, fields.Manufacturer,
		fields.QRCode, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating device: %w", err)
	}

	d, err := scanDevice(tx.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("reloading device: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing update: %w", err)
	}
	return d, nil
}

// DeleteBySerial removes the first matching device and returns it.
func (r *SQLiteRepository) DeleteBySerial(ctx context.Context, serial string) (*Device, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	d, err := scanDevice(tx.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE serial_number = ? ORDER BY rowid LIMIT 1`, serial,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("finding device by serial: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, d.ID); err != nil {
		return nil, fmt.Errorf("deleting device: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing delete: %w", err)
	}
	return d, nil
}

// CompareAndSetHolder conditionally changes the holder in a single statement.
func (r *SQLiteRepository) CompareAndSetHolder(ctx context.Context, id, expected, next string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE devices SET user_id = ?, updated_at = ?
		WHERE id = ? AND COALESCE(user_id, '') = ?`,
		nullableString(next), time.Now().UTC().Format(time.RFC3339), id, expected,
	)
	if err != nil {
		return fmt.Errorf("updating device holder: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	// Nothing matched: distinguish a missing device from a lost race.
	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking device exists: %w", err)
	}
	if exists == 0 {
		return ErrDeviceNotFound
	}
	return ErrHolderChanged
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var user sql.NullString
	if err := scanner.Scan(
		&d.ID, &d.DeviceName, &d.Description, &d.SerialNumber,
		&d.Manufacturer, &d.QRCode, &user,
	); err != nil {
		return nil, err
	}
	d.User = user.String
	return &d, nil
}

// nullableString maps the empty string to SQL NULL.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
