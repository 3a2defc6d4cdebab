package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user account persistence.
//
// AddDevice is idempotent: adding an ID the user already holds leaves the
// list unchanged. RemoveDevice of an absent ID is not an error. Both
// return ErrUserNotFound when the user does not exist.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	AddDevice(ctx context.Context, userID, deviceID string) error
	RemoveDevice(ctx context.Context, userID, deviceID string) error
}

// SQLiteUserRepository implements UserRepository using SQLite.
// The device list lives in the user_devices table.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new SQLite-backed user repository.
func NewUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

// Create inserts a new user account with an empty device list.
// The ID is generated if empty.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Devices = []string{}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Username, user.PasswordHash, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameExists
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by their unique ID.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getUser(ctx, "SELECT id, username, password_hash FROM users WHERE id = ?", id)
}

// GetByUsername retrieves a user by their username.
func (r *SQLiteUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getUser(ctx, "SELECT id, username, password_hash FROM users WHERE username = ?", username)
}

// AddDevice appends deviceID to the user's list if not already present.
func (r *SQLiteUserRepository) AddDevice(ctx context.Context, userID, deviceID string) error {
	return r.withUser(ctx, userID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO user_devices (user_id, device_id, position)
			 VALUES (?, ?, COALESCE((SELECT MAX(position) FROM user_devices WHERE user_id = ?), 0) + 1)`,
			userID, deviceID, userID,
		)
		if err != nil {
			return fmt.Errorf("adding device to user: %w", err)
		}
		return nil
	})
}

// RemoveDevice removes deviceID from the user's list.
func (r *SQLiteUserRepository) RemoveDevice(ctx context.Context, userID, deviceID string) error {
	return r.withUser(ctx, userID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"DELETE FROM user_devices WHERE user_id = ? AND device_id = ?", userID, deviceID)
		if err != nil {
			return fmt.Errorf("removing device from user: %w", err)
		}
		return nil
	})
}

// withUser runs fn in a transaction after confirming the user exists.
func (r *SQLiteUserRepository) withUser(ctx context.Context, userID string, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ?", userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("checking user: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLiteUserRepository) getUser(ctx context.Context, query string, args ...any) (*User, error) {
	var u User
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	devices, err := r.listDevices(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Devices = devices
	return &u, nil
}

func (r *SQLiteUserRepository) listDevices(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT device_id FROM user_devices WHERE user_id = ? ORDER BY position ASC", userID)
	if err != nil {
		return nil, fmt.Errorf("querying user devices: %w", err)
	}
	defer rows.Close()

	devices := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning user device: %w", err)
		}
		devices = append(devices, id)
	}
	return devices, rows.Err()
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
