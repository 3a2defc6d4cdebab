package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no live session matches the token.
var ErrNotFound = errors.New("session: not found")

// timeFormat is fixed-width so that stored timestamps compare correctly as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Record is a stored session.
type Record struct {
	// ID is the hex SHA-256 digest of the cookie token.
	ID     string `bson:"_id"`
	UserID string `bson:"userId"`
	// ExpiresAt is nil for sessions without a lifetime limit.
	ExpiresAt *time.Time `bson:"expiresAt,omitempty"`
	CreatedAt time.Time  `bson:"createdAt"`
}

// Expired reports whether the record has passed its expiry at now.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

// Repository persists session records.
type Repository interface {
	Get(ctx context.Context, id string) (*Record, error)
	// Save inserts or replaces the record with the same ID.
	Save(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id string) error
	// DeleteExpired removes records that expired at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SQLiteRepository implements Repository using the sessions table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a SQLite-backed session repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get returns the record with the given ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Record, error) {
	var (
		rec       Record
		expiresAt sql.NullString
		createdAt string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, user_id, expires_at, created_at FROM sessions WHERE id = ?", id,
	).Scan(&rec.ID, &rec.UserID, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	if rec.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("parsing session created_at: %w", err)
	}
	if expiresAt.Valid {
		t, err := time.Parse(timeFormat, expiresAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing session expires_at: %w", err)
		}
		rec.ExpiresAt = &t
	}
	return &rec, nil
}

// Save inserts or replaces the record.
func (r *SQLiteRepository) Save(ctx context.Context, rec *Record) error {
	var expiresAt sql.NullString
	if rec.ExpiresAt != nil {
		expiresAt = sql.NullString{String: rec.ExpiresAt.UTC().Format(timeFormat), Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id, expires_at = excluded.expires_at`,
		rec.ID, rec.UserID, expiresAt, rec.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Delete removes the record. Deleting a missing record is not an error.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpired removes expired records.
func (r *SQLiteRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at <= ?",
		now.UTC().Format(timeFormat))
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting expired sessions: %w", err)
	}
	return n, nil
}
