// Package storage persists the tracker banlist and registration passwords in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // Driver sqlite
)

var (
	// ErrExists is returned when inserting a value that is already stored.
	ErrExists = errors.New("storage: entry already exists")

	// ErrNotFound is returned when removing a value that is not stored.
	ErrNotFound = errors.New("storage: entry not found")

	// ErrInvalidAddress is returned when a banlist address is not IPv4.
	ErrInvalidAddress = errors.New("storage: invalid IPv4 address")
)

// Repository manages the SQLite database connection.
// Access is synchronous; callers serialize their own work.
type Repository struct {
	db *sql.DB
}

// New opens (creating if needed) the SQLite database at dbPath and runs migrations.
func New(ctx context.Context, dbPath string) (*Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Debug().Str("path", dbPath).Msg("Database opened")

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// now returns the insertion timestamp in RFC 3339 UTC.
func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// parseTime reads a stored created_at value; malformed values yield the zero time.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// exists reports whether query (a SELECT 1 ... LIMIT 1) returns a row.
func (r *Repository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// count runs a SELECT COUNT(*) query.
func (r *Repository) count(ctx context.Context, query string) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// deleteRows runs a DELETE and maps zero affected rows to ErrNotFound.
func (r *Repository) deleteRows(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}
