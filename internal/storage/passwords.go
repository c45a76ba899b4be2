package storage

import (
	"context"
	"fmt"

	"github.com/woozymasta/hltracker/internal/macroman"
	"github.com/woozymasta/hltracker/internal/models"
)

// IsAuthorized reports whether the decoded password matches a stored one.
func (r *Repository) IsAuthorized(ctx context.Context, password macroman.String) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM passwords WHERE password = ? LIMIT 1`, password.String())
}

// AddPassword stores a registration password. The value must be MacRoman compatible
// and fit the 255-byte wire field.
func (r *Repository) AddPassword(ctx context.Context, password, notes string) error {
	enc, err := macroman.NewString(macroman.Encode(password))
	if err != nil {
		return err
	}

	// stored in its MacRoman round-tripped form
	ok, err := r.IsAuthorized(ctx, enc)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: password", ErrExists)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO passwords (password, notes, created_at) VALUES (?, ?, ?)`,
		enc.String(), notes, now(),
	)
	return err
}

// RemovePassword deletes a stored password.
func (r *Repository) RemovePassword(ctx context.Context, password string) error {
	if err := r.deleteRows(ctx, `DELETE FROM passwords WHERE password = ?`, password); err != nil {
		return fmt.Errorf("remove password: %w", err)
	}
	return nil
}

// ListPasswords returns every stored password in insertion order.
func (r *Repository) ListPasswords(ctx context.Context) ([]models.PasswordEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, password, notes, created_at FROM passwords ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []models.PasswordEntry
	for rows.Next() {
		var (
			e         models.PasswordEntry
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Password, &e.Notes, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// CountPasswords returns the number of stored passwords.
func (r *Repository) CountPasswords(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM passwords`)
}
