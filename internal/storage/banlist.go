package storage

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/woozymasta/hltracker/internal/models"
)

// IsBanned reports whether addr is on the banlist (exact dotted-decimal match).
func (r *Repository) IsBanned(ctx context.Context, addr netip.Addr) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM banlist WHERE address = ? LIMIT 1`, addr.Unmap().String())
}

// parseBanAddress parses an IPv4 address, accepting its IPv4-mapped IPv6 form.
func parseBanAddress(address string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(address)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return addr, nil
}

// AddBan inserts an IPv4 address into the banlist.
func (r *Repository) AddBan(ctx context.Context, address, notes string) error {
	addr, err := parseBanAddress(address)
	if err != nil {
		return err
	}

	banned, err := r.IsBanned(ctx, addr)
	if err != nil {
		return err
	}
	if banned {
		return fmt.Errorf("%w: %s", ErrExists, addr)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO banlist (address, notes, created_at) VALUES (?, ?, ?)`,
		addr.String(), notes, now(),
	)
	return err
}

// RemoveBan deletes address from the banlist.
func (r *Repository) RemoveBan(ctx context.Context, address string) error {
	addr, err := parseBanAddress(address)
	if err != nil {
		return err
	}

	if err := r.deleteRows(ctx, `DELETE FROM banlist WHERE address = ?`, addr.String()); err != nil {
		return fmt.Errorf("remove ban %s: %w", addr, err)
	}
	return nil
}

// ListBans returns every banlist entry in insertion order.
func (r *Repository) ListBans(ctx context.Context) ([]models.BanlistEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, address, notes, created_at FROM banlist ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []models.BanlistEntry
	for rows.Next() {
		var (
			e         models.BanlistEntry
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Address, &e.Notes, &createdAt); err != nil {
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

// CountBans returns the number of banlist entries.
func (r *Repository) CountBans(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM banlist`)
}
