package storage

import (
	"context"
	"errors"
	"net/netip"
	"path/filepath"
	"testing"
	"time"

	"github.com/woozymasta/hltracker/internal/macroman"
)

func testStore(t *testing.T) *Repository {
	t.Helper()
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "tracker.sqlite3"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBanlist_AddIsBannedRemove(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	if err := s.AddBan(ctx, "10.0.0.3", "spam"); err != nil {
		t.Fatalf("AddBan: %v", err)
	}

	banned, err := s.IsBanned(ctx, netip.MustParseAddr("10.0.0.3"))
	if err != nil || !banned {
		t.Fatalf("IsBanned(10.0.0.3): got %v, %v", banned, err)
	}

	mapped, err := s.IsBanned(ctx, netip.MustParseAddr("::ffff:10.0.0.3"))
	if err != nil || !mapped {
		t.Errorf("IsBanned(mapped): got %v, %v", mapped, err)
	}

	other, err := s.IsBanned(ctx, netip.MustParseAddr("10.0.0.4"))
	if err != nil || other {
		t.Errorf("IsBanned(10.0.0.4): got %v, %v", other, err)
	}

	entries, err := s.ListBans(ctx)
	if err != nil {
		t.Fatalf("ListBans: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ListBans: got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Address != "10.0.0.3" || e.Notes != "spam" {
		t.Errorf("entry: got %+v", e)
	}
	if e.CreatedAt.IsZero() || time.Since(e.CreatedAt) > time.Minute || e.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt: got %v", e.CreatedAt)
	}

	if n, _ := s.CountBans(ctx); n != 1 {
		t.Errorf("CountBans: got %d, want 1", n)
	}

	if err := s.RemoveBan(ctx, "10.0.0.3"); err != nil {
		t.Fatalf("RemoveBan: %v", err)
	}
	if n, _ := s.CountBans(ctx); n != 0 {
		t.Errorf("CountBans after remove: got %d, want 0", n)
	}
	if err := s.RemoveBan(ctx, "10.0.0.3"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second RemoveBan: got %v, want ErrNotFound", err)
	}
}

func TestBanlist_MappedAddress(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	if err := s.AddBan(ctx, "::ffff:10.0.0.1", ""); err != nil {
		t.Fatalf("AddBan(mapped): %v", err)
	}
	entries, err := s.ListBans(ctx)
	if err != nil || len(entries) != 1 || entries[0].Address != "10.0.0.1" {
		t.Fatalf("ListBans: got %+v, %v", entries, err)
	}

	if err := s.RemoveBan(ctx, "::ffff:10.0.0.1"); err != nil {
		t.Fatalf("RemoveBan(mapped): %v", err)
	}
	if n, _ := s.CountBans(ctx); n != 0 {
		t.Errorf("CountBans after remove: got %d, want 0", n)
	}

	if err := s.RemoveBan(ctx, "2001:db8::1"); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("RemoveBan(ipv6): got %v, want ErrInvalidAddress", err)
	}
}

func TestBanlist_Validation(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	for _, bad := range []string{"", "example.com", "10.0.0", "2001:db8::1", "10.0.0.256"} {
		if err := s.AddBan(ctx, bad, ""); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("AddBan(%q): got %v, want ErrInvalidAddress", bad, err)
		}
	}

	if err := s.AddBan(ctx, "1.2.3.4", ""); err != nil {
		t.Fatalf("AddBan: %v", err)
	}
	if err := s.AddBan(ctx, "1.2.3.4", "again"); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate AddBan: got %v, want ErrExists", err)
	}
}

func TestPasswords(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	if n, err := s.CountPasswords(ctx); err != nil || n != 0 {
		t.Fatalf("CountPasswords: got %d, %v", n, err)
	}

	if err := s.AddPassword(ctx, "s3cret", "main"); err != nil {
		t.Fatalf("AddPassword: %v", err)
	}
	if err := s.AddPassword(ctx, "Café", ""); err != nil {
		t.Fatalf("AddPassword: %v", err)
	}
	if err := s.AddPassword(ctx, "s3cret", ""); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate AddPassword: got %v, want ErrExists", err)
	}

	tests := []struct {
		password string
		want     bool
	}{
		{"s3cret", true},
		{"Café", true},
		{"S3CRET", false},
		{"", false},
	}
	for _, tc := range tests {
		got, err := s.IsAuthorized(ctx, macroman.FromString(tc.password))
		if err != nil {
			t.Fatalf("IsAuthorized(%q): %v", tc.password, err)
		}
		if got != tc.want {
			t.Errorf("IsAuthorized(%q): got %v, want %v", tc.password, got, tc.want)
		}
	}

	list, err := s.ListPasswords(ctx)
	if err != nil {
		t.Fatalf("ListPasswords: %v", err)
	}
	if len(list) != 2 || list[0].Password != "s3cret" || list[0].Notes != "main" {
		t.Errorf("ListPasswords: got %+v", list)
	}

	if err := s.RemovePassword(ctx, "s3cret"); err != nil {
		t.Fatalf("RemovePassword: %v", err)
	}
	if ok, _ := s.IsAuthorized(ctx, macroman.FromString("s3cret")); ok {
		t.Error("removed password must not authorize")
	}
	if err := s.RemovePassword(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RemovePassword(missing): got %v, want ErrNotFound", err)
	}
}

func TestMigrations_Idempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tracker.sqlite3")

	s, err := New(ctx, path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := s.AddBan(ctx, "5.6.7.8", ""); err != nil {
		t.Fatalf("AddBan: %v", err)
	}
	_ = s.Close()

	s, err = New(ctx, path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer func() { _ = s.Close() }()

	if n, _ := s.CountBans(ctx); n != 1 {
		t.Errorf("data must survive reopen: got %d bans", n)
	}
}
