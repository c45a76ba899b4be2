// Package maintenance implements the banlist and password subcommands of hltrackerd.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"

	"github.com/woozymasta/hltracker/internal/config"
	"github.com/woozymasta/hltracker/internal/models"
	"github.com/woozymasta/hltracker/internal/storage"
)

// ErrUnknownCommand is returned for a command path that is not a maintenance task.
var ErrUnknownCommand = errors.New("maintenance: unknown command")

// Store is the part of the repository the maintenance commands use.
type Store interface {
	AddBan(ctx context.Context, address, notes string) error
	RemoveBan(ctx context.Context, address string) error
	ListBans(ctx context.Context) ([]models.BanlistEntry, error)
	AddPassword(ctx context.Context, password, notes string) error
	RemovePassword(ctx context.Context, password string) error
	ListPasswords(ctx context.Context) ([]models.PasswordEntry, error)
}

var _ Store = (*storage.Repository)(nil)

// Run executes the maintenance command named by cfg.Command, writing listings to w.
func Run(ctx context.Context, cfg *config.Config, store Store, w io.Writer) error {
	switch cfg.Command {
	case "banlist add":
		addr := cfg.Banlist.Add.Args.Address
		if err := store.AddBan(ctx, addr, cfg.Banlist.Add.Notes); err != nil {
			return err
		}
		log.Info().Str("address", addr).Msg("Address banned")

	case "banlist remove":
		addr := cfg.Banlist.Remove.Args.Address
		if err := store.RemoveBan(ctx, addr); err != nil {
			return err
		}
		log.Info().Str("address", addr).Msg("Ban lifted")

	case "banlist list":
		entries, err := store.ListBans(ctx)
		if err != nil {
			return err
		}
		if cfg.Banlist.List.JSON {
			if entries == nil {
				entries = []models.BanlistEntry{}
			}
			return writeJSON(w, entries)
		}
		writeBans(w, entries)

	case "password add":
		if err := store.AddPassword(ctx, cfg.Password.Add.Args.Password, cfg.Password.Add.Notes); err != nil {
			return err
		}
		log.Info().Msg("Password added")

	case "password remove":
		if err := store.RemovePassword(ctx, cfg.Password.Remove.Args.Password); err != nil {
			return err
		}
		log.Info().Msg("Password removed")

	case "password list":
		entries, err := store.ListPasswords(ctx)
		if err != nil {
			return err
		}
		if cfg.Password.List.JSON {
			if entries == nil {
				entries = []models.PasswordEntry{}
			}
			return writeJSON(w, entries)
		}
		writePasswords(w, entries)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cfg.Command)
	}

	return nil
}

func writeBans(w io.Writer, entries []models.BanlistEntry) {
	table := newTable(w, "ID", "Address", "Created", "Notes")
	for _, e := range entries {
		table.Append([]string{strconv.FormatInt(e.ID, 10), e.Address, formatTime(e.CreatedAt), e.Notes})
	}
	table.Render()
}

func writePasswords(w io.Writer, entries []models.PasswordEntry) {
	table := newTable(w, "ID", "Password", "Created", "Notes")
	for _, e := range entries {
		table.Append([]string{strconv.FormatInt(e.ID, 10), e.Password, formatTime(e.CreatedAt), e.Notes})
	}
	table.Render()
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	return table
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
