// hltrackerd is the Hotline tracker daemon.
// It accepts server registrations over UDP, serves listings over TCP and
// manages the banlist and registration passwords stored in SQLite.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/hltracker/internal/config"
	"github.com/woozymasta/hltracker/internal/fake"
	"github.com/woozymasta/hltracker/internal/geoip"
	"github.com/woozymasta/hltracker/internal/logger"
	"github.com/woozymasta/hltracker/internal/maintenance"
	"github.com/woozymasta/hltracker/internal/server"
	"github.com/woozymasta/hltracker/internal/storage"
	"github.com/woozymasta/hltracker/internal/vars"
)

func main() {
	cfg := config.Parse()

	logger.Setup(cfg.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.LoadedFrom != "" {
		log.Debug().Str("path", cfg.LoadedFrom).Msg("Loaded configuration file")
	}

	store, err := storage.New(ctx, cfg.Tracker.Database)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Tracker.Database).Msg("Failed to initialize database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	if cfg.Command != "start" {
		if err := maintenance.Run(ctx, cfg, store, os.Stdout); err != nil {
			log.Error().Err(err).Str("command", cfg.Command).Msg("Command failed")
			_ = store.Close()
			os.Exit(1)
		}
		return
	}

	log.Info().Msgf("Starting %s", vars.Banner())

	geo := openGeoIP(ctx, cfg.GeoIP)
	defer func() {
		if err := geo.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing GeoIP provider")
		}
	}()

	srv := server.New(store, geo, cfg)
	if err := srv.CheckPasswordConfig(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to check password configuration")
	}

	if cfg.Tracker.FakeServers > 0 {
		fake.New(uint64(time.Now().UnixNano())).Populate(srv.Registry(), cfg.Tracker.FakeServers)
	}

	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Tracker failed")
		_ = store.Close()
		os.Exit(1)
	}

	log.Info().Msg("Tracker stopped")
}

// openGeoIP refreshes and opens the country database; a nil provider disables lookups.
func openGeoIP(ctx context.Context, cfg config.GeoIP) *geoip.Provider {
	if cfg.Path == "" {
		return nil
	}

	if err := geoip.EnsureDB(ctx, cfg.Path, cfg.URL, cfg.Interval); err != nil {
		log.Error().Err(err).Msg("Failed to download GeoIP database")
	}

	provider, err := geoip.Open(cfg.Path)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
		return nil
	}

	return provider
}
