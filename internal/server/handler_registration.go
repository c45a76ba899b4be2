package server

import (
	"context"
	"net/netip"

	"github.com/cespare/xxhash/v2"

	"github.com/woozymasta/hltracker/internal/listener"
	"github.com/woozymasta/hltracker/internal/macroman"
)

// pipeline applies queued registrations in arrival order until ctx is done.
func (s *Server) pipeline(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case reg := <-s.queue:
			s.process(ctx, reg)
		}
	}
}

// process gates one registration on its password, then on the banlist, and
// registers it when both pass. Storage errors skip the record.
// It reports whether the registration was accepted.
func (s *Server) process(ctx context.Context, reg listener.Registration) bool {
	rec := reg.Record
	logCtx := s.log.With().
		Str("name", rec.Name.String()).
		Str("addr", netip.AddrPortFrom(reg.Addr, rec.Port).String()).
		Uint32("id", rec.ID).
		Logger()

	if s.requirePassword {
		ok, err := s.isAuthorized(ctx, rec.Password)
		if err != nil {
			logCtx.Error().Err(err).Msg("Failed to check password, record skipped")
			return false
		}
		if !ok {
			logCtx.Warn().Msg("Rejected record [bad credentials]")
			return false
		}
	}

	banned, err := s.storage.IsBanned(ctx, reg.Addr)
	if err != nil {
		logCtx.Error().Err(err).Msg("Failed to check banlist, record skipped")
		return false
	}
	if banned {
		logCtx.Warn().Msg("Rejected record [banned]")
		return false
	}

	s.registry.Register(reg.Addr, rec)

	event := logCtx.Info().Uint16("users", rec.UsersOnline)
	if country := s.geoip.CountryCode(reg.Addr); country != "" {
		event = event.Str("country", country)
	}
	event.Msg("Accepted record")

	return true
}

// isAuthorized checks the configured passwords first, then the stored ones.
func (s *Server) isAuthorized(ctx context.Context, password macroman.String) (bool, error) {
	if _, ok := s.passwords[xxhash.Sum64(password.Bytes())]; ok {
		return true, nil
	}

	return s.storage.IsAuthorized(ctx, password)
}
