// Package server runs the tracker: it accepts registrations through the
// password and banlist gates into the registry, serves listings, and exposes
// an optional HTTP status API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/woozymasta/hltracker/internal/config"
	"github.com/woozymasta/hltracker/internal/geoip"
	"github.com/woozymasta/hltracker/internal/listener"
	"github.com/woozymasta/hltracker/internal/logger"
	"github.com/woozymasta/hltracker/internal/macroman"
	"github.com/woozymasta/hltracker/internal/ratelimit"
	"github.com/woozymasta/hltracker/internal/registry"
	"github.com/woozymasta/hltracker/internal/storage"
)

const (
	// queueSize is the capacity of the registration queue.
	queueSize = 32

	// registryGCInterval is how often stale registrations are swept.
	registryGCInterval = time.Minute

	// shutdownTimeout bounds the HTTP API graceful shutdown.
	shutdownTimeout = 5 * time.Second
)

// New creates a new Server instance with the provided storage, GeoIP provider, and configuration.
// Passwords from the configuration imply that passwords are required.
func New(store *storage.Repository, geo *geoip.Provider, cfg *config.Config) *Server {
	s := &Server{
		storage:          store,
		geoip:            geo,
		registry:         registry.New(cfg.Tracker.Expiry),
		passwords:        make(map[uint64]struct{}),
		queue:            make(chan listener.Registration, queueSize),
		limiter:          ratelimit.New(cfg.RateLimit.Registrations, cfg.RateLimit.Window),
		apiLimiter:       ratelimit.New(cfg.RateLimit.Count, cfg.RateLimit.Window),
		log:              logger.Component("server"),
		authToken:        cfg.HTTP.AuthToken,
		bindAddress:      cfg.Tracker.BindAddress,
		httpAddress:      cfg.HTTP.Address,
		handshakeTimeout: cfg.Tracker.HandshakeTimeout,
		registrationPort: cfg.Tracker.RegistrationPort,
		trackerPort:      cfg.Tracker.TrackerPort,
		requirePassword:  cfg.Tracker.RequirePassword,
		trustProxy:       cfg.HTTP.TrustProxy,
	}

	for _, pw := range cfg.Tracker.Passwords {
		enc := macroman.Encode(pw)
		if len(enc) > macroman.MaxLen {
			s.log.Warn().Int("length", len(enc)).Msg("Configured password is longer than 255 bytes and can never match")
			continue
		}
		s.passwords[xxhash.Sum64(enc)] = struct{}{}
	}
	if len(s.passwords) > 0 {
		s.requirePassword = true
	}

	return s
}

// Registry returns the registry shared by the pipeline and the listeners.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Listen binds the registration, tracker and (if enabled) HTTP sockets.
func (s *Server) Listen(ctx context.Context) error {
	var err error

	s.registration, err = listener.ListenRegistration(ctx, hostPort(s.bindAddress, s.registrationPort), s.limiter)
	if err != nil {
		return err
	}

	s.tracker, err = listener.ListenTracker(ctx, hostPort(s.bindAddress, s.trackerPort), s.registry, s.handshakeTimeout)
	if err != nil {
		_ = s.registration.Close()
		return err
	}

	if s.httpAddress == "" {
		return nil
	}

	var lc net.ListenConfig
	s.httpListener, err = lc.Listen(ctx, "tcp", s.httpAddress)
	if err != nil {
		_ = s.registration.Close()
		_ = s.tracker.Close()
		return fmt.Errorf("failed to start HTTP API on %s: %w", s.httpAddress, err)
	}

	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return nil
}

// Serve runs every tracker task until ctx is done or one of them fails.
// Listen must have succeeded first.
func (s *Server) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.tracker.Serve(ctx) })
	g.Go(func() error { return s.registration.Serve(ctx, s.queue) })
	g.Go(func() error {
		s.pipeline(ctx)
		return nil
	})
	g.Go(func() error {
		s.gcRegistry(ctx)
		return nil
	})
	g.Go(func() error {
		s.limiter.Run(ctx)
		return nil
	})

	if s.httpServer != nil {
		g.Go(func() error {
			s.log.Info().Str("address", s.httpListener.Addr().String()).Msg("HTTP API listening")
			if err := s.httpServer.Serve(s.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			s.apiLimiter.Run(ctx)
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return s.httpServer.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// Run binds every socket and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(ctx); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// RegistrationAddr returns the bound UDP address, nil before Listen.
func (s *Server) RegistrationAddr() net.Addr {
	if s.registration == nil {
		return nil
	}
	return s.registration.Addr()
}

// TrackerAddr returns the bound TCP listing address, nil before Listen.
func (s *Server) TrackerAddr() net.Addr {
	if s.tracker == nil {
		return nil
	}
	return s.tracker.Addr()
}

// HTTPAddr returns the bound HTTP API address, nil when the API is disabled.
func (s *Server) HTTPAddr() net.Addr {
	if s.httpListener == nil {
		return nil
	}
	return s.httpListener.Addr()
}

// CheckPasswordConfig warns about password settings that are probably mistakes.
func (s *Server) CheckPasswordConfig(ctx context.Context) error {
	stored, err := s.storage.CountPasswords(ctx)
	if err != nil {
		return err
	}

	switch {
	case s.requirePassword && stored == 0 && len(s.passwords) == 0:
		s.log.Warn().Msg("Passwords are required but none are configured: every registration will be rejected")
	case !s.requirePassword && stored > 0:
		s.log.Warn().Int64("passwords", stored).Msg("Passwords are stored but not required: registrations are accepted without them")
	}

	return nil
}

// gcRegistry periodically drops stale registrations so they are released even when nobody lists.
func (s *Server) gcRegistry(ctx context.Context) {
	ticker := time.NewTicker(registryGCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.registry.Expire(); n > 0 {
				s.log.Debug().Int("expired", n).Int("live", s.registry.Len()).Msg("Expired stale registrations")
			}
		}
	}
}

func hostPort(host string, port uint16) string {
	return net.JoinHostPort(host, strconv.Itoa(int(port)))
}
