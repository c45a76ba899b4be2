package server

import (
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/woozymasta/hltracker/internal/geoip"
	"github.com/woozymasta/hltracker/internal/listener"
	"github.com/woozymasta/hltracker/internal/ratelimit"
	"github.com/woozymasta/hltracker/internal/registry"
	"github.com/woozymasta/hltracker/internal/storage"
)

// Server wires the registration listener, the registry, the tracker listener
// and the optional HTTP status API together.
type Server struct {
	// storage holds the banlist and the stored registration passwords.
	storage *storage.Repository

	// registry is shared with the tracker listener and the HTTP API.
	registry *registry.Registry

	// geoip resolves registrant addresses to country codes. It can be nil.
	geoip *geoip.Provider

	// passwords is a set of xxhash sums of the MacRoman bytes of the
	// passwords given on the command line or in tracker.toml.
	passwords map[uint64]struct{}

	// queue carries decoded registrations from the UDP listener to the pipeline.
	queue chan listener.Registration

	// limiter throttles registrations per source address. It can be nil.
	limiter *ratelimit.Limiter

	// apiLimiter throttles public HTTP API requests per client address. It can be nil.
	apiLimiter *ratelimit.Limiter

	registration *listener.RegistrationListener
	tracker      *listener.TrackerListener

	// httpServer and httpListener are nil when the status API is disabled.
	httpServer   *http.Server
	httpListener net.Listener

	log zerolog.Logger

	// authToken is the bearer token required by the admin API endpoints.
	authToken string

	bindAddress      string
	httpAddress      string
	handshakeTimeout time.Duration

	registrationPort uint16
	trackerPort      uint16

	// requirePassword rejects registrations whose password is not accepted.
	requirePassword bool

	// trustProxy makes the HTTP API take client addresses from proxy headers.
	trustProxy bool
}
