// Package config handles the parsing and validation of tracker configuration
// from command-line arguments, environment variables and tracker.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/woozymasta/hltracker/internal/logger"
	"github.com/woozymasta/hltracker/internal/vars"
)

const (
	// DefaultBindAddress is used when neither flags nor tracker.toml set one.
	DefaultBindAddress = "0.0.0.0"

	// DefaultDatabase is the database path used without a config file.
	DefaultDatabase = "./tracker.sqlite3"

	// DefaultExpiry is how long a registration is listed without renewal.
	DefaultExpiry = 5 * time.Minute
)

// ErrNoCommand is returned when no subcommand was given.
var ErrNoCommand = errors.New("config: no command specified")

// Config represents the complete hltrackerd configuration.
type Config struct {
	// betteralign:ignore

	ConfigFile string `short:"c" long:"config" env:"TRACKER_CONFIG" description:"Path to tracker.toml"`

	Tracker   Tracker       `group:"Tracker Options" env-namespace:"HLTRACKER"`
	HTTP      HTTP          `group:"HTTP API Options" namespace:"http" env-namespace:"HLTRACKER_HTTP"`
	GeoIP     GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"HLTRACKER_GEOIP"`
	RateLimit RateLimit     `group:"Rate Limit Options" namespace:"rate-limit" env-namespace:"HLTRACKER_RATE_LIMIT"`
	Logger    logger.Config `group:"Logger Options" namespace:"log" env-namespace:"HLTRACKER_LOG"`

	Start    StartCommand    `command:"start" description:"Start the tracker server"`
	Banlist  BanlistCommand  `command:"banlist" description:"Manage banned server addresses"`
	Password PasswordCommand `command:"password" description:"Manage registration passwords"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`

	// Command is the active subcommand path, e.g. "banlist add".
	Command string `no-flag:"true"`

	// LoadedFrom is the tracker.toml that was applied, empty when none was.
	LoadedFrom string `no-flag:"true"`
}

// Tracker holds the listener and registration settings.
// Fields that tracker.toml can also set have no flag default; see Resolve.
type Tracker struct {
	// betteralign:ignore

	BindAddress      string        `short:"b" long:"bind-address" env:"BIND_ADDRESS" description:"Address both listeners bind to (default: 0.0.0.0)"`
	RegistrationPort uint16        `long:"registration-port" env:"REGISTRATION_PORT" description:"UDP port for server registrations" default:"5499"`
	TrackerPort      uint16        `long:"tracker-port" env:"TRACKER_PORT" description:"TCP port for listing requests" default:"5498"`
	Database         string        `short:"d" long:"database" env:"DATABASE" description:"Path to SQLite database (default: ./tracker.sqlite3)"`
	RequirePassword  bool          `long:"require-password" env:"REQUIRE_PASSWORD" description:"Reject registrations without an accepted password"`
	Passwords        []string      `short:"p" long:"password" env:"PASSWORDS" env-delim:"," description:"Accepted registration password, in addition to stored ones (MacRoman compatible)"`
	Expiry           time.Duration `long:"expiry" env:"EXPIRY" description:"Drop servers not re-registered within this duration (default: 5m)"`
	HandshakeTimeout time.Duration `long:"handshake-timeout" env:"HANDSHAKE_TIMEOUT" description:"Deadline for a listing connection, 0 disables" default:"10s"`
	FakeServers      int           `long:"gen-fake-servers" hidden:"true"`
}

// HTTP holds the optional status API configuration.
type HTTP struct {
	// betteralign:ignore

	Address    string `long:"address" env:"ADDRESS" description:"Status API listen address, empty disables the API"`
	AuthToken  string `long:"auth-token" env:"AUTH_TOKEN" description:"Admin authentication token"`
	TrustProxy bool   `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `long:"path" env:"PATH" description:"Path to MMDB file, empty disables country lookup"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB from when missing or outdated"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// RateLimit holds per-source rate limiting for the HTTP API and, optionally, registrations.
type RateLimit struct {
	// betteralign:ignore

	Count         int           `long:"count" env:"COUNT" description:"HTTP API requests allowed per client address and window, 0 disables" default:"10"`
	Registrations int           `long:"registrations" env:"REGISTRATIONS" description:"Registrations allowed per source address and window, 0 disables" default:"0"`
	Window        time.Duration `long:"window" env:"WINDOW" description:"Rate limit window duration" default:"1m"`
}

// StartCommand runs the tracker.
type StartCommand struct{}

// BanlistCommand groups banlist management.
type BanlistCommand struct {
	Add    BanAddCommand    `command:"add" description:"Ban an IPv4 address"`
	Remove BanRemoveCommand `command:"remove" alias:"rm" description:"Lift a ban"`
	List   ListCommand      `command:"list" alias:"ls" description:"List banned addresses"`
}

// BanAddCommand adds an address to the banlist.
type BanAddCommand struct {
	Notes string `short:"n" long:"notes" description:"Free-form notes stored with the entry"`
	Args  struct {
		Address string `positional-arg-name:"address" required:"true"`
	} `positional-args:"true" required:"true"`
}

// BanRemoveCommand removes an address from the banlist.
type BanRemoveCommand struct {
	Args struct {
		Address string `positional-arg-name:"address" required:"true"`
	} `positional-args:"true" required:"true"`
}

// PasswordCommand groups registration password management.
type PasswordCommand struct {
	Add    PasswordAddCommand    `command:"add" description:"Accept a registration password"`
	Remove PasswordRemoveCommand `command:"remove" alias:"rm" description:"Stop accepting a password"`
	List   ListCommand           `command:"list" alias:"ls" description:"List accepted passwords"`
}

// PasswordAddCommand stores a registration password.
type PasswordAddCommand struct {
	Notes string `short:"n" long:"notes" description:"Free-form notes stored with the entry"`
	Args  struct {
		Password string `positional-arg-name:"password" required:"true"`
	} `positional-args:"true" required:"true"`
}

// PasswordRemoveCommand deletes a registration password.
type PasswordRemoveCommand struct {
	Args struct {
		Password string `positional-arg-name:"password" required:"true"`
	} `positional-args:"true" required:"true"`
}

// ListCommand prints stored entries.
type ListCommand struct {
	JSON bool `long:"json" description:"Print entries as JSON"`
}

// ParseArgs parses args (without the program name) into a Config and records
// the active command path. It does not read tracker.toml; see Resolve.
func ParseArgs(args []string) (*Config, error) {
	var cfg Config
	parser := newParser(&cfg)

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	var path []string
	for cmd := parser.Active; cmd != nil; cmd = cmd.Active {
		path = append(path, cmd.Name)
	}
	cfg.Command = strings.Join(path, " ")

	if cfg.Command == "" && !cfg.Version {
		return nil, ErrNoCommand
	}

	return &cfg, nil
}

// Parse reads the configuration from os.Args, environment variables and tracker.toml.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	cfg, err := ParseArgs(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		if errors.Is(err, ErrNoCommand) {
			var help Config
			newParser(&help).WriteHelp(os.Stderr)
		}
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print()
		os.Exit(0)
	}

	if err := cfg.Resolve(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if cfg.Command == "start" && cfg.HTTP.Address != "" && cfg.HTTP.AuthToken == "" {
		fmt.Fprintln(os.Stderr,
			"Required flag `--http-auth-token' or environment variable `HLTRACKER_HTTP_AUTH_TOKEN` was not specified!")
		os.Exit(1)
	}

	return cfg
}

func newParser(cfg *Config) *flags.Parser {
	parser := flags.NewParser(cfg, flags.Default)
	parser.NamespaceDelimiter = "-"
	parser.SubcommandsOptional = true
	return parser
}
