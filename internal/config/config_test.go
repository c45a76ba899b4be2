package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, DefaultFilename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseArgs_Commands(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"start"}, "start"},
		{[]string{"banlist", "add", "10.0.0.1"}, "banlist add"},
		{[]string{"banlist", "rm", "10.0.0.1"}, "banlist remove"},
		{[]string{"password", "list", "--json"}, "password list"},
		{[]string{"--bind-address", "127.0.0.1", "start"}, "start"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			cfg, err := ParseArgs(tt.args)
			if err != nil {
				t.Fatalf("ParseArgs(%v): %v", tt.args, err)
			}
			if cfg.Command != tt.want {
				t.Errorf("Command: got %q, want %q", cfg.Command, tt.want)
			}
		})
	}
}

func TestParseArgs_NoCommand(t *testing.T) {
	if _, err := ParseArgs(nil); !errors.Is(err, ErrNoCommand) {
		t.Errorf("got %v, want ErrNoCommand", err)
	}

	cfg, err := ParseArgs([]string{"--version"})
	if err != nil || !cfg.Version {
		t.Errorf("--version: got %+v, %v", cfg, err)
	}
}

func TestParseArgs_Options(t *testing.T) {
	cfg, err := ParseArgs([]string{
		"-p", "one", "--password", "two",
		"--expiry", "90s",
		"--http-address", ":8080",
		"--rate-limit-count", "0",
		"banlist", "add", "--notes", "spam", "10.0.0.9",
	})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}

	if !slices.Equal(cfg.Tracker.Passwords, []string{"one", "two"}) {
		t.Errorf("Passwords: got %v", cfg.Tracker.Passwords)
	}
	if cfg.Tracker.Expiry != 90*time.Second {
		t.Errorf("Expiry: got %v", cfg.Tracker.Expiry)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Errorf("HTTP.Address: got %q", cfg.HTTP.Address)
	}
	if cfg.RateLimit.Count != 0 || cfg.RateLimit.Window != time.Minute {
		t.Errorf("RateLimit: got %+v", cfg.RateLimit)
	}
	if cfg.Tracker.RegistrationPort != 5499 || cfg.Tracker.TrackerPort != 5498 {
		t.Errorf("ports: got %d/%d", cfg.Tracker.RegistrationPort, cfg.Tracker.TrackerPort)
	}
	if cfg.Tracker.HandshakeTimeout != 10*time.Second {
		t.Errorf("HandshakeTimeout: got %v", cfg.Tracker.HandshakeTimeout)
	}
	if cfg.Banlist.Add.Args.Address != "10.0.0.9" || cfg.Banlist.Add.Notes != "spam" {
		t.Errorf("banlist add: got %+v", cfg.Banlist.Add)
	}
}

func TestParseArgs_Environment(t *testing.T) {
	t.Setenv("HLTRACKER_LOG_LEVEL", "debug")
	t.Setenv("HLTRACKER_BIND_ADDRESS", "127.0.0.2")

	cfg, err := ParseArgs([]string{"start"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level: got %q", cfg.Logger.Level)
	}
	if cfg.Tracker.BindAddress != "127.0.0.2" {
		t.Errorf("BindAddress: got %q", cfg.Tracker.BindAddress)
	}
}

func TestResolve_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := &Config{}
	if err := cfg.Resolve(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if cfg.Tracker.BindAddress != DefaultBindAddress {
		t.Errorf("BindAddress: got %q", cfg.Tracker.BindAddress)
	}
	if cfg.Tracker.Database != DefaultDatabase {
		t.Errorf("Database: got %q", cfg.Tracker.Database)
	}
	if cfg.Tracker.Expiry != DefaultExpiry {
		t.Errorf("Expiry: got %v", cfg.Tracker.Expiry)
	}
	if cfg.Tracker.RequirePassword {
		t.Error("RequirePassword: got true")
	}
	if cfg.LoadedFrom != "" {
		t.Errorf("LoadedFrom: got %q", cfg.LoadedFrom)
	}
}

func TestResolve_FileValues(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[server]
bind-address = "10.1.1.1"
require-password = true
database = "data/tracker.db"
expiry = "2m"
passwords = ["from-file"]
`)

	cfg := &Config{ConfigFile: path}
	cfg.Tracker.Passwords = []string{"from-flag"}
	if err := cfg.Resolve(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if cfg.LoadedFrom != path {
		t.Errorf("LoadedFrom: got %q", cfg.LoadedFrom)
	}
	if cfg.Tracker.BindAddress != "10.1.1.1" {
		t.Errorf("BindAddress: got %q", cfg.Tracker.BindAddress)
	}
	if !cfg.Tracker.RequirePassword {
		t.Error("RequirePassword: got false")
	}
	if want := filepath.Join(dir, "data", "tracker.db"); cfg.Tracker.Database != want {
		t.Errorf("Database: got %q, want %q", cfg.Tracker.Database, want)
	}
	if cfg.Tracker.Expiry != 2*time.Minute {
		t.Errorf("Expiry: got %v", cfg.Tracker.Expiry)
	}
	if !slices.Equal(cfg.Tracker.Passwords, []string{"from-flag", "from-file"}) {
		t.Errorf("Passwords: got %v", cfg.Tracker.Passwords)
	}
}

func TestResolve_DoesNotLog(t *testing.T) {
	defer func(l zerolog.Logger) { log.Logger = l }(log.Logger)
	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())

	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.TraceLevel)

	dir := t.TempDir()
	path := writeConfig(t, dir, "[server]\nbind-address = \"10.1.1.1\"\n")

	for _, file := range []string{path, filepath.Join(dir, "missing.toml")} {
		cfg := &Config{ConfigFile: file}
		if err := cfg.Resolve(); err != nil {
			t.Fatalf("Resolve(%s): %v", file, err)
		}
	}

	if buf.Len() != 0 {
		t.Errorf("Resolve logged before logger setup: %s", buf.String())
	}
}

func TestParseArgs_RegistrationLimitDefaultsOff(t *testing.T) {
	cfg, err := ParseArgs([]string{"start"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if cfg.RateLimit.Registrations != 0 || cfg.RateLimit.Count != 10 {
		t.Errorf("RateLimit: got %+v", cfg.RateLimit)
	}

	cfg, err = ParseArgs([]string{"--rate-limit-registrations", "30", "start"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if cfg.RateLimit.Registrations != 30 {
		t.Errorf("Registrations: got %d, want 30", cfg.RateLimit.Registrations)
	}
}

func TestResolve_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[server]
bind-address = "10.1.1.1"
database = "/var/lib/hotline/tracker.sqlite3"
expiry = "2m"
`)

	cfg := &Config{ConfigFile: path}
	cfg.Tracker.BindAddress = "127.0.0.1"
	cfg.Tracker.Database = "/tmp/override.sqlite3"
	cfg.Tracker.Expiry = time.Minute
	if err := cfg.Resolve(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if cfg.Tracker.BindAddress != "127.0.0.1" {
		t.Errorf("BindAddress: got %q", cfg.Tracker.BindAddress)
	}
	if cfg.Tracker.Database != "/tmp/override.sqlite3" {
		t.Errorf("Database: got %q", cfg.Tracker.Database)
	}
	if cfg.Tracker.Expiry != time.Minute {
		t.Errorf("Expiry: got %v", cfg.Tracker.Expiry)
	}
}

func TestResolve_AbsoluteDatabaseInFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[server]
database = "/var/lib/hotline/tracker.sqlite3"
`)

	cfg := &Config{ConfigFile: path}
	if err := cfg.Resolve(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Tracker.Database != "/var/lib/hotline/tracker.sqlite3" {
		t.Errorf("Database: got %q", cfg.Tracker.Database)
	}
}

func TestResolve_MissingExplicitFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{ConfigFile: filepath.Join(dir, "missing.toml")}
	if err := cfg.Resolve(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if cfg.LoadedFrom != "" {
		t.Errorf("LoadedFrom: got %q", cfg.LoadedFrom)
	}
	if want := filepath.Join(dir, "tracker.sqlite3"); cfg.Tracker.Database != want {
		t.Errorf("Database: got %q, want %q", cfg.Tracker.Database, want)
	}
}

func TestResolve_InvalidFile(t *testing.T) {
	dir := t.TempDir()

	bad := writeConfig(t, dir, "[server\n")
	if err := (&Config{ConfigFile: bad}).Resolve(); err == nil {
		t.Error("malformed TOML: got nil error")
	}

	badExpiry := writeConfig(t, dir, "[server]\nexpiry = \"soon\"\n")
	if err := (&Config{ConfigFile: badExpiry}).Resolve(); err == nil {
		t.Error("bad expiry: got nil error")
	}
}

func TestFind_SearchOrder(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if got := Find(""); got != "" && filepath.Dir(got) != "/etc/hotline" {
		t.Fatalf("Find with empty home: got %q", got)
	}

	second := filepath.Join(home, ".config", "hotline")
	if err := os.MkdirAll(second, 0o755); err != nil {
		t.Fatal(err)
	}
	writeConfig(t, second, "")
	if got := Find(""); got != filepath.Join(second, DefaultFilename) {
		t.Errorf("Find: got %q", got)
	}

	first := filepath.Join(home, ".hotline")
	if err := os.MkdirAll(first, 0o755); err != nil {
		t.Fatal(err)
	}
	writeConfig(t, first, "")
	if got := Find(""); got != filepath.Join(first, DefaultFilename) {
		t.Errorf("Find: got %q", got)
	}

	if got := Find("/explicit/tracker.toml"); got != "/explicit/tracker.toml" {
		t.Errorf("Find(explicit): got %q", got)
	}
}
