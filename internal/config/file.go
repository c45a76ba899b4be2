package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// DefaultFilename is the name searched for in the standard locations.
const DefaultFilename = "tracker.toml"

// File is the tracker.toml structure.
type File struct {
	Server FileServer `toml:"server"`
}

// FileServer is the [server] table of tracker.toml.
type FileServer struct {
	BindAddress     string   `toml:"bind-address"`
	Database        string   `toml:"database"`
	Expiry          string   `toml:"expiry"`
	Passwords       []string `toml:"passwords"`
	RequirePassword bool     `toml:"require-password"`
}

// ParseExpiry parses the expiry string; empty means unset.
func (s *FileServer) ParseExpiry() (time.Duration, error) {
	if s.Expiry == "" {
		return 0, nil
	}
	return time.ParseDuration(s.Expiry)
}

// Load reads and parses a tracker.toml file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	f := &File{}
	if err := toml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return f, nil
}

// SearchPaths returns the standard tracker.toml locations in lookup order.
func SearchPaths() []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".hotline", DefaultFilename),
			filepath.Join(home, ".config", "hotline", DefaultFilename),
		)
	}

	return append(paths, filepath.Join("/etc/hotline", DefaultFilename))
}

// Find returns explicit when set (even if the file does not exist), else the
// first existing file from SearchPaths, else "".
func Find(explicit string) string {
	if explicit != "" {
		return ExpandPath(explicit)
	}

	for _, p := range SearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// Resolve locates tracker.toml and fills every setting left unset by flags
// and environment from it, then applies defaults. A relative database path
// in the file is taken relative to the file's directory.
func (c *Config) Resolve() error {
	var (
		file File
		base string
	)

	if path := Find(c.ConfigFile); path != "" {
		base = filepath.Dir(path)

		f, err := Load(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// missing file: defaults, still relative to its directory
		case err != nil:
			return err
		default:
			file = *f
			c.LoadedFrom = path
		}
	}

	return c.apply(file.Server, base)
}

func (c *Config) apply(s FileServer, base string) error {
	t := &c.Tracker

	if t.BindAddress == "" {
		t.BindAddress = s.BindAddress
	}
	if t.BindAddress == "" {
		t.BindAddress = DefaultBindAddress
	}

	if s.RequirePassword {
		t.RequirePassword = true
	}
	t.Passwords = append(t.Passwords, s.Passwords...)

	if t.Expiry == 0 {
		d, err := s.ParseExpiry()
		if err != nil {
			return fmt.Errorf("parsing expiry %q: %w", s.Expiry, err)
		}
		t.Expiry = d
	}
	if t.Expiry <= 0 {
		t.Expiry = DefaultExpiry
	}

	switch {
	case t.Database != "":
		t.Database = ExpandPath(t.Database)
	case s.Database != "":
		db := ExpandPath(s.Database)
		if !filepath.IsAbs(db) && base != "" {
			db = filepath.Join(base, db)
		}
		t.Database = db
	case base != "":
		t.Database = filepath.Join(base, filepath.Base(DefaultDatabase))
	default:
		t.Database = DefaultDatabase
	}

	return nil
}

// ExpandPath expands tilde (~) to the user's home directory.
func ExpandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	usr, err := user.Current()
	if err != nil {
		return path
	}
	if path == "~" {
		return usr.HomeDir
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(usr.HomeDir, path[2:])
	}
	return path
}
