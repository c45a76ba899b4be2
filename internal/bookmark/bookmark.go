// Package bookmark reads and writes Hotline bookmark files: fixed 460-byte
// records holding one server address and the credentials used to log in.
package bookmark

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/woozymasta/hltracker/internal/macroman"
)

// Size is the exact length of a bookmark file.
const Size = 460

// Version is the bookmark format version.
const Version uint16 = 1

// Field offsets point at the length byte preceding each value.
const (
	usernameOffset = 135
	passwordOffset = 169
	addressOffset  = 203

	usernameMax = 33
	passwordMax = 33
	addressMax  = 256
)

// Magic identifies a bookmark file.
var Magic = [4]byte{'H', 'T', 's', 'c'}

var (
	// ErrInvalidBookmark is returned for data that is not a bookmark.
	ErrInvalidBookmark = errors.New("bookmark: invalid bookmark")

	// ErrFieldTooLong is returned when a field does not fit its slot.
	ErrFieldTooLong = errors.New("bookmark: field too long")
)

// Bookmark is a saved Hotline server entry.
type Bookmark struct {
	Address  string `json:"address"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// New returns a bookmark for address without credentials.
func New(address string) *Bookmark {
	return &Bookmark{Address: address}
}

// WithCredentials sets the login and password and returns b.
func (b *Bookmark) WithCredentials(username, password string) *Bookmark {
	b.Username = username
	b.Password = password
	return b
}

// MarshalBinary encodes the bookmark into its 460-byte file form.
func (b *Bookmark) MarshalBinary() ([]byte, error) {
	buf := make([]byte, Size)
	copy(buf[0:4], Magic[:])
	binary.BigEndian.PutUint16(buf[4:6], Version)

	fields := []struct {
		name  string
		value string
		off   int
		max   int
	}{
		{"username", b.Username, usernameOffset, usernameMax},
		{"password", b.Password, passwordOffset, passwordMax},
		{"address", b.Address, addressOffset, addressMax},
	}

	for _, f := range fields {
		enc := macroman.Encode(f.value)
		// the length prefix is one byte, so the address slot holds at most 255
		if len(enc) > f.max || len(enc) > macroman.MaxLen {
			return nil, fmt.Errorf("%w: %s is %d bytes", ErrFieldTooLong, f.name, len(enc))
		}

		buf[f.off] = byte(len(enc))
		copy(buf[f.off+1:], enc)
	}

	return buf, nil
}

// UnmarshalBinary decodes a 460-byte bookmark.
func (b *Bookmark) UnmarshalBinary(data []byte) error {
	if len(data) != Size {
		return fmt.Errorf("%w: size %d, want %d", ErrInvalidBookmark, len(data), Size)
	}
	if [4]byte(data[0:4]) != Magic {
		return fmt.Errorf("%w: magic %q", ErrInvalidBookmark, data[0:4])
	}
	if v := binary.BigEndian.Uint16(data[4:6]); v != Version {
		return fmt.Errorf("%w: version %d", ErrInvalidBookmark, v)
	}

	read := func(off, limit int) (string, error) {
		n := int(data[off])
		if n > limit {
			return "", fmt.Errorf("%w: field at %d has length %d", ErrInvalidBookmark, off, n)
		}
		return macroman.Decode(data[off+1 : off+1+n]), nil
	}

	var err error
	if b.Username, err = read(usernameOffset, usernameMax); err != nil {
		return err
	}
	if b.Password, err = read(passwordOffset, passwordMax); err != nil {
		return err
	}
	if b.Address, err = read(addressOffset, addressMax); err != nil {
		return err
	}

	return nil
}

// ReadFile loads a bookmark from path.
func ReadFile(path string) (*Bookmark, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var b Bookmark
	if err := b.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &b, nil
}

// WriteFile stores the bookmark at path, replacing it atomically.
func (b *Bookmark) WriteFile(path string) error {
	data, err := b.MarshalBinary()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".bookmark-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}
