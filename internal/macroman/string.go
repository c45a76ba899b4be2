package macroman

import (
	"bytes"
	"errors"
	"fmt"
)

// MaxLen is the capacity of a String; the wire length prefix is a single byte.
const MaxLen = 255

// ErrTooLong is returned by NewString when the payload exceeds MaxLen.
var ErrTooLong = errors.New("macroman: string longer than 255 bytes")

// String is a bounded, still-encoded Mac OS Roman string.
// The zero value is an empty string. Values are independent copies.
type String struct {
	buf [MaxLen]byte
	len uint8
}

// NewString copies b into a String, rejecting payloads longer than MaxLen.
func NewString(b []byte) (String, error) {
	if len(b) > MaxLen {
		return String{}, fmt.Errorf("%w: %d", ErrTooLong, len(b))
	}

	var s String
	s.Set(b)
	return s, nil
}

// FromBytes copies b into a String. It panics when len(b) > MaxLen.
func FromBytes(b []byte) String {
	var s String
	s.Set(b)
	return s
}

// FromString transcodes text to Mac OS Roman. It panics when the result exceeds MaxLen.
func FromString(text string) String {
	return FromBytes(Encode(text))
}

// Set replaces the payload. It panics when len(b) > MaxLen.
func (s *String) Set(b []byte) {
	if len(b) > MaxLen {
		panic(fmt.Sprintf("macroman: string too big: %d > %d", len(b), MaxLen))
	}

	n := copy(s.buf[:], b)
	if n < int(s.len) {
		// keep the unused tail zeroed so == on String matches Equal
		clear(s.buf[n:s.len])
	}
	s.len = uint8(n)
}

// Len returns the payload length in bytes.
func (s String) Len() int {
	return int(s.len)
}

// IsEmpty reports whether the string has no payload.
func (s String) IsEmpty() bool {
	return s.len == 0
}

// Bytes returns a copy of the encoded payload.
func (s String) Bytes() []byte {
	out := make([]byte, s.len)
	copy(out, s.buf[:s.len])
	return out
}

// String decodes the payload to Unicode.
func (s String) String() string {
	return Decode(s.buf[:s.len])
}

// Equal compares the encoded payloads byte for byte.
func (s String) Equal(o String) bool {
	return bytes.Equal(s.buf[:s.len], o.buf[:o.len])
}

// AppendTo appends the wire form (length byte followed by payload) to dst.
func (s String) AppendTo(dst []byte) []byte {
	dst = append(dst, s.len)
	return append(dst, s.buf[:s.len]...)
}

// MarshalText implements encoding.TextMarshaler using the decoded form.
func (s String) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *String) UnmarshalText(text []byte) error {
	v, err := NewString(Encode(string(text)))
	if err != nil {
		return err
	}

	*s = v
	return nil
}
