// Package macroman converts between Mac OS Roman bytes and Unicode text,
// and provides a bounded length-prefixed string that keeps the wire bytes as-is.
package macroman

import (
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// ToRune returns the Unicode scalar for a single Mac OS Roman byte.
// Control bytes (0x00-0x1F, 0x7F) map to the same code point.
func ToRune(b byte) rune {
	return charmap.Macintosh.DecodeByte(b)
}

// FromRune returns the Mac OS Roman byte for r.
// Characters outside the code page fall back to the low byte of the scalar.
func FromRune(r rune) byte {
	if b, ok := charmap.Macintosh.EncodeRune(r); ok {
		return b
	}

	return byte(r)
}

// Decode transcodes Mac OS Roman bytes to a Go string.
func Decode(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		sb.WriteRune(ToRune(c))
	}

	return sb.String()
}

// Encode transcodes s to Mac OS Roman, one byte per rune.
func Encode(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		out = append(out, FromRune(r))
	}

	return out
}
