package protocol

import (
	"encoding/binary"
	"fmt"
)

// HeaderLen is the encoded size of a Header.
const HeaderLen = 6

// Magic opens every listing exchange in both directions.
var Magic = [4]byte{'H', 'T', 'R', 'K'}

// Header is the framing token exchanged at the start of a listing connection.
type Header struct {
	Magic   [4]byte
	Version uint16
}

// DefaultHeader returns the only valid header: "HTRK" version 1.
func DefaultHeader() Header {
	return Header{Magic: Magic, Version: Version}
}

// IsValid reports whether both magic and version match exactly.
func (h Header) IsValid() bool {
	return h.Magic == Magic && h.Version == Version
}

// DecodeHeader reads a header from the front of b and returns the bytes consumed.
// It does not validate the header; see IsValid.
func DecodeHeader(b []byte) (Header, int, error) {
	if len(b) < HeaderLen {
		return Header{}, 0, ErrShortBuffer
	}

	var h Header
	copy(h.Magic[:], b[:4])
	h.Version = binary.BigEndian.Uint16(b[4:6])

	return h, HeaderLen, nil
}

// AppendTo appends the encoded header to dst.
func (h Header) AppendTo(dst []byte) []byte {
	dst = append(dst, h.Magic[:]...)
	return binary.BigEndian.AppendUint16(dst, h.Version)
}

func (h Header) String() string {
	return fmt.Sprintf("%q/%d", h.Magic[:], h.Version)
}
