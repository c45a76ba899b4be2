package protocol

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/woozymasta/hltracker/internal/macroman"
)

// serverFixedLen covers address, port, users, reserved and both length bytes.
const serverFixedLen = 12

// ServerRecord is one entry of a tracker listing.
type ServerRecord struct {
	Address     netip.Addr
	Name        macroman.String
	Description macroman.String
	Port        uint16
	UsersOnline uint16
	Reserved    uint16
}

// DataSize returns the encoded length of the record.
func (s ServerRecord) DataSize() int {
	return serverFixedLen + s.Name.Len() + s.Description.Len()
}

// DecodeServerRecord reads one record from the front of a stream buffer.
// It returns ErrShortBuffer until the whole record is available and only
// then reports the number of bytes consumed.
func DecodeServerRecord(b []byte) (ServerRecord, int, error) {
	if len(b) < serverFixedLen {
		return ServerRecord{}, 0, ErrShortBuffer
	}

	nameLen := int(b[10])
	if len(b) < serverFixedLen+nameLen {
		return ServerRecord{}, 0, ErrShortBuffer
	}

	descLen := int(b[10+1+nameLen])
	size := serverFixedLen + nameLen + descLen
	if len(b) < size {
		return ServerRecord{}, 0, ErrShortBuffer
	}

	s := ServerRecord{
		Address:     netip.AddrFrom4([4]byte(b[0:4])),
		Port:        binary.BigEndian.Uint16(b[4:6]),
		UsersOnline: binary.BigEndian.Uint16(b[6:8]),
		Reserved:    binary.BigEndian.Uint16(b[8:10]),
	}

	off := 10
	s.Name, off = readString(b, off)
	s.Description, _ = readString(b, off)

	return s, size, nil
}

// AppendTo appends the encoded record to dst.
// Addresses that are not IPv4 (or IPv4-mapped IPv6) cannot be encoded.
func (s ServerRecord) AppendTo(dst []byte) ([]byte, error) {
	addr := s.Address.Unmap()
	if !addr.Is4() {
		return dst, fmt.Errorf("%w: %s", ErrNotIPv4, s.Address)
	}

	octets := addr.As4()
	dst = append(dst, octets[:]...)
	dst = binary.BigEndian.AppendUint16(dst, s.Port)
	dst = binary.BigEndian.AppendUint16(dst, s.UsersOnline)
	dst = binary.BigEndian.AppendUint16(dst, s.Reserved)
	dst = s.Name.AppendTo(dst)
	return s.Description.AppendTo(dst), nil
}

// Encode returns the encoded record.
func (s ServerRecord) Encode() ([]byte, error) {
	return s.AppendTo(make([]byte, 0, s.DataSize()))
}
