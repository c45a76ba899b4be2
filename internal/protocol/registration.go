package protocol

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/woozymasta/hltracker/internal/macroman"
)

// registrationFixedLen is the static portion plus the three length bytes.
const registrationFixedLen = 15

// MaxRegistrationLen is the largest possible registration datagram.
const MaxRegistrationLen = registrationFixedLen + 3*macroman.MaxLen

// RegistrationRecord is the UDP payload a Hotline server sends to announce itself.
// The packet carries no address: the tracker attaches the datagram source.
type RegistrationRecord struct {
	Name        macroman.String
	Description macroman.String
	Password    macroman.String
	ID          uint32
	Version     uint16
	Port        uint16
	UsersOnline uint16
	Reserved    uint16
}

// DefaultRegistration returns a version 1 record for the default Hotline port.
func DefaultRegistration() RegistrationRecord {
	return RegistrationRecord{
		Version: Version,
		Port:    DefaultServerPort,
	}
}

// DataSize returns the encoded length of the record.
func (r RegistrationRecord) DataSize() int {
	return registrationFixedLen + r.Name.Len() + r.Description.Len() + r.Password.Len()
}

// DecodeRegistration parses a whole datagram. Datagrams are atomic, so the
// record must span exactly len(b) bytes.
func DecodeRegistration(b []byte) (RegistrationRecord, error) {
	if len(b) < registrationFixedLen {
		return RegistrationRecord{}, ErrShortBuffer
	}

	nameLen := int(b[12])
	if len(b) < registrationFixedLen+nameLen {
		return RegistrationRecord{}, ErrShortBuffer
	}

	descLen := int(b[12+1+nameLen])
	if len(b) < registrationFixedLen+nameLen+descLen {
		return RegistrationRecord{}, ErrShortBuffer
	}

	passLen := int(b[12+1+nameLen+1+descLen])
	want := registrationFixedLen + nameLen + descLen + passLen
	switch {
	case len(b) < want:
		return RegistrationRecord{}, ErrShortBuffer
	case len(b) > want:
		return RegistrationRecord{}, fmt.Errorf("%w: %d extra bytes", ErrTrailingData, len(b)-want)
	}

	r := RegistrationRecord{
		Version:     binary.BigEndian.Uint16(b[0:2]),
		Port:        binary.BigEndian.Uint16(b[2:4]),
		UsersOnline: binary.BigEndian.Uint16(b[4:6]),
		Reserved:    binary.BigEndian.Uint16(b[6:8]),
		ID:          binary.BigEndian.Uint32(b[8:12]),
	}
	if r.Version != Version {
		return RegistrationRecord{}, fmt.Errorf("%w: %d", ErrBadVersion, r.Version)
	}

	off := 12
	r.Name, off = readString(b, off)
	r.Description, off = readString(b, off)
	r.Password, _ = readString(b, off)

	return r, nil
}

// Encode returns the datagram form of the record.
func (r RegistrationRecord) Encode() []byte {
	buf := make([]byte, 0, r.DataSize())
	buf = binary.BigEndian.AppendUint16(buf, r.Version)
	buf = binary.BigEndian.AppendUint16(buf, r.Port)
	buf = binary.BigEndian.AppendUint16(buf, r.UsersOnline)
	buf = binary.BigEndian.AppendUint16(buf, r.Reserved)
	buf = binary.BigEndian.AppendUint32(buf, r.ID)
	buf = r.Name.AppendTo(buf)
	buf = r.Description.AppendTo(buf)
	return r.Password.AppendTo(buf)
}

// ToServerRecord builds the listing entry for this registration as observed from addr.
func (r RegistrationRecord) ToServerRecord(addr netip.Addr) ServerRecord {
	return ServerRecord{
		Address:     addr,
		Port:        r.Port,
		UsersOnline: r.UsersOnline,
		Reserved:    r.Reserved,
		Name:        r.Name,
		Description: r.Description,
	}
}

// readString reads a length-prefixed string at off; the caller has checked bounds.
func readString(b []byte, off int) (macroman.String, int) {
	n := int(b[off])
	off++
	return macroman.FromBytes(b[off : off+n]), off + n
}
