// Package protocol implements the Hotline tracker wire formats: the UDP
// registration datagram, and the TCP listing stream (header, update record,
// server records) together with its stateful framing codec.
//
// All multi-byte integers are big-endian; strings are Mac OS Roman with a
// single length byte in front.
package protocol

import "errors"

// Well-known tracker ports.
const (
	// ListingPort is the TCP port serving server listings.
	ListingPort uint16 = 5498

	// RegistrationPort is the UDP port accepting server registrations.
	RegistrationPort uint16 = 5499

	// DefaultServerPort is the Hotline server port assumed by a default registration.
	DefaultServerPort uint16 = 5500
)

// Version is the only protocol version understood on every record.
const Version uint16 = 1

var (
	// ErrShortBuffer means more input is required before the record can be decoded.
	ErrShortBuffer = errors.New("protocol: need more data")

	// ErrTrailingData means a datagram is longer than the record it carries.
	ErrTrailingData = errors.New("protocol: trailing data after record")

	// ErrBadVersion means a record carries a version other than 1.
	ErrBadVersion = errors.New("protocol: unsupported record version")

	// ErrInvalidHeader means the peer sent a header with a wrong magic or version.
	ErrInvalidHeader = errors.New("protocol: invalid header")

	// ErrUnexpectedData means bytes arrived in a state that does not accept them.
	ErrUnexpectedData = errors.New("protocol: received unexpected data")

	// ErrNotIPv4 means an address cannot be carried in the 4-byte wire field.
	ErrNotIPv4 = errors.New("protocol: address is not IPv4")
)
