package protocol

import "encoding/binary"

// UpdateRecordLen is the fixed encoded size of an UpdateRecord.
const UpdateRecordLen = 8

// UpdateRecord summarizes the server records that follow it in a listing.
type UpdateRecord struct {
	Version uint16
	// RemainingDataSize is the byte count of the server records that follow.
	RemainingDataSize uint16
	TotalServers      uint16
	RemainingServers  uint16
}

// DecodeUpdateRecord reads an update record from the front of b.
func DecodeUpdateRecord(b []byte) (UpdateRecord, int, error) {
	if len(b) < UpdateRecordLen {
		return UpdateRecord{}, 0, ErrShortBuffer
	}

	return UpdateRecord{
		Version:           binary.BigEndian.Uint16(b[0:2]),
		RemainingDataSize: binary.BigEndian.Uint16(b[2:4]),
		TotalServers:      binary.BigEndian.Uint16(b[4:6]),
		RemainingServers:  binary.BigEndian.Uint16(b[6:8]),
	}, UpdateRecordLen, nil
}

// AppendTo appends the encoded record to dst.
func (u UpdateRecord) AppendTo(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint16(dst, u.Version)
	dst = binary.BigEndian.AppendUint16(dst, u.RemainingDataSize)
	dst = binary.BigEndian.AppendUint16(dst, u.TotalServers)
	return binary.BigEndian.AppendUint16(dst, u.RemainingServers)
}
