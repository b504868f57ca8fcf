package xid

import (
	"encoding/binary"
	"strconv"
)

// Uint64 is an external id backed by an unsigned 64-bit integer.
//
// Its byte encoding is big-endian, so bytes.Compare on two [Uint64.Bytes]
// results agrees with the natural numeric order.
type Uint64 uint64

// Bytes returns the 8-byte big-endian encoding of the id.
func (u Uint64) Bytes() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(u))

	return buf
}

func (u Uint64) String() string {
	return strconv.FormatUint(uint64(u), 10)
}

// DecodeUint64 parses the byte encoding produced by [Uint64.Bytes].
func DecodeUint64(b []byte) (Uint64, bool) {
	if len(b) != 8 {
		return 0, false
	}

	return Uint64(binary.BigEndian.Uint64(b)), true
}
