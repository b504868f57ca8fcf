package xid

import "github.com/google/uuid"

// UUID is an external id backed by a UUID.
//
// Its byte encoding is the UUID's raw 16 bytes. For UUIDv7 (and any other
// time-ordered variant) byte order agrees with generation order; for
// random (v4) UUIDs the order is still total, just not chronological, which
// satisfies the store's ordering requirement without implying one.
type UUID uuid.UUID

func (u UUID) Bytes() []byte {
	id := uuid.UUID(u)

	return id[:]
}

func (u UUID) String() string {
	return uuid.UUID(u).String()
}

// DecodeUUID parses the byte encoding produced by [UUID.Bytes].
func DecodeUUID(b []byte) (UUID, bool) {
	if len(b) != 16 {
		return UUID{}, false
	}

	var id uuid.UUID
	copy(id[:], b)

	return UUID(id), true
}
