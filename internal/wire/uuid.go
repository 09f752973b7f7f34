package wire

import "github.com/google/uuid"

// UUIDSize is the wire size of a UUID: 16 raw bytes, no length prefix.
const UUIDSize = 16

// PutUUID appends a UUID's 16 raw bytes.
func PutUUID(dst []byte, id uuid.UUID) []byte {
	return append(dst, id[:]...)
}

// UUID decodes 16 raw bytes into a UUID.
func UUID(buf []byte) (uuid.UUID, int, error) {
	if len(buf) < UUIDSize {
		return uuid.UUID{}, 0, ErrTruncated
	}
	var id uuid.UUID
	copy(id[:], buf[:UUIDSize])
	return id, UUIDSize, nil
}
