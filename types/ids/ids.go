package ids

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ID is a 32-byte SHA-256 digest.
type ID [32]byte

// Empty is the zero-value ID. Its hex form (64 zeros) is the genesis
// previous-hash sentinel.
var Empty ID

// NewID hashes the input bytes into an ID.
func NewID(data []byte) ID {
	return ID(sha256.Sum256(data))
}

// FromString parses a 64 character hex string into an ID.
func FromString(s string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("id must be %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// String returns the lowercase hex encoding.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// IsEmpty reports whether id is the zero value.
func (id ID) IsEmpty() bool {
	return id == Empty
}

// HashHex is shorthand for NewID(data).String().
func HashHex(data []byte) string {
	return NewID(data).String()
}
