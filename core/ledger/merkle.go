package ledger

import (
	"crypto/sha256"
	"encoding/hex"
)

// MerkleRoot computes the Merkle root of a list of hex hashes. An odd
// node is paired with itself. An empty list yields "".
func MerkleRoot(hashes []string) string {
	if len(hashes) == 0 {
		return ""
	}
	level := append([]string(nil), hashes...)
	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			right := level[i]
			if i+1 < len(level) {
				right = level[i+1]
			}
			h := sha256.New()
			h.Write([]byte(level[i]))
			h.Write([]byte(right))
			next = append(next, hex.EncodeToString(h.Sum(nil)))
		}
		level = next
	}
	return level[0]
}
