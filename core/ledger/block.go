package ledger

import (
	"strings"
	"time"

	"healthledger/types/ids"
)

// Block seals a batch of transactions and links to its predecessor.
type Block struct {
	Index        uint64        `json:"index"`
	Timestamp    time.Time     `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	PreviousHash string        `json:"previous_hash"`
	MerkleRoot   string        `json:"merkle_root"`
	Nonce        uint64        `json:"nonce"`
	Hash         string        `json:"hash"`
}

// ComputeHash hashes the canonical header and transactions. MerkleRoot
// and Hash are not part of the input.
func (b Block) ComputeHash() string {
	txs := make([]interface{}, len(b.Transactions))
	for i, tx := range b.Transactions {
		txs[i] = tx.canonicalFields()
	}
	data, _ := canonicalJSON(map[string]interface{}{
		"index":         b.Index,
		"timestamp":     b.Timestamp.UTC().Format(timeFormat),
		"transactions":  txs,
		"previous_hash": b.PreviousHash,
		"nonce":         b.Nonce,
	})
	return ids.HashHex(data)
}

// ComputeMerkleRoot derives the Merkle root of the transaction hashes.
func (b Block) ComputeMerkleRoot() string {
	hashes := make([]string, len(b.Transactions))
	for i, tx := range b.Transactions {
		hashes[i] = tx.Hash()
	}
	return MerkleRoot(hashes)
}

func (b Block) clone() Block {
	txs := make([]Transaction, len(b.Transactions))
	for i, tx := range b.Transactions {
		txs[i] = tx.clone()
	}
	b.Transactions = txs
	return b
}

// meetsDifficulty reports whether hash starts with n zero hex digits.
func meetsDifficulty(hash string, n int) bool {
	return n <= 0 || strings.HasPrefix(hash, strings.Repeat("0", n))
}

// seal fills MerkleRoot, searches for a nonce satisfying difficulty and
// sets Hash.
func (b *Block) seal(difficulty int) {
	b.MerkleRoot = b.ComputeMerkleRoot()
	b.Nonce = 0
	b.Hash = b.ComputeHash()
	for !meetsDifficulty(b.Hash, difficulty) {
		b.Nonce++
		b.Hash = b.ComputeHash()
	}
}
