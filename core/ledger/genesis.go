package ledger

import (
	"time"

	"healthledger/types/ids"
)

// DefaultGenesisTime is used when no genesis time is configured, so that
// nodes built with default settings share a genesis hash.
var DefaultGenesisTime = time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)

// GenesisConfig fixes the contents of block 0.
type GenesisConfig struct {
	ChainID     string
	GenesisTime time.Time
}

// NewGenesisBlock builds block 0: no transactions and a previous hash of
// 64 zeros. Genesis is exempt from the difficulty target.
func NewGenesisBlock(cfg GenesisConfig) Block {
	at := cfg.GenesisTime
	if at.IsZero() {
		at = DefaultGenesisTime
	}
	b := Block{
		Index:        0,
		Timestamp:    at.UTC(),
		Transactions: []Transaction{},
		PreviousHash: ids.Empty.String(),
	}
	b.seal(0)
	return b
}
