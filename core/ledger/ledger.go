// Package ledger is the append-only, hash-linked transaction log. Submitted
// transactions wait in a pending queue until Mine seals them into a block.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"healthledger/core/errs"
	"healthledger/types/ids"
)

// Ledger is safe for concurrent use. Submit and Mine share one lock, so a
// transaction is either in the block being mined or left for the next one.
type Ledger struct {
	mu         sync.RWMutex
	chain      []Block
	pending    pendingQueue
	idx        index
	difficulty int
	genesis    GenesisConfig
	log        *zap.Logger
	now        func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithDifficulty requires n leading zero hex digits in every mined block
// hash. The target never adjusts.
func WithDifficulty(n int) Option {
	return func(l *Ledger) { l.difficulty = n }
}

// WithGenesis sets the genesis parameters.
func WithGenesis(cfg GenesisConfig) Option {
	return func(l *Ledger) { l.genesis = cfg }
}

func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithClock overrides the block timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a ledger holding only the genesis block.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		pending: newPendingQueue(),
		idx:     newIndex(),
		log:     zap.NewNop(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(l)
	}
	g := NewGenesisBlock(l.genesis)
	l.chain = []Block{g}
	l.log.Info("genesis block created", zap.String("hash", g.Hash), zap.String("chain_id", l.genesis.ChainID))
	return l
}

// Difficulty is the fixed proof-of-work target.
func (l *Ledger) Difficulty() int { return l.difficulty }

// Submit queues tx for the next block. An empty TxID, or one already
// pending or committed, is rejected. Transactions built by NewTransaction
// carry a fresh uuid, so the network facade never meets either rejection
// and its submissions always succeed.
func (l *Ledger) Submit(tx Transaction) error {
	if tx.TxID == "" {
		return errs.InvalidState("submit", "", "transaction has no id")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, committed := l.idx.byTxID[tx.TxID]; committed || !l.pending.add(tx.clone()) {
		return errs.InvalidState("submit", tx.TxID, "duplicate transaction")
	}
	pendingTransactions.Set(float64(l.pending.len()))
	l.log.Debug("transaction queued", zap.String("tx_id", tx.TxID), zap.String("kind", string(tx.Kind)), zap.String("actor", tx.Actor))
	return nil
}

// Mine seals every pending transaction into a new block linked to the
// current tip and returns a copy of it. An empty queue yields an empty
// block.
func (l *Ledger) Mine() Block {
	l.mu.Lock()
	defer l.mu.Unlock()

	tip := l.chain[len(l.chain)-1]
	b := Block{
		Index:        tip.Index + 1,
		Timestamp:    l.now().UTC(),
		Transactions: l.pending.drain(),
		PreviousHash: tip.Hash,
	}
	b.seal(l.difficulty)
	l.chain = append(l.chain, b)
	l.idx.addBlock(b)

	blocksMinedTotal.Inc()
	pendingTransactions.Set(0)
	for _, tx := range b.Transactions {
		committedTransactionsTotal.WithLabelValues(string(tx.Kind)).Inc()
	}
	l.log.Info("block mined",
		zap.Uint64("index", b.Index),
		zap.String("hash", b.Hash),
		zap.Int("transactions", len(b.Transactions)),
		zap.Uint64("nonce", b.Nonce))
	return b.clone()
}

// VerifyIntegrity recomputes every block and returns an IntegrityError
// naming the first block that fails.
func (l *Ledger) VerifyIntegrity() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := VerifyChain(l.chain, l.difficulty); err != nil {
		l.log.Error("ledger integrity check failed", zap.Error(err))
		return err
	}
	return nil
}

// VerifyChain checks a chain from genesis: index sequence, linkage,
// Merkle roots, hashes and the difficulty target.
func VerifyChain(blocks []Block, difficulty int) error {
	if len(blocks) == 0 {
		return &errs.IntegrityError{BlockIndex: 0, Reason: "chain is empty"}
	}
	for i, b := range blocks {
		if b.Index != uint64(i) {
			return &errs.IntegrityError{BlockIndex: uint64(i), Reason: fmt.Sprintf("index %d out of sequence", b.Index)}
		}
		if i == 0 {
			if b.PreviousHash != ids.Empty.String() {
				return &errs.IntegrityError{BlockIndex: 0, Reason: "genesis previous hash is not zero"}
			}
		} else if b.PreviousHash != blocks[i-1].Hash {
			return &errs.IntegrityError{BlockIndex: b.Index, Reason: "previous hash does not match predecessor"}
		}
		if root := b.ComputeMerkleRoot(); root != b.MerkleRoot {
			return &errs.IntegrityError{BlockIndex: b.Index, Reason: "merkle root mismatch"}
		}
		if h := b.ComputeHash(); h != b.Hash {
			return &errs.IntegrityError{BlockIndex: b.Index, Reason: "hash mismatch"}
		}
		if i > 0 && !meetsDifficulty(b.Hash, difficulty) {
			return &errs.IntegrityError{BlockIndex: b.Index, Reason: "hash does not meet difficulty"}
		}
	}
	return nil
}

// History returns committed transactions in block order, then insertion
// order. A non-empty actor keeps only that actor's transactions.
func (l *Ledger) History(actor string) []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if actor == "" {
		var out []Transaction
		for _, b := range l.chain {
			for _, tx := range b.Transactions {
				out = append(out, tx.clone())
			}
		}
		return out
	}
	return l.resolve(l.idx.byActor[actor])
}

// AssetHistory returns committed transactions naming assetID.
func (l *Ledger) AssetHistory(assetID string) []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.resolve(l.idx.byAsset[assetID])
}

func (l *Ledger) resolve(refs []txRef) []Transaction {
	out := make([]Transaction, 0, len(refs))
	for _, r := range refs {
		out = append(out, l.chain[r.block].Transactions[r.pos].clone())
	}
	return out
}

// Find looks up a committed transaction and the index of its block.
func (l *Ledger) Find(txID string) (Transaction, uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.idx.byTxID[txID]
	if !ok {
		if l.pending.has(txID) {
			return Transaction{}, 0, errs.InvalidState("find", txID, "transaction is pending")
		}
		return Transaction{}, 0, errs.NotFound("transaction", txID)
	}
	return l.chain[r.block].Transactions[r.pos].clone(), r.block, nil
}

// Pending returns the queued transactions in submission order.
func (l *Ledger) Pending() []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pending.list()
}

// Blocks returns a copy of the chain.
func (l *Ledger) Blocks() []Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Block, len(l.chain))
	for i, b := range l.chain {
		out[i] = b.clone()
	}
	return out
}

// Block returns the block at index.
func (l *Ledger) Block(index uint64) (Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index >= uint64(len(l.chain)) {
		return Block{}, errs.NotFound("block", fmt.Sprint(index))
	}
	return l.chain[index].clone(), nil
}

// Tip returns the most recent block.
func (l *Ledger) Tip() Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain[len(l.chain)-1].clone()
}

// Height is the index of the tip. A fresh ledger has height 0.
func (l *Ledger) Height() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.chain) - 1)
}
