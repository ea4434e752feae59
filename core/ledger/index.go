package ledger

// txRef locates a committed transaction.
type txRef struct {
	block uint64
	pos   int
}

// index maps actors, assets and transaction IDs to committed
// transactions in commit order.
type index struct {
	byActor map[string][]txRef
	byAsset map[string][]txRef
	byTxID  map[string]txRef
}

func newIndex() index {
	return index{
		byActor: make(map[string][]txRef),
		byAsset: make(map[string][]txRef),
		byTxID:  make(map[string]txRef),
	}
}

func (ix *index) addBlock(b Block) {
	for i, tx := range b.Transactions {
		ref := txRef{block: b.Index, pos: i}
		ix.byTxID[tx.TxID] = ref
		ix.byActor[tx.Actor] = append(ix.byActor[tx.Actor], ref)
		if tx.AssetID != "" {
			ix.byAsset[tx.AssetID] = append(ix.byAsset[tx.AssetID], ref)
		}
	}
}
