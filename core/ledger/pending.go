package ledger

// pendingQueue holds submitted transactions awaiting a block in FIFO
// order. It is not locked; the Ledger mutex guards it.
type pendingQueue struct {
	txs   map[string]Transaction // TxID -> Transaction
	order []string
}

func newPendingQueue() pendingQueue {
	return pendingQueue{txs: make(map[string]Transaction)}
}

// add returns false for a TxID already queued.
func (q *pendingQueue) add(tx Transaction) bool {
	if _, exists := q.txs[tx.TxID]; exists {
		return false
	}
	q.txs[tx.TxID] = tx
	q.order = append(q.order, tx.TxID)
	return true
}

func (q *pendingQueue) has(txID string) bool {
	_, ok := q.txs[txID]
	return ok
}

// drain empties the queue and returns its contents in submission order.
func (q *pendingQueue) drain() []Transaction {
	out := q.list()
	q.txs = make(map[string]Transaction)
	q.order = nil
	return out
}

func (q *pendingQueue) list() []Transaction {
	out := make([]Transaction, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.txs[id].clone())
	}
	return out
}

func (q *pendingQueue) len() int { return len(q.order) }
