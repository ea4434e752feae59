package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	blocksMinedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "healthledger",
			Subsystem: "ledger",
			Name:      "blocks_mined_total",
			Help:      "Blocks appended to the chain, excluding genesis.",
		},
	)

	pendingTransactions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "healthledger",
			Subsystem: "ledger",
			Name:      "pending_transactions",
			Help:      "Transactions waiting for the next block.",
		},
	)

	committedTransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthledger",
			Subsystem: "ledger",
			Name:      "committed_transactions_total",
			Help:      "Transactions sealed into blocks, by kind.",
		},
		[]string{"kind"},
	)
)
