package server

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthledger",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route template and status code.",
		},
		[]string{"method", "route", "code"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "healthledger",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route template.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// NodeMetrics holds ledger and host health figures.
type NodeMetrics struct {
	UptimeSeconds         int64   `json:"uptime_seconds"`
	BlockHeight           uint64  `json:"block_height"`
	PendingTransactions   int     `json:"pending_transactions"`
	ArchivedHeight        *uint64 `json:"archived_height,omitempty"`
	CPULoadPercent        float64 `json:"cpu_load_percent"`
	MemoryUsedPercent     float64 `json:"memory_used_percent"`
	HeapMB                float64 `json:"heap_mb"`
	DiskFreeMB            float64 `json:"disk_free_mb"`
	LastBlockTime         string  `json:"last_block_time"`
	SecondsSinceLastBlock int64   `json:"seconds_since_last_block"`
	Halted                bool    `json:"halted"`
}

// GetNodeMetrics samples the ledger and the host. Host figures that
// cannot be read are left at zero.
func (s *Server) GetNodeMetrics() NodeMetrics {
	st := s.net.Status()
	tip := s.net.Ledger().Tip()

	m := NodeMetrics{
		UptimeSeconds:         int64(time.Since(s.started).Seconds()),
		BlockHeight:           st.Height,
		PendingTransactions:   st.Pending,
		LastBlockTime:         tip.Timestamp.Format(time.RFC3339),
		SecondsSinceLastBlock: int64(time.Since(tip.Timestamp).Seconds()),
		Halted:                st.Halted,
	}

	var rt runtime.MemStats
	runtime.ReadMemStats(&rt)
	m.HeapMB = float64(rt.HeapAlloc) / (1024 * 1024)

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		m.CPULoadPercent = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		m.MemoryUsedPercent = vm.UsedPercent
	}
	if du, err := disk.Usage("/"); err == nil {
		m.DiskFreeMB = float64(du.Free) / (1024 * 1024)
	}
	if s.archive != nil {
		if h, ok, err := s.archive.Height(); err == nil && ok {
			m.ArchivedHeight = &h
		}
	}
	return m
}
