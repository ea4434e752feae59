package access

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthledger",
			Subsystem: "access",
			Name:      "decisions_total",
			Help:      "Access decisions by role, resource kind, action and result.",
		},
		[]string{"role", "kind", "action", "result"},
	)

	activeEmergencyGrants = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "healthledger",
			Subsystem: "access",
			Name:      "emergency_grants",
			Help:      "Emergency grants currently installed, including expired ones not yet replaced.",
		},
	)
)
