package warning

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	detectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthledger",
			Subsystem: "warning",
			Name:      "detections_total",
			Help:      "Threshold violations detected, by parameter and side.",
		},
		[]string{"parameter", "threshold"},
	)

	skippedFieldsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthledger",
			Subsystem: "warning",
			Name:      "skipped_fields_total",
			Help:      "Reading fields skipped because they could not be parsed.",
		},
		[]string{"field"},
	)

	ruleLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthledger",
			Subsystem: "warning",
			Name:      "rule_loads_total",
			Help:      "Rule file loads by outcome.",
		},
		[]string{"status"},
	)
)
