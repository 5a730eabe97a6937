package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// turnsTotal counts turns. Labels: mode (memory, bare), outcome (ok or
	// a failure kind).
	turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memscope",
			Subsystem: "orchestrator",
			Name:      "turns_total",
			Help:      "Turns handled, by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	turnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "memscope",
			Subsystem: "orchestrator",
			Name:      "turn_duration_seconds",
			Help:      "Turn latency including the augmentation barrier",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"mode"},
	)

	barrierWarnings = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "memscope",
			Subsystem: "orchestrator",
			Name:      "barrier_timeouts_total",
			Help:      "Turns returned before augmentation finished",
		},
	)
)
