package memory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// augmentationsTotal counts worker jobs by outcome (stored, empty, error).
	augmentationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memscope",
			Subsystem: "memory",
			Name:      "augmentations_total",
			Help:      "Augmentation jobs processed, by outcome",
		},
		[]string{"outcome"},
	)

	factsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memscope",
			Subsystem: "memory",
			Name:      "facts_stored_total",
			Help:      "Facts written to the memory store, by kind",
		},
		[]string{"kind"},
	)

	secretsRedacted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "memscope",
			Subsystem: "memory",
			Name:      "secrets_redacted_total",
			Help:      "Secrets redacted from facts before persistence",
		},
	)

	recallHits = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "memscope",
			Subsystem: "memory",
			Name:      "recall_hits",
			Help:      "Memories injected into a prompt",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "memscope",
			Subsystem: "memory",
			Name:      "queue_depth",
			Help:      "Augmentation jobs waiting across all engines",
		},
	)

	barrierWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "memscope",
			Subsystem: "memory",
			Name:      "barrier_wait_seconds",
			Help:      "Time spent waiting for the augmentation barrier",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
