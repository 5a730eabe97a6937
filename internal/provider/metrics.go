package provider

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memscope",
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Model calls by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "memscope",
			Subsystem: "provider",
			Name:      "request_duration_seconds",
			Help:      "Model call latency by backend",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"backend"},
	)
)

func observe(b Backend, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	requestsTotal.WithLabelValues(string(b), outcome).Inc()
	requestDuration.WithLabelValues(string(b)).Observe(time.Since(start).Seconds())
}
