package arbitrage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	OpportunitiesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_arbitrage_opportunities_detected_total",
		Help: "Total arbitrage opportunities passing the spread filter",
	})

	DetectionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crossarb_arbitrage_detection_duration_seconds",
		Help:    "Time to scan one quote snapshot",
		Buckets: prometheus.DefBuckets,
	})
)
