package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	ExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crossarb_execution_attempts_total",
		Help: "Total execution attempts by terminal outcome or refusal reason",
	}, []string{"outcome"})

	PartialFillsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_execution_partial_fills_total",
		Help: "Total executions that ended with exactly one filled leg",
	})

	UnwindsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crossarb_execution_unwinds_total",
		Help: "Total unwind attempts by outcome",
	}, []string{"outcome"})

	FillPollDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crossarb_execution_fill_poll_duration_seconds",
		Help:    "Time spent polling leg fills per execution",
		Buckets: prometheus.DefBuckets,
	})
)
