package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	AgentsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crossarb_agents_running",
		Help: "Number of agents currently running their scan loop",
	})

	ScansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_agent_scans_total",
		Help: "Total scan passes across all agents",
	})

	ScanDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crossarb_agent_scan_duration_seconds",
		Help:    "Duration of one scan pass including any execution",
		Buckets: prometheus.DefBuckets,
	})

	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crossarb_agent_trades_total",
		Help: "Total executed trades by terminal position status",
	}, []string{"status"})
)
