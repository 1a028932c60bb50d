package quotes

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	SnapshotsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_quotes_snapshots_total",
		Help: "Total quote snapshots produced",
	})

	QuotesPerSnapshot = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crossarb_quotes_per_snapshot",
		Help: "Number of market quotes in the most recent snapshot",
	})

	FetchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crossarb_quotes_fetch_failures_total",
		Help: "Total per-venue quote fetch failures",
	}, []string{"venue"})

	StaleServesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_quotes_stale_serves_total",
		Help: "Times the last good snapshot was served because all venues failed",
	})

	StreamReconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crossarb_quotes_stream_reconnects_total",
		Help: "Total quote stream reconnect attempts",
	}, []string{"venue"})

	StreamUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crossarb_quotes_stream_updates_total",
		Help: "Total quote updates received over the stream",
	}, []string{"venue"})
)
