package position

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crossarb_position_open_positions",
		Help: "Number of non-terminal positions across agents",
	})
)
