package venue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	OrderPlacementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crossarb_venue_order_placements_total",
		Help: "Total order placement attempts by venue and outcome",
	}, []string{"venue", "outcome"})

	OrderCancelsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crossarb_venue_order_cancels_total",
		Help: "Total order cancel attempts by venue and outcome",
	}, []string{"venue", "outcome"})

	AuthRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crossarb_venue_auth_refreshes_total",
		Help: "Total successful venue authentications",
	}, []string{"venue"})
)
