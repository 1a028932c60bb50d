package supervisor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var AgentsManaged = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "crossarb_supervisor_agents_managed",
	Help: "Number of agents registered with the supervisor",
})
