package risk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	ApprovalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_risk_approvals_total",
		Help: "Total opportunities approved by the risk gate",
	})

	RejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crossarb_risk_rejections_total",
		Help: "Total opportunities rejected by the risk gate, by reason",
	}, []string{"reason"})
)
