package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	WritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crossarb_storage_writes_total",
		Help: "Total repository writes by backend and operation",
	}, []string{"backend", "op"})
)
