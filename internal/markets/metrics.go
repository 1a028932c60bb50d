package markets

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	ResolverCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_markets_resolver_cache_hits_total",
		Help: "Total number of token-pair resolver cache hits",
	})

	ResolverCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_markets_resolver_cache_misses_total",
		Help: "Total number of token-pair resolver cache misses",
	})
)
