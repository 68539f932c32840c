package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheRequestsTotal counts read-through cache lookups by entity and result.
var CacheRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_requests_total",
		Help:      "Read-through cache lookups",
	},
	[]string{"entity", "result"}, // result: hit / miss / error
)

var cacheOnce sync.Once

// RegisterCacheMetrics registers cache metrics. Safe to call repeatedly.
func RegisterCacheMetrics() {
	cacheOnce.Do(func() {
		prometheus.MustRegister(CacheRequestsTotal)
	})
}
