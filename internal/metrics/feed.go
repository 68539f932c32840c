package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Personalization feed Prometheus metrics.
var (
	FeedEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_events_total",
			Help:      "Interaction events seen by the feed, by result",
		},
		// buffered / duplicate / processed / stale / unknown_content / invalid / ledger_error
		[]string{"result"},
	)

	FeedFlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_flushes_total",
			Help:      "Profile flushes by outcome",
		},
		[]string{"result", "trigger"},
	)

	FeedFlushRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_flush_retries_total",
			Help:      "Retried profile flush attempts",
		},
	)

	FeedEventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_events_dropped_total",
			Help:      "Events dropped after the flush retry budget was exhausted",
		},
	)

	FeedFlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_flush_duration_seconds",
			Help:      "Profile flush latency in seconds, retries included",
			Buckets:   prometheus.DefBuckets,
		},
	)

	FeedBufferedUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_buffered_users",
			Help:      "Users with events waiting to be flushed",
		},
	)
)

var feedOnce sync.Once

// RegisterFeedMetrics registers personalization feed metrics. Safe to call repeatedly.
func RegisterFeedMetrics() {
	feedOnce.Do(func() {
		prometheus.MustRegister(
			FeedEventsTotal,
			FeedFlushesTotal,
			FeedFlushRetriesTotal,
			FeedEventsDroppedTotal,
			FeedFlushDuration,
			FeedBufferedUsers,
		)
	})
}
