package blacklist

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for blacklist operations.
var (
	blacklistAdditionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_blacklist_additions_total",
			Help: "Total number of blacklist insertions",
		},
		[]string{"tier"},
	)

	blacklistHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_blacklist_hits_total",
			Help: "Total number of revoked-token lookups that matched",
		},
		[]string{"tier"},
	)

	blacklistSweptTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_blacklist_swept_entries_total",
			Help: "Total number of expired blacklist entries removed",
		},
		[]string{"tier"},
	)

	blacklistEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authcore_blacklist_evictions_total",
			Help: "Total number of oldest-first evictions from the memory tier",
		},
	)

	blacklistSizeGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "authcore_blacklist_entries",
			Help: "Current number of entries in the memory tier",
		},
	)

	blacklistPersistenceErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authcore_blacklist_persistence_errors_total",
			Help: "Total number of durable-store failures during blacklist operations",
		},
	)
)
