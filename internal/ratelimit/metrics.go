package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rateLimitChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_ratelimit_checks_total",
		Help: "Total number of check-and-record calls, by backend and outcome.",
	}, []string{"backend", "outcome"})

	rateLimitClearsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_ratelimit_clears_total",
		Help: "Total number of explicit attempt resets, by backend.",
	}, []string{"backend"})

	rateLimitCleanupRemovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_ratelimit_cleanup_removed_total",
		Help: "Total number of stale identifier entries removed, by backend.",
	}, []string{"backend"})

	rateLimitFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authcore_ratelimit_fallbacks_total",
		Help: "Total number of times the Redis backend was unavailable and the memory backend was selected.",
	})

	rateLimitErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_ratelimit_errors_total",
		Help: "Total number of backend errors, by backend.",
	}, []string{"backend"})
)

// Outcome and backend labels.
const (
	outcomeAllowed = "allowed"
	outcomeLimited = "limited"

	backendMemory = "memory"
	backendRedis  = "redis"
)
