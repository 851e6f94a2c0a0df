package token

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tokensIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_tokens_issued_total",
		Help: "Total number of tokens issued, by token type.",
	}, []string{"type"})

	tokenVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_token_verifications_total",
		Help: "Total number of token verifications, by result.",
	}, []string{"result"})

	tokenRevocationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authcore_token_revocations_total",
		Help: "Total number of tokens revoked.",
	})

	previousKeyVerificationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authcore_token_previous_key_verifications_total",
		Help: "Total number of verifications that succeeded with the previous signing secret.",
	})

	tokenVerifyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "authcore_token_verify_duration_seconds",
		Help:    "Latency of token verification.",
		Buckets: prometheus.DefBuckets,
	})
)

// Verification result labels.
const (
	resultValid   = "valid"
	resultExpired = "expired"
	resultRevoked = "revoked"
	resultInvalid = "invalid"
)
