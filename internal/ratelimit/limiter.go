// Package ratelimit counts attempts per identifier inside a trailing sliding
// window. CheckAndRecord is the atomic primitive; the legacy split pair is
// retained for old call sites but is racy under concurrency.
package ratelimit

import (
	"context"
	"time"

	"github.com/vyrodovalexey/authcore/internal/auth"
)

const (
	// DefaultMaxAttempts is the default attempt budget per window.
	DefaultMaxAttempts = 5

	// DefaultWindow is the default sliding window size.
	DefaultWindow = 15 * time.Minute
)

// AttemptLimiter bounds attempts per identifier inside a sliding window.
// Identifiers are opaque (usernames, IPs); budgets for different identifiers
// are fully independent.
type AttemptLimiter interface {
	// CheckAndRecord atomically checks the attempt budget for an identifier
	// and, when not exhausted, records the current attempt. Returns true when
	// the identifier is limited (the attempt was NOT recorded). This is the
	// only race-free way to admit an attempt.
	CheckAndRecord(ctx context.Context, identifier string, maxAttempts int, window time.Duration) (bool, error)

	// IsRateLimited reports whether the identifier's budget is exhausted
	// without recording anything.
	//
	// Deprecated: racy when paired with RecordAttempt under concurrency; new
	// call sites must use CheckAndRecord.
	IsRateLimited(ctx context.Context, identifier string, maxAttempts int, window time.Duration) (bool, error)

	// RecordAttempt records an attempt without checking the budget.
	//
	// Deprecated: racy when paired with IsRateLimited under concurrency; new
	// call sites must use CheckAndRecord.
	RecordAttempt(ctx context.Context, identifier string, window time.Duration) error

	// ClearAttempts resets the identifier's budget, e.g. after a successful
	// login.
	ClearAttempts(ctx context.Context, identifier string) error

	// CleanupStaleEntries removes state for identifiers with no recent
	// attempts and returns how many were removed. Intended for maintenance
	// jobs; backends whose entries self-expire may return 0.
	CleanupStaleEntries(ctx context.Context) (int, error)

	// Close releases backend resources and stops background maintenance.
	Close() error
}

// RetryAfterHint estimates how long a limited caller should wait. Without the
// exact timestamps it assumes the window must drain fully, which is the safe
// upper bound.
func RetryAfterHint(window time.Duration) time.Duration {
	if window <= 0 {
		return DefaultWindow
	}
	return window
}

// Admit runs CheckAndRecord and converts a limited outcome into a
// *auth.RateLimitedError carrying a retry-after hint. Login flows call this
// before checking credentials.
func Admit(ctx context.Context, limiter AttemptLimiter, identifier string, maxAttempts int, window time.Duration) error {
	limited, err := limiter.CheckAndRecord(ctx, identifier, maxAttempts, window)
	if err != nil {
		return err
	}
	if limited {
		return auth.NewRateLimitedError(identifier, RetryAfterHint(window))
	}
	return nil
}
