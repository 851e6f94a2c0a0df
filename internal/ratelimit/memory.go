package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultStaleAfter is how long an identifier may sit idle before the
	// cleanup pass drops its state.
	DefaultStaleAfter = time.Hour

	// DefaultCleanupInterval is the period of the optional background cleanup
	// loop.
	DefaultCleanupInterval = 10 * time.Minute
)

// MemoryLimiter implements AttemptLimiter with a single mutex over a map of
// identifier to attempt timestamps. Suitable for single-process deployments;
// distributed deployments need the Redis backend.
type MemoryLimiter struct {
	logger *zap.Logger
	clock  func() time.Time

	mu       sync.Mutex
	attempts map[string][]time.Time

	staleAfter      time.Duration
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once
}

// MemoryOption configures a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithMemoryClock overrides the time source. Used by tests.
func WithMemoryClock(clock func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithStaleAfter overrides how long idle identifiers are retained.
func WithStaleAfter(d time.Duration) MemoryOption {
	return func(l *MemoryLimiter) {
		if d > 0 {
			l.staleAfter = d
		}
	}
}

// WithCleanupInterval enables the background cleanup loop with the given
// period. Without it, cleanup runs only via CleanupStaleEntries.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(l *MemoryLimiter) {
		if d > 0 {
			l.cleanupInterval = d
		}
	}
}

// NewMemoryLimiter creates an in-memory attempt limiter.
func NewMemoryLimiter(logger *zap.Logger, opts ...MemoryOption) *MemoryLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &MemoryLimiter{
		logger:      logger,
		clock:       time.Now,
		attempts:    make(map[string][]time.Time),
		staleAfter:  DefaultStaleAfter,
		stopCleanup: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.cleanupInterval > 0 {
		go l.cleanupLoop()
	}

	return l
}

// CheckAndRecord implements AttemptLimiter. The prune, the budget check, and
// the append all happen under one lock acquisition, so two concurrent callers
// can never both be admitted into the last slot.
func (l *MemoryLimiter) CheckAndRecord(ctx context.Context, identifier string, maxAttempts int, window time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.pruneLocked(identifier, now, window)
	if len(recent) >= maxAttempts {
		rateLimitChecksTotal.WithLabelValues(backendMemory, outcomeLimited).Inc()
		return true, nil
	}

	l.attempts[identifier] = append(recent, now)
	rateLimitChecksTotal.WithLabelValues(backendMemory, outcomeAllowed).Inc()
	return false, nil
}

// IsRateLimited implements AttemptLimiter.
func (l *MemoryLimiter) IsRateLimited(ctx context.Context, identifier string, maxAttempts int, window time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.pruneLocked(identifier, now, window)
	return len(recent) >= maxAttempts, nil
}

// RecordAttempt implements AttemptLimiter.
func (l *MemoryLimiter) RecordAttempt(ctx context.Context, identifier string, window time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.attempts[identifier] = append(l.pruneLocked(identifier, now, window), now)
	return nil
}

// ClearAttempts implements AttemptLimiter.
func (l *MemoryLimiter) ClearAttempts(ctx context.Context, identifier string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.attempts, identifier)
	rateLimitClearsTotal.WithLabelValues(backendMemory).Inc()
	return nil
}

// CleanupStaleEntries implements AttemptLimiter. Drops identifiers whose most
// recent attempt is older than the stale horizon.
func (l *MemoryLimiter) CleanupStaleEntries(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	horizon := l.clock().Add(-l.staleAfter)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for identifier, timestamps := range l.attempts {
		if len(timestamps) == 0 || timestamps[len(timestamps)-1].Before(horizon) {
			delete(l.attempts, identifier)
			removed++
		}
	}

	if removed > 0 {
		rateLimitCleanupRemovedTotal.WithLabelValues(backendMemory).Add(float64(removed))
	}
	return removed, nil
}

// Close implements AttemptLimiter. Safe to call multiple times.
func (l *MemoryLimiter) Close() error {
	l.closeOnce.Do(func() {
		close(l.stopCleanup)
	})
	return nil
}

// Len returns the number of tracked identifiers. Used by tests.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.attempts)
}

// pruneLocked drops timestamps older than the trailing window and writes the
// survivors back, deleting the identifier entirely when none survive. Caller
// must hold the mutex.
func (l *MemoryLimiter) pruneLocked(identifier string, now time.Time, window time.Duration) []time.Time {
	timestamps := l.attempts[identifier]
	cutoff := now.Add(-window)

	// Timestamps are appended in order, so find the first survivor.
	keep := 0
	for keep < len(timestamps) && !timestamps[keep].After(cutoff) {
		keep++
	}

	recent := timestamps[keep:]
	if len(recent) == 0 {
		delete(l.attempts, identifier)
		return nil
	}
	l.attempts[identifier] = recent
	return recent
}

// cleanupLoop periodically drops stale identifiers until Close.
func (l *MemoryLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed, _ := l.CleanupStaleEntries(context.Background())
			if removed > 0 {
				l.logger.Debug("rate limit cleanup completed",
					zap.Int("removed", removed),
				)
			}
		case <-l.stopCleanup:
			return
		}
	}
}

// Ensure MemoryLimiter implements AttemptLimiter.
var _ AttemptLimiter = (*MemoryLimiter)(nil)
