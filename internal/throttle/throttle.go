// Package throttle bounds outbound message rate on long-lived connections
// with a per-connection token bucket, and caps concurrent connections with a
// connect-time gate. It protects connection bandwidth, not login attempts;
// attempt budgets live in the ratelimit package.
package throttle

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultBurst is the default bucket capacity.
	DefaultBurst = 20

	// DefaultRate is the default refill rate in tokens per second.
	DefaultRate = 10.0
)

// bucket is per-connection token state. Tokens refill continuously at the
// throttle rate, capped at burst, and never go negative.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// Throttle is a per-connection token-bucket message limiter. Connection IDs
// are opaque; each gets an independent bucket created on first use and
// removed by Release at teardown.
type Throttle struct {
	rate  float64
	burst float64

	logger *zap.Logger
	clock  func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// Option configures a Throttle.
type Option func(*Throttle)

// WithRate overrides the refill rate in tokens per second.
func WithRate(rate float64) Option {
	return func(t *Throttle) {
		if rate > 0 {
			t.rate = rate
		}
	}
}

// WithBurst overrides the bucket capacity.
func WithBurst(burst int) Option {
	return func(t *Throttle) {
		if burst > 0 {
			t.burst = float64(burst)
		}
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(clock func() time.Time) Option {
	return func(t *Throttle) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// New creates a message throttle.
func New(logger *zap.Logger, opts ...Option) *Throttle {
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Throttle{
		rate:    DefaultRate,
		burst:   DefaultBurst,
		logger:  logger,
		clock:   time.Now,
		buckets: make(map[string]*bucket),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Allow reports whether the connection may send one message now, consuming
// one token when it may. A new connection starts with a full bucket.
func (t *Throttle) Allow(connID string) bool {
	b := t.bucketFor(connID)
	now := t.clock()

	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * t.rate
		if b.tokens > t.burst {
			b.tokens = t.burst
		}
		b.lastRefill = now
	}

	if b.tokens < 1 {
		throttleDeniedTotal.Inc()
		return false
	}

	b.tokens--
	throttleAllowedTotal.Inc()
	return true
}

// Release drops the connection's bucket. Call at teardown so memory stays
// proportional to live connections.
func (t *Throttle) Release(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.buckets, connID)
}

// Len returns the number of tracked connections. Used by tests.
func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buckets)
}

// bucketFor returns the connection's bucket, creating a full one on first
// use.
func (t *Throttle) bucketFor(connID string) *bucket {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.buckets[connID]
	if !ok {
		b = &bucket{tokens: t.burst, lastRefill: t.clock()}
		t.buckets[connID] = b
	}
	return b
}
