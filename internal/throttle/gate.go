package throttle

import (
	"sync"

	"go.uber.org/zap"
)

// DefaultMaxConnections is the default concurrent connection ceiling.
const DefaultMaxConnections = 1000

// Gate caps concurrent connections. It is evaluated once at connect time;
// rejected connects are not queued.
type Gate struct {
	max    int
	logger *zap.Logger

	mu   sync.Mutex
	live int
}

// NewGate creates a connection gate with the given ceiling. A non-positive
// ceiling falls back to the default.
func NewGate(max int, logger *zap.Logger) *Gate {
	if max <= 0 {
		max = DefaultMaxConnections
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{max: max, logger: logger}
}

// TryAcquire claims a connection slot. Returns false when the ceiling is
// reached.
func (g *Gate) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.live >= g.max {
		gateRejectedTotal.Inc()
		g.logger.Warn("connection rejected, ceiling reached",
			zap.Int("max_connections", g.max),
		)
		return false
	}

	g.live++
	gateLiveConnections.Set(float64(g.live))
	return true
}

// Release returns a connection slot. Calling Release more times than
// TryAcquire succeeded is a bug; the count never goes negative.
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.live > 0 {
		g.live--
	}
	gateLiveConnections.Set(float64(g.live))
}

// Live returns the current connection count. Used by tests.
func (g *Gate) Live() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.live
}
