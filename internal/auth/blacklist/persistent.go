package blacklist

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultSweepInterval is the period of the background memory sweep.
	DefaultSweepInterval = 5 * time.Minute

	// storePurgeEvery is how many memory sweep cycles pass between durable
	// store purges (every 6th cycle at the default interval is ~30 minutes).
	storePurgeEvery = 6
)

// Persistent layers the memory tier over a durable RevocationStore. The
// memory tier always answers first; the store is consulted on misses and
// written through on every Add. A store failure never fails the operation:
// the in-memory entry still protects this process, and the failure is logged.
type Persistent struct {
	memory *Memory
	store  RevocationStore
	logger *zap.Logger

	sweepInterval time.Duration
	stopSweep     chan struct{}
	closeOnce     sync.Once
}

// PersistentOption configures a Persistent blacklist.
type PersistentOption func(*Persistent)

// WithSweepInterval overrides the background sweep period.
func WithSweepInterval(interval time.Duration) PersistentOption {
	return func(p *Persistent) {
		if interval > 0 {
			p.sweepInterval = interval
		}
	}
}

// NewPersistent creates a persistent blacklist and starts its background
// sweep loop. Call Close to stop the loop.
func NewPersistent(memory *Memory, store RevocationStore, logger *zap.Logger, opts ...PersistentOption) *Persistent {
	if logger == nil {
		logger = zap.NewNop()
	}
	if memory == nil {
		memory = NewMemory(logger)
	}

	p := &Persistent{
		memory:        memory,
		store:         store,
		logger:        logger,
		sweepInterval: DefaultSweepInterval,
		stopSweep:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	go p.sweepLoop()

	return p
}

// LoadActive warms the memory tier with all unexpired entries from the
// durable store. Intended to run once at startup.
func (p *Persistent) LoadActive(ctx context.Context) (int, error) {
	entries, err := p.store.GetActive(ctx)
	if err != nil {
		blacklistPersistenceErrors.Inc()
		return 0, err
	}

	for _, entry := range entries {
		if err := p.memory.Add(ctx, entry.JTI, entry.ExpiresAt); err != nil {
			return 0, err
		}
	}

	p.logger.Info("blacklist warmed from durable store",
		zap.Int("entries", len(entries)),
	)
	return len(entries), nil
}

// Add implements Blacklist.
func (p *Persistent) Add(ctx context.Context, jti string, exp time.Time) error {
	if err := p.memory.Add(ctx, jti, exp); err != nil {
		return err
	}

	if err := p.store.Add(ctx, jti, exp); err != nil {
		// Best effort: the memory entry still protects this process.
		blacklistPersistenceErrors.Inc()
		p.logger.Warn("failed to persist blacklist entry",
			zap.String("jti", jti),
			zap.Error(err),
		)
	} else {
		blacklistAdditionsTotal.WithLabelValues("store").Inc()
	}

	return nil
}

// Contains implements Blacklist. The memory tier is checked first; a store
// error degrades to the memory answer with a logged warning.
func (p *Persistent) Contains(ctx context.Context, jti string) (bool, error) {
	hit, err := p.memory.Contains(ctx, jti)
	if err != nil {
		return false, err
	}
	if hit {
		return true, nil
	}

	revoked, err := p.store.IsBlacklisted(ctx, jti)
	if err != nil {
		blacklistPersistenceErrors.Inc()
		p.logger.Warn("revocation store lookup failed, serving memory-only answer",
			zap.String("jti", jti),
			zap.Error(err),
		)
		return false, nil
	}

	if revoked {
		blacklistHitsTotal.WithLabelValues("store").Inc()
	}
	return revoked, nil
}

// Sweep implements Blacklist. Sweeps the memory tier only; the durable store
// purge runs on its own coarser schedule.
func (p *Persistent) Sweep(ctx context.Context) (int, error) {
	return p.memory.Sweep(ctx)
}

// Close implements Blacklist. Stops the sweep loop and closes the store.
// Safe to call multiple times.
func (p *Persistent) Close() error {
	p.closeOnce.Do(func() {
		close(p.stopSweep)
	})
	return p.store.Close()
}

// sweepLoop periodically sweeps the memory tier and, every storePurgeEvery
// cycles, asks the durable store to purge its own expired rows.
func (p *Persistent) sweepLoop() {
	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	cycle := 0
	for {
		select {
		case <-ticker.C:
			cycle++
			p.runSweepCycle(cycle%storePurgeEvery == 0)
		case <-p.stopSweep:
			return
		}
	}
}

// runSweepCycle performs one maintenance cycle. Store purges are idempotent,
// so a cycle interrupted by shutdown cannot corrupt shared state.
func (p *Persistent) runSweepCycle(purgeStore bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if removed, err := p.memory.Sweep(ctx); err == nil && removed > 0 {
		p.logger.Debug("blacklist memory sweep completed",
			zap.Int("removed", removed),
		)
	}

	if !purgeStore {
		return
	}

	removed, err := p.store.CleanupExpired(ctx)
	if err != nil {
		blacklistPersistenceErrors.Inc()
		p.logger.Warn("revocation store purge failed", zap.Error(err))
		return
	}
	if removed > 0 {
		blacklistSweptTotal.WithLabelValues("store").Add(float64(removed))
		p.logger.Debug("revocation store purge completed",
			zap.Int64("removed", removed),
		)
	}
}

// Ensure Persistent implements Blacklist.
var _ Blacklist = (*Persistent)(nil)
