package blacklist

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxEntries bounds the memory tier.
const DefaultMaxEntries = 10000

// Memory is an insertion-ordered, mutex-guarded blacklist. Expired entries
// are swept opportunistically on every mutation and lookup; when the entry
// count exceeds the configured maximum, the oldest insertions are evicted
// first.
type Memory struct {
	logger     *zap.Logger
	maxEntries int
	clock      func() time.Time

	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List
}

// memoryEntry is a list element payload.
type memoryEntry struct {
	jti       string
	expiresAt time.Time
}

// MemoryOption configures a Memory blacklist.
type MemoryOption func(*Memory)

// WithMaxEntries overrides the maximum entry count.
func WithMaxEntries(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.maxEntries = n
		}
	}
}

// WithMemoryClock injects a clock for tests.
func WithMemoryClock(clock func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.clock = clock
	}
}

// NewMemory creates an in-memory blacklist.
func NewMemory(logger *zap.Logger, opts ...MemoryOption) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Memory{
		logger:     logger,
		maxEntries: DefaultMaxEntries,
		clock:      time.Now,
		items:      make(map[string]*list.Element),
		order:      list.New(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Add implements Blacklist. Already-expired tokens are accepted and dropped
// on the next sweep; inserting them keeps revocation idempotent.
func (m *Memory) Add(_ context.Context, jti string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked()

	if elem, exists := m.items[jti]; exists {
		elem.Value.(*memoryEntry).expiresAt = exp
		blacklistAdditionsTotal.WithLabelValues("memory").Inc()
		return nil
	}

	elem := m.order.PushBack(&memoryEntry{jti: jti, expiresAt: exp})
	m.items[jti] = elem

	for m.order.Len() > m.maxEntries {
		m.evictOldestLocked()
	}

	blacklistAdditionsTotal.WithLabelValues("memory").Inc()
	blacklistSizeGauge.Set(float64(m.order.Len()))
	return nil
}

// Contains implements Blacklist.
func (m *Memory) Contains(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked()

	_, ok := m.items[jti]
	if ok {
		blacklistHitsTotal.WithLabelValues("memory").Inc()
	}
	return ok, nil
}

// Sweep implements Blacklist.
func (m *Memory) Sweep(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(), nil
}

// Close implements Blacklist. The memory tier holds no background resources.
func (m *Memory) Close() error {
	return nil
}

// Len returns the current entry count.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

// Reset removes all entries. Used for test isolation.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]*list.Element)
	m.order.Init()
	blacklistSizeGauge.Set(0)
}

// sweepLocked removes expired entries. Must be called with the lock held.
func (m *Memory) sweepLocked() int {
	now := m.clock()
	removed := 0

	var next *list.Element
	for elem := m.order.Front(); elem != nil; elem = next {
		next = elem.Next()
		entry := elem.Value.(*memoryEntry)
		if now.After(entry.expiresAt) {
			m.removeLocked(elem)
			removed++
		}
	}

	if removed > 0 {
		blacklistSweptTotal.WithLabelValues("memory").Add(float64(removed))
		blacklistSizeGauge.Set(float64(m.order.Len()))
	}
	return removed
}

// evictOldestLocked drops the oldest insertion. Must be called with the lock
// held.
func (m *Memory) evictOldestLocked() {
	elem := m.order.Front()
	if elem == nil {
		return
	}
	m.removeLocked(elem)
	blacklistEvictionsTotal.Inc()
	m.logger.Debug("blacklist evicted oldest entry",
		zap.String("jti", elem.Value.(*memoryEntry).jti),
	)
}

// removeLocked removes an element. Must be called with the lock held.
func (m *Memory) removeLocked(elem *list.Element) {
	m.order.Remove(elem)
	delete(m.items, elem.Value.(*memoryEntry).jti)
}

// Ensure Memory implements Blacklist.
var _ Blacklist = (*Memory)(nil)
