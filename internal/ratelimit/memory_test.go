package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mutableClock is a settable time source.
type mutableClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMutableClock() *mutableClock {
	return &mutableClock{now: time.Now()}
}

func (c *mutableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mutableClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryLimiter_CheckAndRecord_ExactBudget(t *testing.T) {
	l := NewMemoryLimiter(nil)
	defer func() { _ = l.Close() }()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		limited, err := l.CheckAndRecord(ctx, "u1", 5, time.Minute)
		require.NoError(t, err)
		assert.False(t, limited, "attempt %d should be allowed", i+1)
	}

	limited, err := l.CheckAndRecord(ctx, "u1", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, limited, "attempt 6 should be limited")
}

func TestMemoryLimiter_CheckAndRecord_WindowSlides(t *testing.T) {
	clock := newMutableClock()
	l := NewMemoryLimiter(nil, WithMemoryClock(clock.Now))
	defer func() { _ = l.Close() }()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := l.CheckAndRecord(ctx, "u1", 5, time.Minute)
		require.NoError(t, err)
	}

	limited, err := l.CheckAndRecord(ctx, "u1", 5, time.Minute)
	require.NoError(t, err)
	require.True(t, limited)

	clock.Advance(61 * time.Second)

	limited, err = l.CheckAndRecord(ctx, "u1", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, limited, "window should have slid past the old attempts")
}

func TestMemoryLimiter_CheckAndRecord_PartialSlide(t *testing.T) {
	clock := newMutableClock()
	l := NewMemoryLimiter(nil, WithMemoryClock(clock.Now))
	defer func() { _ = l.Close() }()
	ctx := context.Background()

	// Three attempts now, two attempts 30s later.
	for i := 0; i < 3; i++ {
		_, err := l.CheckAndRecord(ctx, "u1", 5, time.Minute)
		require.NoError(t, err)
	}
	clock.Advance(30 * time.Second)
	for i := 0; i < 2; i++ {
		_, err := l.CheckAndRecord(ctx, "u1", 5, time.Minute)
		require.NoError(t, err)
	}

	limited, err := l.CheckAndRecord(ctx, "u1", 5, time.Minute)
	require.NoError(t, err)
	require.True(t, limited)

	// 31s later the first three attempts left the window; the later two
	// still count.
	clock.Advance(31 * time.Second)

	limited, err = l.CheckAndRecord(ctx, "u1", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, limited)
}

func TestMemoryLimiter_ClearAttempts(t *testing.T) {
	l := NewMemoryLimiter(nil)
	defer func() { _ = l.Close() }()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := l.CheckAndRecord(ctx, "u1", 5, time.Minute)
		require.NoError(t, err)
	}

	require.NoError(t, l.ClearAttempts(ctx, "u1"))

	limited, err := l.CheckAndRecord(ctx, "u1", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, limited)
}

func TestMemoryLimiter_IdentifiersAreIndependent(t *testing.T) {
	l := NewMemoryLimiter(nil)
	defer func() { _ = l.Close() }()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := l.CheckAndRecord(ctx, "u1", 5, time.Minute)
		require.NoError(t, err)
	}

	limited, err := l.CheckAndRecord(ctx, "u1", 5, time.Minute)
	require.NoError(t, err)
	require.True(t, limited)

	limited, err = l.CheckAndRecord(ctx, "u2", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, limited, "one identifier's exhaustion must not affect another")
}

func TestMemoryLimiter_CheckAndRecord_Concurrent(t *testing.T) {
	l := NewMemoryLimiter(nil)
	defer func() { _ = l.Close() }()
	ctx := context.Background()

	const (
		budget     = 10
		goroutines = 10
		perWorker  = 5
	)

	var wg sync.WaitGroup
	var allowed int64
	var mu sync.Mutex

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				limited, err := l.CheckAndRecord(ctx, "u1", budget, time.Minute)
				assert.NoError(t, err)
				if err == nil && !limited {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(budget), allowed, "exactly the budget must be admitted")
}

func TestMemoryLimiter_LegacyPair(t *testing.T) {
	l := NewMemoryLimiter(nil)
	defer func() { _ = l.Close() }()
	ctx := context.Background()

	limited, err := l.IsRateLimited(ctx, "u1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, limited)

	require.NoError(t, l.RecordAttempt(ctx, "u1", time.Minute))
	require.NoError(t, l.RecordAttempt(ctx, "u1", time.Minute))

	limited, err = l.IsRateLimited(ctx, "u1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, limited)
}

func TestMemoryLimiter_CleanupStaleEntries(t *testing.T) {
	clock := newMutableClock()
	l := NewMemoryLimiter(nil, WithMemoryClock(clock.Now), WithStaleAfter(time.Hour))
	defer func() { _ = l.Close() }()
	ctx := context.Background()

	_, err := l.CheckAndRecord(ctx, "u1", 5, time.Minute)
	require.NoError(t, err)
	_, err = l.CheckAndRecord(ctx, "u2", 5, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 2, l.Len())

	clock.Advance(2 * time.Hour)
	_, err = l.CheckAndRecord(ctx, "u3", 5, time.Minute)
	require.NoError(t, err)

	removed, err := l.CleanupStaleEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, l.Len())
}

func TestMemoryLimiter_EmptyEntriesAreDeleted(t *testing.T) {
	clock := newMutableClock()
	l := NewMemoryLimiter(nil, WithMemoryClock(clock.Now))
	defer func() { _ = l.Close() }()
	ctx := context.Background()

	_, err := l.CheckAndRecord(ctx, "u1", 5, time.Minute)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)

	// The probe prunes the now-empty entry away entirely.
	limited, err := l.IsRateLimited(ctx, "u1", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, limited)
	assert.Equal(t, 0, l.Len())
}

func TestMemoryLimiter_ContextCancelled(t *testing.T) {
	l := NewMemoryLimiter(nil)
	defer func() { _ = l.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.CheckAndRecord(ctx, "u1", 5, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
