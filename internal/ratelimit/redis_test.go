package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisLimiter(t *testing.T, opts ...RedisLimiterOption) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	config := DefaultRedisLimiterConfig()
	config.Address = mr.Addr()

	l, err := NewRedisLimiter(config, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	return l, mr
}

func TestRedisLimiter_CheckAndRecord_ExactBudget(t *testing.T) {
	l, _ := newTestRedisLimiter(t)
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

func TestRedisLimiter_CheckAndRecord_WindowSlides(t *testing.T) {
	clock := newMutableClock()
	l, _ := newTestRedisLimiter(t, WithRedisClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := l.CheckAndRecord(ctx, "u1", 5, time.Minute)
		require.NoError(t, err)
	}

	limited, err := l.CheckAndRecord(ctx, "u1", 5, time.Minute)
	require.NoError(t, err)
	require.True(t, limited)

	// The script prunes by score, so advancing our clock past the window is
	// enough; the key TTL is miniredis' concern.
	clock.Advance(61 * time.Second)

	limited, err = l.CheckAndRecord(ctx, "u1", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, limited)
}

func TestRedisLimiter_ClearAttempts(t *testing.T) {
	l, _ := newTestRedisLimiter(t)
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

func TestRedisLimiter_IdentifiersAreIndependent(t *testing.T) {
	l, _ := newTestRedisLimiter(t)
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
	assert.False(t, limited)
}

func TestRedisLimiter_KeyCarriesWindowTTL(t *testing.T) {
	l, mr := newTestRedisLimiter(t)
	ctx := context.Background()

	_, err := l.CheckAndRecord(ctx, "u1", 5, time.Minute)
	require.NoError(t, err)

	ttl := mr.TTL(DefaultKeyPrefix + "u1")
	assert.Equal(t, time.Minute, ttl)
}

func TestRedisLimiter_CheckAndRecord_Concurrent(t *testing.T) {
	l, _ := newTestRedisLimiter(t)
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

func TestRedisLimiter_LegacyPair(t *testing.T) {
	l, _ := newTestRedisLimiter(t)
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

func TestRedisLimiter_Close_Idempotent(t *testing.T) {
	l, _ := newTestRedisLimiter(t)

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
}

func TestNewRedisLimiter_Unreachable(t *testing.T) {
	config := DefaultRedisLimiterConfig()
	config.Address = "127.0.0.1:1"
	config.DialTimeout = 100 * time.Millisecond

	_, err := NewRedisLimiter(config, nil)
	require.Error(t, err)
}
