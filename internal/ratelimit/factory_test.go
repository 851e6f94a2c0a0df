package ratelimit

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/authcore/internal/config"
)

func TestNew_NoRedisSelectsMemory(t *testing.T) {
	l := New(&config.Config{}, nil)
	defer func() { _ = l.Close() }()

	_, ok := l.(*MemoryLimiter)
	assert.True(t, ok)
}

func TestNew_RedisAddressSelectsRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	l := New(&config.Config{RedisAddress: mr.Addr()}, nil)
	defer func() { _ = l.Close() }()

	_, ok := l.(*RedisLimiter)
	require.True(t, ok)
}

func TestNew_UnreachableRedisFallsBackToMemory(t *testing.T) {
	l := New(&config.Config{RedisAddress: "127.0.0.1:1"}, nil)
	defer func() { _ = l.Close() }()

	_, ok := l.(*MemoryLimiter)
	assert.True(t, ok)
}
