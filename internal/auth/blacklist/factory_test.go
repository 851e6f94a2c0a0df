package blacklist

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/authcore/internal/config"
)

func TestNew_NoStoreSelectsMemory(t *testing.T) {
	bl := New(&config.Config{}, nil)
	defer func() { _ = bl.Close() }()

	_, ok := bl.(*Memory)
	assert.True(t, ok)
}

func TestNew_RedisAddressSelectsPersistent(t *testing.T) {
	mr := miniredis.RunT(t)

	bl := New(&config.Config{RedisAddress: mr.Addr()}, nil)
	defer func() { _ = bl.Close() }()

	_, ok := bl.(*Persistent)
	require.True(t, ok)
}

func TestNew_UnreachableRedisDegradesToMemory(t *testing.T) {
	bl := New(&config.Config{RedisAddress: "127.0.0.1:1"}, nil)
	defer func() { _ = bl.Close() }()

	_, ok := bl.(*Memory)
	assert.True(t, ok)
}
