package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/authcore/internal/auth"
	"github.com/vyrodovalexey/authcore/internal/auth/blacklist"
	"github.com/vyrodovalexey/authcore/internal/auth/settings"
	"github.com/vyrodovalexey/authcore/internal/config"
	"github.com/vyrodovalexey/authcore/internal/ratelimit"
)

func setSigningEnv(t *testing.T) {
	t.Helper()
	t.Setenv(settings.EnvSecret, strings.Repeat("s", settings.MinSecretLength))
}

func TestNew_MemoryDefaults(t *testing.T) {
	setSigningEnv(t)

	cfg := config.Load()
	cfg.RedisAddress = ""
	cfg.PostgresDSN = ""

	c, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	_, ok := c.Attempts.(*ratelimit.MemoryLimiter)
	assert.True(t, ok, "no remote store configured selects the memory limiter")

	_, ok = c.Blacklist.(*blacklist.Memory)
	assert.True(t, ok, "no remote store configured selects the memory blacklist")

	ctx := context.Background()
	raw, err := c.Tokens.Create(ctx, "user-1")
	require.NoError(t, err)

	claims, err := c.Tokens.Verify(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestNew_DevelopmentMode(t *testing.T) {
	setSigningEnv(t)

	cfg := config.Load()
	cfg.Environment = "development"
	cfg.LogLevel = "debug"

	c, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	require.True(t, c.Config.IsDevelopment())
}

func TestCore_AdmitLogin_Budget(t *testing.T) {
	setSigningEnv(t)

	cfg := config.Load()
	cfg.LoginMaxAttempts = 2
	cfg.LoginWindow = time.Minute

	c, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	ctx := context.Background()

	require.NoError(t, c.AdmitLogin(ctx, "u1"))
	require.NoError(t, c.AdmitLogin(ctx, "u1"))

	err = c.AdmitLogin(ctx, "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrRateLimited)

	var limitedErr *auth.RateLimitedError
	require.ErrorAs(t, err, &limitedErr)
	assert.Equal(t, time.Minute, limitedErr.RetryAfter)
}

func TestCore_ClearLoginAttempts(t *testing.T) {
	setSigningEnv(t)

	cfg := config.Load()
	cfg.LoginMaxAttempts = 1

	c, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	ctx := context.Background()

	require.NoError(t, c.AdmitLogin(ctx, "u1"))
	require.Error(t, c.AdmitLogin(ctx, "u1"))

	require.NoError(t, c.ClearLoginAttempts(ctx, "u1"))
	assert.NoError(t, c.AdmitLogin(ctx, "u1"))
}

func TestCore_GateUsesMaxConnections(t *testing.T) {
	setSigningEnv(t)

	cfg := config.Load()
	cfg.MaxConnections = 1

	c, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	require.True(t, c.Gate.TryAcquire())
	assert.False(t, c.Gate.TryAcquire())
}

func TestCore_ThrottleUsesConfiguredBurst(t *testing.T) {
	setSigningEnv(t)

	cfg := config.Load()
	cfg.ThrottleBurst = 2
	cfg.ThrottleRate = 0.001

	c, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	require.True(t, c.Throttle.Allow("c1"))
	require.True(t, c.Throttle.Allow("c1"))
	assert.False(t, c.Throttle.Allow("c1"))
}
