// Package settings provides TTL-cached signing settings loaded from the
// environment. Caching keeps environment parsing off the token hot path while
// still letting an operator-triggered rotation become visible without a
// process restart.
package settings

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/allisson/go-env"

	"github.com/vyrodovalexey/authcore/internal/auth"
)

// Environment variable names consumed by the cache.
const (
	EnvSecret         = "AUTHCORE_JWT_SECRET"
	EnvPreviousSecret = "AUTHCORE_JWT_PREVIOUS_SECRET"
	EnvAlgorithm      = "AUTHCORE_JWT_ALGORITHM"
	EnvLifetimeHours  = "AUTHCORE_TOKEN_LIFETIME_HOURS"
	EnvRotationMaxAge = "AUTHCORE_ROTATION_MAX_AGE_HOURS"
)

const (
	// MinSecretLength is the minimum length of the primary signing secret.
	MinSecretLength = 64

	// MinPreviousSecretLength is the minimum length of the previous signing
	// secret when one is configured.
	MinPreviousSecretLength = 32

	// DefaultTTL is how long a loaded snapshot stays fresh.
	DefaultTTL = 5 * time.Minute

	// DefaultAlgorithm is used when no algorithm is configured.
	DefaultAlgorithm = "HS256"

	// DefaultLifetimeHours is the default token lifetime.
	DefaultLifetimeHours = 24

	// DefaultRotationMaxAgeHours bounds previous-key acceptance.
	DefaultRotationMaxAgeHours = 72
)

// allowedAlgorithms is the explicit algorithm allow-list.
var allowedAlgorithms = map[string]bool{
	"HS256": true, "HS384": true, "HS512": true,
	"RS256": true, "RS384": true, "RS512": true,
	"ES256": true, "ES384": true, "ES512": true,
}

// Settings is an immutable snapshot of the signing configuration.
type Settings struct {
	// Secret is the current signing secret.
	Secret []byte

	// PreviousSecret is the prior signing secret kept for rotation, nil when
	// no rotation is in progress.
	PreviousSecret []byte

	// Algorithm is the signing algorithm name.
	Algorithm string

	// KeyVersion identifies the current secret. Derived from the secret so
	// it is stable across processes without exposing key material.
	KeyVersion string

	// TokenLifetime is the default token validity period.
	TokenLifetime time.Duration

	// RotationMaxAge bounds how old (by iat) a previous-key token may be and
	// still verify.
	RotationMaxAge time.Duration
}

// HasPreviousSecret reports whether a rotation fallback key is configured.
func (s *Settings) HasPreviousSecret() bool {
	return len(s.PreviousSecret) > 0
}

// Cache lazily loads Settings from the environment and serves a cached
// snapshot for up to TTL. Invalidate forces the next Get to re-read.
type Cache struct {
	ttl time.Duration

	mu       sync.RWMutex
	current  *Settings
	loadedAt time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the snapshot TTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// NewCache creates a settings cache. Nothing is loaded until the first Get.
func NewCache(opts ...Option) *Cache {
	c := &Cache{ttl: DefaultTTL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached settings snapshot, reloading from the environment
// when the snapshot is stale or has been invalidated.
func (c *Cache) Get() (*Settings, error) {
	c.mu.RLock()
	if c.current != nil && time.Since(c.loadedAt) <= c.ttl {
		s := c.current
		c.mu.RUnlock()
		return s, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have reloaded while we waited for the write lock.
	if c.current != nil && time.Since(c.loadedAt) <= c.ttl {
		return c.current, nil
	}

	loaded, err := load()
	if err != nil {
		return nil, err
	}

	c.current = loaded
	c.loadedAt = time.Now()
	return c.current, nil
}

// Invalidate clears the cached snapshot so the next Get re-reads the
// environment. Used by rotation tooling and tests.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
	c.loadedAt = time.Time{}
}

// load reads and validates settings from the environment.
func load() (*Settings, error) {
	secret := env.GetString(EnvSecret, "")
	if secret == "" {
		return nil, auth.NewConfigurationError(EnvSecret, "signing secret is not set")
	}
	if len(secret) < MinSecretLength {
		return nil, auth.NewConfigurationError(EnvSecret, "signing secret is shorter than the required minimum")
	}

	var previous []byte
	if prev := env.GetString(EnvPreviousSecret, ""); prev != "" {
		if len(prev) < MinPreviousSecretLength {
			return nil, auth.NewConfigurationError(EnvPreviousSecret, "previous signing secret is shorter than the required minimum")
		}
		previous = []byte(prev)
	}

	algorithm := env.GetString(EnvAlgorithm, DefaultAlgorithm)
	if !allowedAlgorithms[algorithm] {
		return nil, auth.NewConfigurationError(EnvAlgorithm, "algorithm is not in the allow-list")
	}

	lifetimeHours := env.GetInt(EnvLifetimeHours, DefaultLifetimeHours)
	if lifetimeHours <= 0 {
		return nil, auth.NewConfigurationError(EnvLifetimeHours, "token lifetime must be positive")
	}

	rotationHours := env.GetInt(EnvRotationMaxAge, DefaultRotationMaxAgeHours)
	if rotationHours <= 0 {
		return nil, auth.NewConfigurationError(EnvRotationMaxAge, "rotation max age must be positive")
	}

	return &Settings{
		Secret:         []byte(secret),
		PreviousSecret: previous,
		Algorithm:      algorithm,
		KeyVersion:     keyVersion(secret),
		TokenLifetime:  time.Duration(lifetimeHours) * time.Hour,
		RotationMaxAge: time.Duration(rotationHours) * time.Hour,
	}, nil
}

// keyVersion derives a short stable marker for a secret.
func keyVersion(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:4])
}
