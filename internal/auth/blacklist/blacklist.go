// Package blacklist tracks revoked token identifiers until their natural
// expiry. It provides an in-memory variant and a persistent variant that
// wraps the memory tier as a fast-path cache over a durable store.
package blacklist

import (
	"context"
	"time"
)

// Blacklist defines the revocation check interface consumed by the token
// service.
type Blacklist interface {
	// Add records a revoked jti until exp.
	Add(ctx context.Context, jti string, exp time.Time) error

	// Contains reports whether the jti is currently revoked.
	Contains(ctx context.Context, jti string) (bool, error)

	// Sweep removes expired entries and returns how many were removed.
	Sweep(ctx context.Context) (int, error)

	// Close releases background resources.
	Close() error
}

// Entry is a revoked token identifier with its natural expiry.
type Entry struct {
	JTI       string
	ExpiresAt time.Time
}

// RevocationStore is the durable store contract behind the persistent
// variant.
type RevocationStore interface {
	// Add persists a revoked jti with its expiry.
	Add(ctx context.Context, jti string, exp time.Time) error

	// IsBlacklisted reports whether the jti is present and unexpired.
	IsBlacklisted(ctx context.Context, jti string) (bool, error)

	// GetActive returns all unexpired entries.
	GetActive(ctx context.Context) ([]Entry, error)

	// CleanupExpired purges expired rows and returns how many were removed.
	CleanupExpired(ctx context.Context) (int64, error)

	// Close closes the store.
	Close() error
}
