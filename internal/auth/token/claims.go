// Package token mints, verifies, and revokes signed tokens. Verification
// accepts the current signing secret and, within a bounded grace period, the
// previous one, so secrets can rotate without invalidating in-flight
// sessions.
package token

import (
	"github.com/golang-jwt/jwt/v5"
)

// TypeAccess is the default token type tag.
const TypeAccess = "access"

// Claims is the signed token payload. Callers must treat anything beyond
// these fields as opaque.
type Claims struct {
	// TokenType tags the token purpose (e.g. "access").
	TokenType string `json:"type,omitempty"`

	// KeyVersion marks which secret signed the token.
	KeyVersion string `json:"key_version,omitempty"`

	jwt.RegisteredClaims
}

// JTI returns the unique token identifier.
func (c *Claims) JTI() string {
	return c.ID
}

// SubjectID returns the subject identifier.
func (c *Claims) SubjectID() string {
	return c.RegisteredClaims.Subject
}
