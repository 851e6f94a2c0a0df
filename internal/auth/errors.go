// Package auth provides the shared error taxonomy for the authentication,
// revocation, and rate-limiting core.
package auth

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors surfaced by the core.
var (
	// ErrTokenExpired indicates that the token has expired.
	ErrTokenExpired = errors.New("token has expired")

	// ErrTokenRevoked indicates that the token has been revoked.
	ErrTokenRevoked = errors.New("token has been revoked")

	// ErrTokenInvalidSignature indicates that the token signature is invalid.
	ErrTokenInvalidSignature = errors.New("token signature is invalid")

	// ErrTokenMalformed indicates that the token is malformed.
	ErrTokenMalformed = errors.New("token is malformed")

	// ErrTokenTooOldForPreviousKey indicates that a token signed with the
	// previous key exceeds the rotation grace period.
	ErrTokenTooOldForPreviousKey = errors.New("token is too old for previous key")

	// ErrMissingJTI indicates that the token carries no jti claim.
	ErrMissingJTI = errors.New("token has no jti claim")

	// ErrMissingExpiry indicates that the token carries no exp claim.
	ErrMissingExpiry = errors.New("token has no exp claim")

	// ErrRateLimited indicates that the attempt budget is exhausted.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// ConfigurationError indicates missing or invalid settings. It is fatal at
// startup and never retried.
type ConfigurationError struct {
	Variable string
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Variable != "" {
		return fmt.Sprintf("configuration error (%s): %s", e.Variable, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(variable, message string) *ConfigurationError {
	return &ConfigurationError{Variable: variable, Message: message}
}

// IsConfigurationError checks if an error is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var configErr *ConfigurationError
	return errors.As(err, &configErr)
}

// AuthenticationError indicates an invalid, expired, revoked, or
// rotation-stale token. The public message never reveals which check failed;
// Detail carries the diagnostic reason for development mode.
type AuthenticationError struct {
	Detail string
	Cause  error
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	return "authentication failed"
}

// DetailedError returns the diagnostic form of the error. Only exposed to
// callers in development mode.
func (e *AuthenticationError) DetailedError() string {
	if e.Cause != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Detail, e.Cause)
	}
	return fmt.Sprintf("authentication failed: %s", e.Detail)
}

// Unwrap returns the underlying error.
func (e *AuthenticationError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *AuthenticationError) Is(target error) bool {
	_, ok := target.(*AuthenticationError)
	return ok || errors.Is(e.Cause, target)
}

// NewAuthenticationError creates a new AuthenticationError.
func NewAuthenticationError(detail string, cause error) *AuthenticationError {
	return &AuthenticationError{Detail: detail, Cause: cause}
}

// IsAuthenticationError checks if an error is an AuthenticationError.
func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

// RateLimitedError indicates that an identifier's attempt budget is
// exhausted. RetryAfter is a hint derived from the window size.
type RateLimitedError struct {
	Identifier string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// Unwrap returns the sentinel ErrRateLimited.
func (e *RateLimitedError) Unwrap() error {
	return ErrRateLimited
}

// NewRateLimitedError creates a new RateLimitedError.
func NewRateLimitedError(identifier string, retryAfter time.Duration) *RateLimitedError {
	return &RateLimitedError{Identifier: identifier, RetryAfter: retryAfter}
}
