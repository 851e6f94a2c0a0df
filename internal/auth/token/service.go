package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/authcore/internal/auth"
	"github.com/vyrodovalexey/authcore/internal/auth/blacklist"
	"github.com/vyrodovalexey/authcore/internal/auth/settings"
)

// Service mints, verifies, and revokes tokens using the cached signing
// settings and the revocation blacklist.
type Service struct {
	settings  *settings.Cache
	blacklist blacklist.Blacklist
	logger    *zap.Logger

	clock       func() time.Time
	newJTI      func() string
	development bool
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source. Used by tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithJTIGenerator overrides the jti generator. Used by tests.
func WithJTIGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newJTI = gen
		}
	}
}

// WithDevelopmentMode enables logging of detailed verification failure
// reasons. The errors returned to callers stay generic either way.
func WithDevelopmentMode(enabled bool) Option {
	return func(s *Service) {
		s.development = enabled
	}
}

// NewService creates a token service.
func NewService(cache *settings.Cache, bl blacklist.Blacklist, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = settings.NewCache()
	}
	if bl == nil {
		bl = blacklist.NewMemory(logger)
	}

	s := &Service{
		settings:  cache,
		blacklist: bl,
		logger:    logger,
		clock:     time.Now,
		newJTI:    uuid.NewString,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CreateOption configures a single Create call.
type CreateOption func(*createOptions)

type createOptions struct {
	ttl       time.Duration
	tokenType string
}

// WithTTL overrides the configured token lifetime for one token.
func WithTTL(ttl time.Duration) CreateOption {
	return func(o *createOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithTokenType overrides the default token type tag.
func WithTokenType(tokenType string) CreateOption {
	return func(o *createOptions) {
		if tokenType != "" {
			o.tokenType = tokenType
		}
	}
}

// Create mints a signed token for the given subject. Every token carries a
// fresh jti so it can be revoked individually, and the key version of the
// secret that signed it.
func (s *Service) Create(ctx context.Context, subject string, opts ...CreateOption) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context error before token creation: %w", err)
	}

	cfg, err := s.settings.Get()
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(cfg.Algorithm, "HS") {
		return "", auth.NewConfigurationError(settings.EnvAlgorithm,
			"asymmetric algorithms require key material this service does not manage")
	}

	o := createOptions{ttl: cfg.TokenLifetime, tokenType: TypeAccess}
	for _, opt := range opts {
		opt(&o)
	}

	now := s.clock()
	claims := &Claims{
		TokenType:  o.tokenType,
		KeyVersion: cfg.KeyVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        s.newJTI(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(o.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.GetSigningMethod(cfg.Algorithm), claims).SignedString(cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	tokensIssuedTotal.WithLabelValues(o.tokenType).Inc()
	s.logger.Debug("token issued",
		zap.String("subject", subject),
		zap.String("jti", claims.ID),
		zap.String("type", o.tokenType),
	)
	return signed, nil
}

// Verify validates a token and returns its claims. Verification tries the
// current secret first; a signature mismatch falls back to the previous
// secret when one is configured, bounded by the rotation max age measured
// from the token's iat. Every successful verification also checks the jti
// against the blacklist.
func (s *Service) Verify(ctx context.Context, raw string) (*Claims, error) {
	start := s.clock()
	claims, err := s.verify(ctx, raw)
	tokenVerifyDuration.Observe(s.clock().Sub(start).Seconds())
	tokenVerificationsTotal.WithLabelValues(verifyResult(err)).Inc()

	if err != nil && s.development {
		var authErr *auth.AuthenticationError
		if errors.As(err, &authErr) {
			s.logger.Info("token verification failed",
				zap.String("reason", authErr.DetailedError()),
			)
		}
	}
	return claims, err
}

func (s *Service) verify(ctx context.Context, raw string) (*Claims, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error before token verification: %w", err)
	}

	cfg, err := s.settings.Get()
	if err != nil {
		return nil, err
	}

	claims, parseErr := s.parse(raw, cfg.Secret, cfg.Algorithm, true)
	if parseErr != nil && errors.Is(parseErr, jwt.ErrTokenSignatureInvalid) && cfg.HasPreviousSecret() {
		prevClaims, prevErr := s.parse(raw, cfg.PreviousSecret, cfg.Algorithm, true)
		switch {
		case prevErr == nil:
			if err := s.checkRotationAge(prevClaims, cfg.RotationMaxAge); err != nil {
				return nil, err
			}
			previousKeyVerificationsTotal.Inc()
			s.logger.Debug("token verified with previous signing secret",
				zap.String("jti", prevClaims.ID),
			)
			claims, parseErr = prevClaims, nil
		case !errors.Is(prevErr, jwt.ErrTokenSignatureInvalid):
			// The previous secret matched but the claims failed, so that
			// failure is the truthful one to report.
			parseErr = prevErr
		}
	}
	if parseErr != nil {
		return nil, mapParseError(parseErr)
	}

	if claims.ID == "" {
		return nil, auth.NewAuthenticationError("token has no jti claim", auth.ErrMissingJTI)
	}

	revoked, err := s.blacklist.Contains(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return nil, auth.NewAuthenticationError("token has been revoked", auth.ErrTokenRevoked)
	}

	return claims, nil
}

// checkRotationAge rejects previous-key tokens older than the rotation grace
// period. Age is measured from the token's iat, so the bound holds no matter
// when the current secret was deployed.
func (s *Service) checkRotationAge(claims *Claims, maxAge time.Duration) error {
	if claims.IssuedAt == nil {
		return auth.NewAuthenticationError("previous-key token has no iat claim", auth.ErrTokenMalformed)
	}
	if s.clock().Sub(claims.IssuedAt.Time) > maxAge {
		return auth.NewAuthenticationError("previous-key token exceeds rotation grace period",
			auth.ErrTokenTooOldForPreviousKey)
	}
	return nil
}

// Revoke blacklists a token by jti until its expiry. The token's signature
// must verify (against either secret) but its expiry is not enforced here;
// an already-expired token needs no blacklist entry and returns false.
func (s *Service) Revoke(ctx context.Context, raw string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context error before token revocation: %w", err)
	}

	cfg, err := s.settings.Get()
	if err != nil {
		return false, err
	}

	claims, parseErr := s.parse(raw, cfg.Secret, cfg.Algorithm, false)
	if parseErr != nil && errors.Is(parseErr, jwt.ErrTokenSignatureInvalid) && cfg.HasPreviousSecret() {
		claims, parseErr = s.parse(raw, cfg.PreviousSecret, cfg.Algorithm, false)
	}
	if parseErr != nil {
		return false, mapParseError(parseErr)
	}

	if claims.ID == "" {
		return false, auth.NewAuthenticationError("token has no jti claim", auth.ErrMissingJTI)
	}
	if claims.ExpiresAt == nil {
		return false, auth.NewAuthenticationError("token has no exp claim", auth.ErrMissingExpiry)
	}
	if !claims.ExpiresAt.Time.After(s.clock()) {
		return false, nil
	}

	if err := s.blacklist.Add(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return false, fmt.Errorf("failed to blacklist token: %w", err)
	}

	tokenRevocationsTotal.Inc()
	s.logger.Info("token revoked",
		zap.String("jti", claims.ID),
		zap.Time("expires_at", claims.ExpiresAt.Time),
	)
	return true, nil
}

// parse decodes and optionally validates a token against one secret. The
// signing method is pinned to the configured algorithm so a token cannot
// select its own.
func (s *Service) parse(raw string, secret []byte, algorithm string, validate bool) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{algorithm}),
		jwt.WithTimeFunc(s.clock),
		jwt.WithExpirationRequired(),
	}
	if !validate {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// mapParseError converts golang-jwt failures into the shared error taxonomy.
// The public message stays generic; the cause carries the precise reason.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return auth.NewAuthenticationError("token has expired", auth.ErrTokenExpired)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return auth.NewAuthenticationError("token signature is invalid", auth.ErrTokenInvalidSignature)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return auth.NewAuthenticationError("token has no exp claim", auth.ErrMissingExpiry)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return auth.NewAuthenticationError("token is malformed", auth.ErrTokenMalformed)
	default:
		return auth.NewAuthenticationError("token is not valid", err)
	}
}

// verifyResult classifies a verification outcome for metrics.
func verifyResult(err error) string {
	switch {
	case err == nil:
		return resultValid
	case errors.Is(err, auth.ErrTokenExpired):
		return resultExpired
	case errors.Is(err, auth.ErrTokenRevoked):
		return resultRevoked
	default:
		return resultInvalid
	}
}
