// Package core assembles the authentication, revocation, and rate-limiting
// components from one process configuration. Callers construct a Core at
// startup and hand its parts to the HTTP/WebSocket layer.
package core

import (
	"context"

	"github.com/vyrodovalexey/authcore/internal/auth/blacklist"
	"github.com/vyrodovalexey/authcore/internal/auth/settings"
	"github.com/vyrodovalexey/authcore/internal/auth/token"
	"github.com/vyrodovalexey/authcore/internal/config"
	"github.com/vyrodovalexey/authcore/internal/observability/logging"
	"github.com/vyrodovalexey/authcore/internal/ratelimit"
	"github.com/vyrodovalexey/authcore/internal/realtime"
	"github.com/vyrodovalexey/authcore/internal/throttle"
)

// Core bundles the subsystem components built from one configuration.
type Core struct {
	Config    *config.Config
	Logger    *logging.Logger
	Settings  *settings.Cache
	Blacklist blacklist.Blacklist
	Tokens    *token.Service
	Attempts  ratelimit.AttemptLimiter
	Throttle  *throttle.Throttle
	Gate      *throttle.Gate
	Hub       *realtime.Hub
}

// New builds a Core from process configuration. A nil config loads from the
// environment.
func New(cfg *config.Config) (*Core, error) {
	if cfg == nil {
		cfg = config.Load()
	}

	logger, err := logging.NewLogger(loggingConfig(cfg))
	if err != nil {
		return nil, err
	}
	zl := logger.Logger

	cache := settings.NewCache()
	bl := blacklist.New(cfg, zl)
	tokens := token.NewService(cache, bl, zl,
		token.WithDevelopmentMode(cfg.IsDevelopment()))
	attempts := ratelimit.New(cfg, zl)

	th := throttle.New(zl,
		throttle.WithRate(cfg.ThrottleRate),
		throttle.WithBurst(cfg.ThrottleBurst),
	)
	gate := throttle.NewGate(cfg.MaxConnections, zl)

	return &Core{
		Config:    cfg,
		Logger:    logger,
		Settings:  cache,
		Blacklist: bl,
		Tokens:    tokens,
		Attempts:  attempts,
		Throttle:  th,
		Gate:      gate,
		Hub:       realtime.NewHub(th, gate, zl),
	}, nil
}

// loggingConfig maps process configuration onto the logger. Development mode
// switches to the human-readable console format.
func loggingConfig(cfg *config.Config) *logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = logging.Level(cfg.LogLevel)
	if cfg.IsDevelopment() {
		lc.Format = logging.FormatConsole
		lc.Development = true
	}
	return lc
}

// AdmitLogin applies the configured login attempt budget to an identifier.
// Returns a *auth.RateLimitedError when the budget is exhausted.
func (c *Core) AdmitLogin(ctx context.Context, identifier string) error {
	return ratelimit.Admit(ctx, c.Attempts, identifier,
		c.Config.LoginMaxAttempts, c.Config.LoginWindow)
}

// ClearLoginAttempts resets an identifier's budget after a successful login.
func (c *Core) ClearLoginAttempts(ctx context.Context, identifier string) error {
	return c.Attempts.ClearAttempts(ctx, identifier)
}

// Close releases every component holding background resources.
func (c *Core) Close() error {
	_ = c.Hub.Close()
	_ = c.Attempts.Close()
	return c.Blacklist.Close()
}
