package ratelimit

import (
	"go.uber.org/zap"

	"github.com/vyrodovalexey/authcore/internal/config"
)

// New builds an attempt limiter from process configuration. A configured
// Redis address selects the distributed backend; construction failure falls
// back to the in-memory backend with a logged warning so a Redis outage at
// startup degrades scope (per-process limits) rather than availability.
func New(cfg *config.Config, logger *zap.Logger) AttemptLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.RedisAddress == "" {
		return NewMemoryLimiter(logger, WithCleanupInterval(DefaultCleanupInterval))
	}

	redisConfig := DefaultRedisLimiterConfig()
	redisConfig.Address = cfg.RedisAddress
	redisConfig.Password = cfg.RedisPassword
	redisConfig.DB = cfg.RedisDB

	limiter, err := NewRedisLimiter(redisConfig, logger)
	if err != nil {
		rateLimitFallbacksTotal.Inc()
		logger.Warn("redis rate limiter unavailable, falling back to in-memory limiter",
			zap.String("address", cfg.RedisAddress),
			zap.Error(err),
		)
		return NewMemoryLimiter(logger, WithCleanupInterval(DefaultCleanupInterval))
	}

	return limiter
}
