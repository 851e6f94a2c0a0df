package blacklist

import (
	"go.uber.org/zap"

	"github.com/vyrodovalexey/authcore/internal/config"
)

// New builds a blacklist from process configuration. A configured Redis
// address wins over a Postgres DSN; neither selects the memory-only variant.
// Store construction failures degrade to memory-only operation with a logged
// warning rather than failing startup: revocation still protects the current
// process.
func New(cfg *config.Config, logger *zap.Logger) Blacklist {
	if logger == nil {
		logger = zap.NewNop()
	}

	memory := NewMemory(logger, WithMaxEntries(cfg.BlacklistMaxEntries))

	store := newStore(cfg, logger)
	if store == nil {
		return memory
	}

	return NewPersistent(memory, store, logger,
		WithSweepInterval(cfg.BlacklistSweepInterval))
}

// newStore builds the durable store selected by configuration, or nil when
// none is configured or construction fails.
func newStore(cfg *config.Config, logger *zap.Logger) RevocationStore {
	if cfg.RedisAddress != "" {
		redisConfig := DefaultRedisStoreConfig()
		redisConfig.Address = cfg.RedisAddress
		redisConfig.Password = cfg.RedisPassword
		redisConfig.DB = cfg.RedisDB

		store, err := NewRedisStore(redisConfig, logger)
		if err != nil {
			logger.Warn("revocation store unavailable, degrading to memory-only blacklist",
				zap.String("backend", "redis"),
				zap.String("address", cfg.RedisAddress),
				zap.Error(err),
			)
			return nil
		}
		return store
	}

	if cfg.PostgresDSN != "" {
		store, err := NewPostgresStore(cfg.PostgresDSN, logger)
		if err != nil {
			logger.Warn("revocation store unavailable, degrading to memory-only blacklist",
				zap.String("backend", "postgres"),
				zap.Error(err),
			)
			return nil
		}
		return store
	}

	return nil
}
