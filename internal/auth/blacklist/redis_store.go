package blacklist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStoreConfig holds configuration for the Redis revocation store.
type RedisStoreConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string

	// DialTimeout bounds the construction-time connectivity probe.
	DialTimeout time.Duration
}

// DefaultRedisStoreConfig returns a RedisStoreConfig with default values.
func DefaultRedisStoreConfig() *RedisStoreConfig {
	return &RedisStoreConfig{
		Address:     "localhost:6379",
		Prefix:      "revoked:",
		DialTimeout: 5 * time.Second,
	}
}

// RedisStore implements RevocationStore on Redis. Each jti is written as a
// key with a TTL equal to the token's remaining life, plus a sorted-set
// index scored by expiry that serves GetActive and CleanupExpired.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
	clock  func() time.Time

	mu     sync.Mutex
	closed bool
}

// NewRedisStore creates a Redis revocation store and verifies connectivity.
func NewRedisStore(config *RedisStoreConfig, logger *zap.Logger) (*RedisStore, error) {
	if config == nil {
		config = DefaultRedisStoreConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})

	dialTimeout := config.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := config.Prefix
	if prefix == "" {
		prefix = "revoked:"
	}

	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: logger,
		clock:  time.Now,
	}, nil
}

// indexKey is the sorted set of jti -> expiry unix seconds.
func (s *RedisStore) indexKey() string {
	return s.prefix + "index"
}

// entryKey is the per-jti key carrying the self-expiring marker.
func (s *RedisStore) entryKey(jti string) string {
	return s.prefix + jti
}

// Add implements RevocationStore.
func (s *RedisStore) Add(ctx context.Context, jti string, exp time.Time) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error before redis add: %w", err)
	}

	ttl := exp.Sub(s.clock())
	if ttl <= 0 {
		// Already expired: nothing to protect against.
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.entryKey(jti), 1, ttl)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(exp.Unix()), Member: jti})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis add error: %w", err)
	}

	return nil
}

// IsBlacklisted implements RevocationStore.
func (s *RedisStore) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context error before redis lookup: %w", err)
	}

	n, err := s.client.Exists(ctx, s.entryKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists error: %w", err)
	}
	return n > 0, nil
}

// GetActive implements RevocationStore.
func (s *RedisStore) GetActive(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error before redis range: %w", err)
	}

	now := s.clock().Unix()
	members, err := s.client.ZRangeByScoreWithScores(ctx, s.indexKey(), &redis.ZRangeBy{
		Min: fmt.Sprintf("(%d", now),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis range error: %w", err)
	}

	entries := make([]Entry, 0, len(members))
	for _, member := range members {
		jti, ok := member.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			JTI:       jti,
			ExpiresAt: time.Unix(int64(member.Score), 0),
		})
	}
	return entries, nil
}

// CleanupExpired implements RevocationStore. The per-jti keys self-expire via
// TTL; this removes their index rows.
func (s *RedisStore) CleanupExpired(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error before redis purge: %w", err)
	}

	now := s.clock().Unix()
	removed, err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%d", now)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis purge error: %w", err)
	}
	return removed, nil
}

// Close implements RevocationStore. Idempotent.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

// Ensure RedisStore implements RevocationStore.
var _ RevocationStore = (*RedisStore)(nil)
