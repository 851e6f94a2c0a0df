package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultKeyPrefix namespaces attempt keys in Redis.
const DefaultKeyPrefix = "ratelimit:attempts:"

// checkAndRecordScript atomically prunes the trailing window, checks the
// budget, and records the attempt. One round trip; no interleaving between
// the read and the write is possible.
//
// KEYS[1] = attempts sorted set for the identifier
// ARGV[1] = max_attempts, ARGV[2] = window_ms, ARGV[3] = now_ms,
// ARGV[4] = nonce (uniquifies members sharing a millisecond)
// Returns {blocked 0|1, count}.
var checkAndRecordScript = redis.NewScript(`
local key = KEYS[1]
local max_attempts = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])
local nonce = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now_ms - window_ms)

local count = redis.call('ZCARD', key)
if count >= max_attempts then
	return {1, count}
end

redis.call('ZADD', key, now_ms, now_ms .. ':' .. nonce)
redis.call('PEXPIRE', key, window_ms)
return {0, count + 1}
`)

// RedisLimiterConfig holds configuration for the Redis attempt limiter.
type RedisLimiterConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string

	// DialTimeout bounds the construction-time connectivity probe.
	DialTimeout time.Duration
}

// DefaultRedisLimiterConfig returns a RedisLimiterConfig with default values.
func DefaultRedisLimiterConfig() *RedisLimiterConfig {
	return &RedisLimiterConfig{
		Address:     "localhost:6379",
		Prefix:      DefaultKeyPrefix,
		DialTimeout: 5 * time.Second,
	}
}

// RedisLimiter implements AttemptLimiter on Redis. One sorted set per
// identifier, scored by attempt time in milliseconds, with a TTL of one
// window so idle keys self-expire. All admission decisions run through a
// single Lua script for cross-process atomicity.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
	clock  func() time.Time
	nonce  func() string

	mu     sync.Mutex
	closed bool
}

// RedisLimiterOption configures a RedisLimiter.
type RedisLimiterOption func(*RedisLimiter)

// WithRedisClock overrides the time source. Used by tests.
func WithRedisClock(clock func() time.Time) RedisLimiterOption {
	return func(l *RedisLimiter) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// NewRedisLimiter creates a Redis attempt limiter and verifies connectivity.
func NewRedisLimiter(config *RedisLimiterConfig, logger *zap.Logger, opts ...RedisLimiterOption) (*RedisLimiter, error) {
	if config == nil {
		config = DefaultRedisLimiterConfig()
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
		prefix = DefaultKeyPrefix
	}

	l := &RedisLimiter{
		client: client,
		prefix: prefix,
		logger: logger,
		clock:  time.Now,
		nonce:  uuid.NewString,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// key namespaces an identifier.
func (l *RedisLimiter) key(identifier string) string {
	return l.prefix + identifier
}

// CheckAndRecord implements AttemptLimiter.
func (l *RedisLimiter) CheckAndRecord(ctx context.Context, identifier string, maxAttempts int, window time.Duration) (bool, error) {
	nowMs := l.clock().UnixMilli()

	result, err := checkAndRecordScript.Run(ctx, l.client,
		[]string{l.key(identifier)},
		maxAttempts,
		window.Milliseconds(),
		nowMs,
		l.nonce(),
	).Result()
	if err != nil {
		rateLimitErrorsTotal.WithLabelValues(backendRedis).Inc()
		return false, fmt.Errorf("check-and-record script error: %w", err)
	}

	blocked, _, err := parseScriptResult(result)
	if err != nil {
		return false, err
	}

	if blocked {
		rateLimitChecksTotal.WithLabelValues(backendRedis, outcomeLimited).Inc()
	} else {
		rateLimitChecksTotal.WithLabelValues(backendRedis, outcomeAllowed).Inc()
	}
	return blocked, nil
}

// IsRateLimited implements AttemptLimiter.
func (l *RedisLimiter) IsRateLimited(ctx context.Context, identifier string, maxAttempts int, window time.Duration) (bool, error) {
	nowMs := l.clock().UnixMilli()
	key := l.key(identifier)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", nowMs-window.Milliseconds()))
	card := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		rateLimitErrorsTotal.WithLabelValues(backendRedis).Inc()
		return false, fmt.Errorf("rate limit lookup error: %w", err)
	}

	return card.Val() >= int64(maxAttempts), nil
}

// RecordAttempt implements AttemptLimiter.
func (l *RedisLimiter) RecordAttempt(ctx context.Context, identifier string, window time.Duration) error {
	nowMs := l.clock().UnixMilli()
	key := l.key(identifier)

	pipe := l.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(nowMs),
		Member: fmt.Sprintf("%d:%s", nowMs, l.nonce()),
	})
	pipe.PExpire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		rateLimitErrorsTotal.WithLabelValues(backendRedis).Inc()
		return fmt.Errorf("record attempt error: %w", err)
	}
	return nil
}

// ClearAttempts implements AttemptLimiter.
func (l *RedisLimiter) ClearAttempts(ctx context.Context, identifier string) error {
	if err := l.client.Del(ctx, l.key(identifier)).Err(); err != nil {
		rateLimitErrorsTotal.WithLabelValues(backendRedis).Inc()
		return fmt.Errorf("clear attempts error: %w", err)
	}
	rateLimitClearsTotal.WithLabelValues(backendRedis).Inc()
	return nil
}

// CleanupStaleEntries implements AttemptLimiter. Keys carry a TTL of one
// window, so stale identifiers self-expire and there is nothing to sweep.
func (l *RedisLimiter) CleanupStaleEntries(ctx context.Context) (int, error) {
	return 0, ctx.Err()
}

// Close implements AttemptLimiter. Idempotent.
func (l *RedisLimiter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.client.Close()
}

// parseScriptResult decodes {blocked, count} from the Lua script.
func parseScriptResult(result interface{}) (blocked bool, count int64, err error) {
	values, ok := result.([]interface{})
	if !ok || len(values) < 2 {
		return false, 0, fmt.Errorf("unexpected script result format: %v", result)
	}

	if v, ok := values[0].(int64); ok && v == 1 {
		blocked = true
	}
	if v, ok := values[1].(int64); ok {
		count = v
	}
	return blocked, count, nil
}

// Ensure RedisLimiter implements AttemptLimiter.
var _ AttemptLimiter = (*RedisLimiter)(nil)
