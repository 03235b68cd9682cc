package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRateLimitKeyPrefix namespaces rate limit counters in a shared Redis.
const DefaultRateLimitKeyPrefix = "searchrank:ratelimit:"

// RedisRateLimitStore implements RateLimitStore with a fixed window counter
// in Redis, so several rankd replicas share one budget per key.
//
// Redis failures fail open: the request is allowed with a full quota and the
// error is counted in rate_limit_redis_errors_total.
type RedisRateLimitStore struct {
	client  *redis.Client
	prefix  string
	metrics *Metrics
}

// NewRedisRateLimitStore creates a store using DefaultRateLimitKeyPrefix.
func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{
		client: client,
		prefix: DefaultRateLimitKeyPrefix,
	}
}

// WithMetrics attaches metrics used to count fail-open events.
func (s *RedisRateLimitStore) WithMetrics(m *Metrics) *RedisRateLimitStore {
	s.metrics = m
	return s
}

// Allow increments the counter for key and reports whether it is within the limit.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int, int) {
	k := s.prefix + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	// NX keeps the window anchored at the first request.
	pipe.Do(ctx, "pexpire", k, config.WindowDuration.Milliseconds(), "NX")
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		if s.metrics != nil {
			s.metrics.IncRateLimitRedisErrors()
		}
		slog.WarnContext(ctx, "rate limit store unavailable, allowing request", "error", err)
		return true, config.RequestsPerWindow, 0
	}

	count := int(incr.Val())
	if count <= config.RequestsPerWindow {
		return true, config.RequestsPerWindow - count, 0
	}

	remainingWindow := ttl.Val()
	if remainingWindow <= 0 {
		remainingWindow = time.Second
	}
	return false, 0, retryAfterSeconds(remainingWindow)
}
