package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/onnwee/searchrank/internal/ranking"
	"github.com/onnwee/searchrank/internal/tracing"
)

// DefaultKeyPrefix namespaces stored info keys in a shared Redis.
const DefaultKeyPrefix = "searchrank:stored:"

// RedisStore keeps StoredInfo values in Redis as CBOR blobs.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store. A ttl <= 0 stores keys
// without expiry.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

// Get returns the info stored under id, or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, id string) (_ ranking.StoredInfo, err error) {
	if id == "" {
		return ranking.StoredInfo{}, ErrEmptyID
	}
	ctx, endSpan := tracing.StartStoreSpan(ctx, "redis", tracing.StoreOperationGet)
	defer func() {
		if errors.Is(err, ErrNotFound) {
			endSpan(nil)
			return
		}
		endSpan(err)
	}()

	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ranking.StoredInfo{}, ErrNotFound
	}
	if err != nil {
		return ranking.StoredInfo{}, fmt.Errorf("redis get %s: %w", id, err)
	}
	return Decode(data)
}

// Put stores info under id, replacing any previous value.
func (s *RedisStore) Put(ctx context.Context, id string, info ranking.StoredInfo) (err error) {
	if id == "" {
		return ErrEmptyID
	}
	ctx, endSpan := tracing.StartStoreSpan(ctx, "redis", tracing.StoreOperationPut)
	defer func() { endSpan(err) }()

	data, err := Encode(info)
	if err != nil {
		return err
	}
	ttl := s.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err = s.client.Set(ctx, s.key(id), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", id, err)
	}
	return nil
}

// HealthCheck pings Redis.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
