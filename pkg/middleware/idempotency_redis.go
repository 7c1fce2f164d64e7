package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingMarker = "pending"

// RedisIdempotencyStore shares idempotency claims between replicas. A claim
// is a SETNX of a pending marker, replaced by the JSON response on success.
type RedisIdempotencyStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisIdempotencyStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisIdempotencyStore) Claim(ctx context.Context, key string) (*CachedResponse, error) {
	redisKey := s.prefix + key
	claimed, err := s.client.SetNX(ctx, redisKey, pendingMarker, PendingClaimTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("claim idempotency key: %w", err)
	}
	if claimed {
		return nil, nil
	}

	raw, err := s.client.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; treat as busy so the client retries.
		return nil, ErrRequestInFlight
	}
	if err != nil {
		return nil, fmt.Errorf("read idempotency key: %w", err)
	}
	if string(raw) == pendingMarker {
		return nil, ErrRequestInFlight
	}

	var cached CachedResponse
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, fmt.Errorf("decode idempotent response: %w", err)
	}
	return &cached, nil
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, key string, response *CachedResponse) error {
	raw, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("encode idempotent response: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store idempotent response: %w", err)
	}
	return nil
}

// releasePendingScript deletes the key only while it still holds the
// pending marker, so a completed response is never dropped.
var releasePendingScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	end
	return 0
`)

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := releasePendingScript.Run(ctx, s.client, []string{s.prefix + key}, pendingMarker).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// Stop is a no-op; the Redis client is closed with the other connections.
func (s *RedisIdempotencyStore) Stop() {}
