package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our owner id.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	lease  time.Duration
	wait   time.Duration
}

func NewRedisLocker(client redis.UniversalClient, prefix string, lease, wait time.Duration) *RedisLocker {
	return &RedisLocker{
		client: client,
		prefix: prefix,
		lease:  lease,
		wait:   wait,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	redisKey := l.prefix + key
	owner := uuid.NewString()

	err := retry(ctx, key, l.wait, func(ctx context.Context) (bool, error) {
		ok, err := l.client.SetNX(ctx, redisKey, owner, l.lease).Result()
		if err != nil {
			return false, fmt.Errorf("set lock: %w", err)
		}
		return ok, nil
	})
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{redisKey}, owner).Err(); err != nil {
			return fmt.Errorf("release lock: %w", err)
		}
		return nil
	}, nil
}
