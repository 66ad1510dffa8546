package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker guards work that must not run on two instances at once. ok is false
// when another holder owns the lock.
type Locker interface {
	TryLock(ctx context.Context, ttl time.Duration) (unlock func(context.Context) error, ok bool, err error)
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

// LockClient is the part of a Redis client the sweep lock needs.
type LockClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisLocker is a SET NX lock with token-checked release.
type RedisLocker struct {
	client LockClient
	key    string
}

// NewRedisLocker builds a lock stored under key.
func NewRedisLocker(client LockClient, key string) *RedisLocker {
	return &RedisLocker{client: client, key: key}
}

// TryLock attempts to take the lock without blocking.
func (l *RedisLocker) TryLock(ctx context.Context, ttl time.Duration) (func(context.Context) error, bool, error) {
	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	if !acquired {
		return nil, false, nil
	}
	unlock := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			return fmt.Errorf("release lock %s: %w", l.key, err)
		}
		return nil
	}
	return unlock, true, nil
}
