package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLocked means another worker holds the unit.
var ErrLocked = errors.New("unit is locked by another worker")

// Locker grants exclusive, expiring ownership of a key.
type Locker interface {
	// Lock returns a release func, or ErrLocked when the key is held.
	Lock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// RedisLocker is a Locker on redislock, shared by every worker process that
// talks to the same Redis.
type RedisLocker struct {
	client *redislock.Client
}

// NewRedisLocker wraps rdb.
func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb)}
}

func (l *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLocked
	}
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		err := lock.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			// Expired under us; nothing to release.
			return nil
		}
		return err
	}, nil
}

// NopLocker always grants the lock. Used when Redis is not configured and
// only one process runs jobs.
type NopLocker struct{}

func (NopLocker) Lock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}
