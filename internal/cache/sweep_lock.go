package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrLockHeld is returned when another process already holds the lock.
var ErrLockHeld = errors.New("lock is held by another process")

// Lock is a Redis SET NX lock identified by a random token.
type Lock struct {
	redis *RedisClient
	key   string
	ttl   time.Duration
}

// NewLock creates a lock on key that expires after ttl if never released.
func NewLock(redis *RedisClient, key string, ttl time.Duration) *Lock {
	return &Lock{redis: redis, key: key, ttl: ttl}
}

// Acquire takes the lock and returns a release func. It returns ErrLockHeld
// when the lock is taken.
func (l *Lock) Acquire(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.NewString()
	ok, err := l.redis.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return func(ctx context.Context) error {
		_, err := l.redis.DeleteIfEquals(ctx, l.key, token)
		return err
	}, nil
}
