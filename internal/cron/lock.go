package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	redsyncpool "github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredis "github.com/redis/go-redis/v9"

	"github.com/maisonlocation/costume-rental-backend/pkg/instance"
)

const defaultLockTTL = 10 * time.Minute

// Lock coordinates exclusive cron cycles across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// mutex is the part of *redsync.Mutex the lock drives.
type mutex interface {
	TryLockContext(ctx context.Context) error
	UnlockContext(ctx context.Context) (bool, error)
	Value() string
}

// RedisLock holds a redsync mutex for one cycle. Its TTL bounds how long a
// crashed worker can block the next cycle; the cycle's jobs must finish well
// within it.
type RedisLock struct {
	mu   mutex
	held bool
}

// NewRedisLock builds a single-attempt lock named key on client.
func NewRedisLock(client goredis.UniversalClient, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	rs := redsync.New(redsyncpool.NewPool(client))
	return &RedisLock{mu: rs.NewMutex(key,
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
		redsync.WithGenValueFunc(ownerToken),
	)}, nil
}

// ownerToken tags the lock value with this replica so a stuck lock can be
// traced in Redis.
func ownerToken() (string, error) {
	return fmt.Sprintf("%s:%d", instance.GetID(), time.Now().UnixNano()), nil
}

// Acquire reports false without error when another replica holds the lock.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	err := l.mu.TryLockContext(ctx)
	if err == nil {
		l.held = true
		return true, nil
	}
	var taken *redsync.ErrTaken
	if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
		return false, nil
	}
	return false, fmt.Errorf("acquire cron lock: %w", err)
}

// Release is a no-op unless Acquire succeeded. redsync only deletes the key
// when it still carries our value.
func (l *RedisLock) Release(ctx context.Context) error {
	if !l.held {
		return nil
	}
	l.held = false
	if _, err := l.mu.UnlockContext(ctx); err != nil && !errors.Is(err, redsync.ErrLockAlreadyExpired) {
		return fmt.Errorf("release cron lock %s: %w", l.mu.Value(), err)
	}
	return nil
}
