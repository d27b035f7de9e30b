package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redsync/redsync/v4"
	goredis "github.com/redis/go-redis/v9"
)

// fakeMutex plays a redsync mutex shared by every lock built on it.
type fakeMutex struct {
	owner     *RedisLock
	contender *RedisLock
	lockErr   error
	unlocks   int
}

func (f *fakeMutex) TryLockContext(context.Context) error {
	if f.lockErr != nil {
		return f.lockErr
	}
	if f.owner != nil {
		return &redsync.ErrTaken{Nodes: []int{0}}
	}
	f.owner = f.contender
	return nil
}

func (f *fakeMutex) UnlockContext(context.Context) (bool, error) {
	f.unlocks++
	f.owner = nil
	return true, nil
}

func (f *fakeMutex) Value() string { return "test-owner" }

func lockOn(mu *fakeMutex) *RedisLock {
	return &RedisLock{mu: mu}
}

func TestRedisLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	shared := &fakeMutex{}
	first, second := lockOn(shared), lockOn(shared)

	shared.contender = first
	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("expected first acquire to succeed: ok=%v err=%v", ok, err)
	}
	shared.contender = second
	if ok, err := second.Acquire(ctx); err != nil || ok {
		t.Fatalf("expected taken lock to report false without error: ok=%v err=%v", ok, err)
	}

	// a replica that never held the lock must not unlock it
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if shared.unlocks != 0 {
		t.Fatal("non-owner release unlocked the mutex")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("expected acquire after release to succeed")
	}
}

func TestRedisLockErrors(t *testing.T) {
	ctx := context.Background()

	failed := lockOn(&fakeMutex{lockErr: redsync.ErrFailed})
	if ok, err := failed.Acquire(ctx); ok || err != nil {
		t.Fatalf("ErrFailed should read as held elsewhere: ok=%v err=%v", ok, err)
	}

	down := lockOn(&fakeMutex{lockErr: errors.New("connection refused")})
	if ok, err := down.Acquire(ctx); ok || err == nil {
		t.Fatalf("expected redis failure to surface: ok=%v err=%v", ok, err)
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", time.Minute); err == nil {
		t.Fatal("expected error without client")
	}
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	if _, err := NewRedisLock(client, "", time.Minute); err == nil {
		t.Fatal("expected error without key")
	}
	if _, err := NewRedisLock(client, "cr:lock:cron-worker:test", 0); err != nil {
		t.Fatalf("expected lock with default ttl, got %v", err)
	}
}
