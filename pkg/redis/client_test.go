package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/maisonlocation/costume-rental-backend/pkg/config"
)

func TestFixedWindowAllowBlocksAfterLimit(t *testing.T) {
	ctx := context.Background()
	mem := newMemoryCommands()
	client := &Client{cmds: mem}

	for i := 1; i <= 2; i++ {
		decision, err := client.FixedWindowAllow(ctx, "guest-booking:ip:1.2.3.4", 2, time.Minute)
		if err != nil {
			t.Fatalf("hit %d: unexpected error: %v", i, err)
		}
		if !decision.Allowed || decision.Count != int64(i) {
			t.Fatalf("hit %d: unexpected decision %+v", i, decision)
		}
	}
	if len(mem.expires) != 1 || mem.expires[0] != time.Minute {
		t.Fatalf("expected exactly one expire of 1m, got %v", mem.expires)
	}

	mem.pttl = 42 * time.Second
	decision, err := client.FixedWindowAllow(ctx, "guest-booking:ip:1.2.3.4", 2, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("expected third hit to be blocked")
	}
	if decision.ResetIn != 42*time.Second {
		t.Fatalf("expected reset from PTTL, got %s", decision.ResetIn)
	}
	if _, ok := mem.counters["cr:rate_limit:guest-booking:ip:1.2.3.4"]; !ok {
		t.Fatalf("expected counter under the rate limit namespace, got %v", mem.counters)
	}
}

func TestFixedWindowAllowFallsBackToWindow(t *testing.T) {
	mem := newMemoryCommands()
	client := &Client{cmds: mem}
	ctx := context.Background()

	if _, err := client.FixedWindowAllow(ctx, "login:email:x", 0, 5*time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decision, _ := client.FixedWindowAllow(ctx, "login:email:x", 0, 5*time.Minute)
	if decision.ResetIn != 5*time.Minute {
		t.Fatalf("expected window as reset when PTTL is unknown, got %s", decision.ResetIn)
	}
}

func TestSetNXGetDel(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmds: newMemoryCommands()}
	key := IdempotencyKey("user:42|POST|/rentals", "abc")

	ok, err := client.SetNX(ctx, key, "first", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first setnx to win, ok=%v err=%v", ok, err)
	}
	ok, err = client.SetNX(ctx, key, "second", time.Minute)
	if err != nil || ok {
		t.Fatalf("expected second setnx to lose, ok=%v err=%v", ok, err)
	}
	if got, _ := client.Get(ctx, key); got != "first" {
		t.Fatalf("expected first value kept, got %q", got)
	}
	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, key); !errors.Is(err, goredis.Nil) {
		t.Fatalf("expected redis.Nil after del, got %v", err)
	}
}

func TestZeroClientErrors(t *testing.T) {
	var client *Client
	if err := client.Ping(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if _, err := (&Client{}).FixedWindowAllow(context.Background(), "s", 1, time.Second); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on empty client should be a no-op, got %v", err)
	}
	if client.Universal() != nil {
		t.Fatal("expected no universal client")
	}
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", DB: 5, PoolSize: 7, DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 2 || opts.PoolSize != 7 || opts.DialTimeout != time.Second {
		t.Fatalf("unexpected options %+v", opts)
	}

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 3})
	if err != nil || opts.Addr != "cache:6379" || opts.DB != 3 {
		t.Fatalf("unexpected address options %+v (%v)", opts, err)
	}

	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}
}

func TestKeys(t *testing.T) {
	cases := map[string]string{
		SessionKey("jti"):                "cr:session:access:jti",
		IdempotencyKey("scope", "id"):    "cr:idempotency:scope:id",
		RateLimitKey("login:ip:1.1.1.1"): "cr:rate_limit:login:ip:1.1.1.1",
		LockKey("cron-worker:dev"):       "cr:lock:cron-worker:dev",
		LockKey(" "):                     "cr:lock",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
}

type memoryCommands struct {
	values   map[string]string
	counters map[string]int64
	expires  []time.Duration
	pttl     time.Duration
}

func newMemoryCommands() *memoryCommands {
	return &memoryCommands{values: map[string]string{}, counters: map[string]int64{}, pttl: -1}
}

func (m *memoryCommands) Ping(context.Context) *goredis.StatusCmd {
	return goredis.NewStatusResult("PONG", nil)
}

func (m *memoryCommands) Get(_ context.Context, key string) *goredis.StringCmd {
	v, ok := m.values[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

func (m *memoryCommands) Set(_ context.Context, key string, value any, _ time.Duration) *goredis.StatusCmd {
	m.values[key] = fmt.Sprint(value)
	return goredis.NewStatusResult("OK", nil)
}

func (m *memoryCommands) SetNX(_ context.Context, key string, value any, _ time.Duration) *goredis.BoolCmd {
	if _, exists := m.values[key]; exists {
		return goredis.NewBoolResult(false, nil)
	}
	m.values[key] = fmt.Sprint(value)
	return goredis.NewBoolResult(true, nil)
}

func (m *memoryCommands) Del(_ context.Context, keys ...string) *goredis.IntCmd {
	for _, key := range keys {
		delete(m.values, key)
	}
	return goredis.NewIntResult(int64(len(keys)), nil)
}

func (m *memoryCommands) Incr(_ context.Context, key string) *goredis.IntCmd {
	m.counters[key]++
	return goredis.NewIntResult(m.counters[key], nil)
}

func (m *memoryCommands) Expire(_ context.Context, _ string, ttl time.Duration) *goredis.BoolCmd {
	m.expires = append(m.expires, ttl)
	return goredis.NewBoolResult(true, nil)
}

func (m *memoryCommands) PTTL(context.Context, string) *goredis.DurationCmd {
	return goredis.NewDurationResult(m.pttl, nil)
}
