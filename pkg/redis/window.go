package redis

import (
	"context"
	"time"
)

// WindowDecision is the outcome of one hit on a fixed-window counter.
type WindowDecision struct {
	Allowed bool
	Count   int64
	Limit   int64
	// ResetIn is how long until the window closes; set only when blocked.
	ResetIn time.Duration
}

// Incr bumps the counter at key and starts its TTL on the first hit.
func (c *Client) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	count, err := c.cmds.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 && ttl > 0 {
		if err := c.cmds.Expire(ctx, key, ttl).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// FixedWindowAllow counts one hit for scope and reports whether it stays
// within limit for the current window.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (WindowDecision, error) {
	key := RateLimitKey(scope)
	count, err := c.Incr(ctx, key, window)
	if err != nil {
		return WindowDecision{}, err
	}
	decision := WindowDecision{Allowed: count <= limit, Count: count, Limit: limit}
	if decision.Allowed {
		return decision, nil
	}
	if ttl, err := c.cmds.PTTL(ctx, key).Result(); err == nil && ttl > 0 {
		decision.ResetIn = ttl
	} else {
		decision.ResetIn = window
	}
	return decision, nil
}
