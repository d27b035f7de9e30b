package redis

import "strings"

const namespace = "cr"

// SessionKey holds the login session behind an access token id (jti).
func SessionKey(accessID string) string {
	return join("session", "access", accessID)
}

// IdempotencyKey stores one replayable booking response per caller scope.
func IdempotencyKey(scope, key string) string {
	return join("idempotency", scope, key)
}

// RateLimitKey is the fixed-window counter for a rule and subject (ip:..., email:...).
func RateLimitKey(scope string) string {
	return join("rate_limit", scope)
}

// LockKey names a distributed lock, e.g. the cron worker cycle.
func LockKey(name string) string {
	return join("lock", name)
}

func join(parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}
