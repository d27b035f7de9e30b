package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/maisonlocation/costume-rental-backend/api/responses"
	"github.com/maisonlocation/costume-rental-backend/api/validators"
	pkgerrors "github.com/maisonlocation/costume-rental-backend/pkg/errors"
	"github.com/maisonlocation/costume-rental-backend/pkg/logger"
	pkgredis "github.com/maisonlocation/costume-rental-backend/pkg/redis"
)

// WindowLimiter counts hits in fixed windows; pkg/redis.Client implements it.
type WindowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (pkgredis.WindowDecision, error)
}

// RateRule caps hits per subject (client IP, account email, guest phone) for
// one endpoint. A rule whose subject is blank for a request does not count it.
type RateRule struct {
	Endpoint string
	Subject  string
	Limit    int
	Window   time.Duration

	field   string
	subject func(r *http.Request, body map[string]any) string
}

// PerIP counts requests by client address.
func PerIP(endpoint string, limit int, window time.Duration) RateRule {
	return RateRule{
		Endpoint: endpoint, Subject: "ip", Limit: limit, Window: window,
		subject: func(r *http.Request, _ map[string]any) string { return clientIP(r) },
	}
}

// PerEmail counts requests by the "email" field of the JSON body.
func PerEmail(endpoint string, limit int, window time.Duration) RateRule {
	return perBodyField(endpoint, "email", "email", limit, window, func(v string) string {
		return strings.ToLower(strings.TrimSpace(v))
	})
}

// PerGuestPhone counts guest bookings by the digits of "guest_phone", so
// "555-0100" and "5550100" share a counter.
func PerGuestPhone(endpoint string, limit int, window time.Duration) RateRule {
	return perBodyField(endpoint, "phone", "guest_phone", limit, window, func(v string) string {
		return strings.Map(func(r rune) rune {
			if unicode.IsDigit(r) {
				return r
			}
			return -1
		}, v)
	})
}

func perBodyField(endpoint, subject, field string, limit int, window time.Duration, normalize func(string) string) RateRule {
	return RateRule{
		Endpoint: endpoint, Subject: subject, Limit: limit, Window: window, field: field,
		subject: func(_ *http.Request, body map[string]any) string {
			raw, _ := body[field].(string)
			value := normalize(raw)
			if value == "" {
				return ""
			}
			// emails and phones are not kept in clear in Redis
			sum := sha256.Sum256([]byte(value))
			return hex.EncodeToString(sum[:12])
		},
	}
}

func (r RateRule) active() bool {
	return r.Limit > 0 && r.Window > 0 && r.subject != nil
}

// RateLimit applies rules in order and rejects with 429 and Retry-After on the
// first one exceeded. A nil limiter disables limiting.
func RateLimit(limiter WindowLimiter, logg *logger.Logger, rules ...RateRule) func(http.Handler) http.Handler {
	var active []RateRule
	needsBody := false
	for _, rule := range rules {
		if rule.active() {
			active = append(active, rule)
			needsBody = needsBody || rule.field != ""
		}
	}

	return func(next http.Handler) http.Handler {
		if limiter == nil || len(active) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var fields map[string]any
			if needsBody {
				raw, err := io.ReadAll(io.LimitReader(r.Body, validators.MaxBodyBytes))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(raw))
				// malformed bodies are left to the handler's decoder
				_ = json.Unmarshal(raw, &fields)
			}

			for _, rule := range active {
				subject := rule.subject(r, fields)
				if subject == "" {
					continue
				}
				scope := rule.Endpoint + ":" + rule.Subject + ":" + subject
				decision, err := limiter.FixedWindowAllow(ctx, scope, int64(rule.Limit), rule.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !decision.Allowed {
					rejectRateLimited(ctx, logg, w, rule, decision)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, rule RateRule, decision pkgredis.WindowDecision) {
	retryAfter := int(math.Ceil(decision.ResetIn.Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"endpoint": rule.Endpoint,
			"subject":  rule.Subject,
			"attempts": decision.Count,
			"limit":    decision.Limit,
		}), "rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	err := pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later").
		WithDetails(map[string]string{"retry_after_seconds": strconv.Itoa(retryAfter)})
	responses.WriteError(ctx, nil, w, err)
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// socket peer.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
