package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/maisonlocation/costume-rental-backend/pkg/errors"
	pkgredis "github.com/maisonlocation/costume-rental-backend/pkg/redis"
)

// fakeWindows mimics pkg/redis fixed windows without expiry.
type fakeWindows struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeWindows() *fakeWindows {
	return &fakeWindows{counts: map[string]int64{}}
}

func (f *fakeWindows) FixedWindowAllow(_ context.Context, scope string, limit int64, window time.Duration) (pkgredis.WindowDecision, error) {
	if f.err != nil {
		return pkgredis.WindowDecision{}, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scope]++
	decision := pkgredis.WindowDecision{Count: f.counts[scope], Limit: limit, Allowed: f.counts[scope] <= limit}
	if !decision.Allowed {
		decision.ResetIn = window
	}
	return decision, nil
}

func postJSON(path, body, remote string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.RemoteAddr = remote
	return req
}

func TestRateLimitPassesBodyThrough(t *testing.T) {
	limiter := newFakeWindows()
	handler := RateLimit(limiter, nil, PerIP("login", 2, time.Minute), PerEmail("login", 2, time.Minute))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			if !strings.Contains(string(body), `"email":"tester@example.com"`) {
				t.Fatalf("unexpected body: %s", body)
			}
			w.WriteHeader(http.StatusOK)
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postJSON("/login", `{"email":"tester@example.com","password":"secret"}`, "1.2.3.4:5678"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(limiter.counts) != 2 {
		t.Fatalf("expected ip and email counters, got %v", limiter.counts)
	}
	for scope := range limiter.counts {
		if strings.Contains(scope, "tester@example.com") {
			t.Fatalf("email stored in clear: %s", scope)
		}
	}
}

func TestRateLimitEmailRuleIgnoresCaseAndIP(t *testing.T) {
	handler := RateLimit(newFakeWindows(), nil, PerEmail("login", 2, time.Minute))(okHandler())

	emails := []string{"Blocked@example.com", "blocked@example.com ", "BLOCKED@EXAMPLE.COM"}
	for i, email := range emails {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, postJSON("/login", `{"email":"`+email+`","password":"x"}`, "10.0.0."+string(rune('1'+i))+":1"))
		if i < 2 && rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i, rec.Code)
		}
		if i == 2 {
			if rec.Code != http.StatusTooManyRequests {
				t.Fatalf("expected 429, got %d", rec.Code)
			}
			if rec.Header().Get("Retry-After") != "60" {
				t.Fatalf("expected Retry-After 60, got %q", rec.Header().Get("Retry-After"))
			}
			var payload struct {
				Error struct {
					Code    string            `json:"code"`
					Details map[string]string `json:"details"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if payload.Error.Code != string(pkgerrors.CodeRateLimit) || payload.Error.Details["retry_after_seconds"] != "60" {
				t.Fatalf("unexpected error payload %+v", payload.Error)
			}
		}
	}
}

func TestRateLimitGuestPhoneAcrossAddresses(t *testing.T) {
	handler := RateLimit(newFakeWindows(), nil,
		PerIP("guest-booking", 10, 10*time.Minute),
		PerGuestPhone("guest-booking", 1, 10*time.Minute),
	)(okHandler())

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postJSON("/guest-rentals", `{"guest_phone":"555-0100"}`, "1.1.1.1:1"))
	if first.Code != http.StatusOK {
		t.Fatalf("expected first guest booking through, got %d", first.Code)
	}

	// same phone written differently, from another address
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, postJSON("/guest-rentals", `{"guest_phone":"555 01 00"}`, "2.2.2.2:1"))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected phone limit to trigger, got %d", second.Code)
	}

	other := httptest.NewRecorder()
	handler.ServeHTTP(other, postJSON("/guest-rentals", `{"guest_phone":"555-0199"}`, "2.2.2.2:1"))
	if other.Code != http.StatusOK {
		t.Fatalf("expected a different phone to pass, got %d", other.Code)
	}
}

func TestRateLimitIPRuleUsesForwardedFor(t *testing.T) {
	handler := RateLimit(newFakeWindows(), nil, PerIP("register", 1, time.Minute))(okHandler())

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := postJSON("/register", `{}`, "10.0.0.1:1")
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("attempt %d: expected %d, got %d", i, want, rec.Code)
		}
	}
}

func TestRateLimitStoreFailureIsDependencyError(t *testing.T) {
	limiter := newFakeWindows()
	limiter.err = errors.New("redis down")
	handler := RateLimit(limiter, nil, PerIP("login", 1, time.Minute))(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postJSON("/login", `{}`, "1.1.1.1:1"))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRateLimitDisabledWithoutLimiterOrRules(t *testing.T) {
	for name, mw := range map[string]func(http.Handler) http.Handler{
		"nil limiter": RateLimit(nil, nil, PerIP("login", 1, time.Minute)),
		"zero limit":  RateLimit(newFakeWindows(), nil, PerIP("login", 0, time.Minute)),
	} {
		handler := mw(okHandler())
		for range 3 {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, postJSON("/login", `{}`, "1.1.1.1:1"))
			if rec.Code != http.StatusOK {
				t.Fatalf("%s: expected 200, got %d", name, rec.Code)
			}
		}
	}
}
