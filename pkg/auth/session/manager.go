package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/maisonlocation/costume-rental-backend/pkg/config"
	"github.com/maisonlocation/costume-rental-backend/pkg/enums"
	pkgredis "github.com/maisonlocation/costume-rental-backend/pkg/redis"
)

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	errAccessIDRequired    = errors.New("access id is required")
)

// Session is the Redis record behind one access token id (jti). Only a hash
// of the refresh token is kept.
type Session struct {
	UserID      int64          `json:"user_id"`
	Role        enums.UserRole `json:"role"`
	RefreshHash string         `json:"refresh_hash"`
	IssuedAt    time.Time      `json:"issued_at"`
}

// Lookup is the read surface the auth middleware needs.
type Lookup interface {
	Lookup(ctx context.Context, accessID string) (*Session, error)
}

type store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// Manager opens, rotates and revokes login sessions. Revoking a session makes
// its access token fail the middleware check before the JWT expires.
type Manager struct {
	store store
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(st store, cfg config.JWTConfig) (*Manager, error) {
	if st == nil {
		return nil, errors.New("session store is required")
	}
	ttl := cfg.RefreshTokenTTL()
	if ttl <= cfg.AccessTTL() {
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, cfg.AccessTTL())
	}
	return &Manager{store: st, ttl: ttl, now: time.Now}, nil
}

// NewAccessID produces the identifier used as JWT jti and session key.
func NewAccessID() string {
	return uuid.NewString()
}

// Open records a session for the user and returns the refresh token handed to
// the client.
func (m *Manager) Open(ctx context.Context, accessID string, userID int64, role enums.UserRole) (string, error) {
	if strings.TrimSpace(accessID) == "" {
		return "", errAccessIDRequired
	}
	refresh, err := newRefreshToken()
	if err != nil {
		return "", err
	}
	if err := m.save(ctx, accessID, Session{
		UserID:      userID,
		Role:        role,
		RefreshHash: hashToken(refresh),
		IssuedAt:    m.now().UTC(),
	}); err != nil {
		return "", err
	}
	return refresh, nil
}

// Rotate moves the session behind oldAccessID to a fresh access id when the
// refresh token matches. The old id stops working immediately.
func (m *Manager) Rotate(ctx context.Context, oldAccessID, refresh string) (string, string, *Session, error) {
	if strings.TrimSpace(refresh) == "" {
		return "", "", nil, ErrInvalidRefreshToken
	}
	current, err := m.Lookup(ctx, oldAccessID)
	if err != nil {
		return "", "", nil, err
	}
	if current == nil || subtle.ConstantTimeCompare([]byte(current.RefreshHash), []byte(hashToken(refresh))) != 1 {
		return "", "", nil, ErrInvalidRefreshToken
	}

	accessID := NewAccessID()
	nextRefresh, err := m.Open(ctx, accessID, current.UserID, current.Role)
	if err != nil {
		return "", "", nil, err
	}
	if err := m.store.Del(ctx, pkgredis.SessionKey(oldAccessID)); err != nil {
		return "", "", nil, err
	}
	rotated, err := m.Lookup(ctx, accessID)
	if err != nil {
		return "", "", nil, err
	}
	return accessID, nextRefresh, rotated, nil
}

func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return errAccessIDRequired
	}
	return m.store.Del(ctx, pkgredis.SessionKey(accessID))
}

// Lookup returns the live session for accessID, or nil when it was revoked or
// expired.
func (m *Manager) Lookup(ctx context.Context, accessID string) (*Session, error) {
	if strings.TrimSpace(accessID) == "" {
		return nil, errAccessIDRequired
	}
	raw, err := m.store.Get(ctx, pkgredis.SessionKey(accessID))
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func (m *Manager) save(ctx context.Context, accessID string, s Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, pkgredis.SessionKey(accessID), string(payload), m.ttl)
}

func newRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
