package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/maisonlocation/costume-rental-backend/api/middleware"
	"github.com/maisonlocation/costume-rental-backend/internal/auth"
	"github.com/maisonlocation/costume-rental-backend/internal/catalog"
	"github.com/maisonlocation/costume-rental-backend/internal/rentals"
	"github.com/maisonlocation/costume-rental-backend/internal/users"
	pkgAuth "github.com/maisonlocation/costume-rental-backend/pkg/auth"
	"github.com/maisonlocation/costume-rental-backend/pkg/auth/session"
	"github.com/maisonlocation/costume-rental-backend/pkg/config"
	"github.com/maisonlocation/costume-rental-backend/pkg/db"
	"github.com/maisonlocation/costume-rental-backend/pkg/db/models"
	"github.com/maisonlocation/costume-rental-backend/pkg/enums"
	"github.com/maisonlocation/costume-rental-backend/pkg/logger"
	"github.com/maisonlocation/costume-rental-backend/pkg/metrics"
	"github.com/maisonlocation/costume-rental-backend/pkg/outbox"
	pkgredis "github.com/maisonlocation/costume-rental-backend/pkg/redis"
)

var routerNow = time.Date(2030, time.March, 10, 12, 0, 0, 0, time.UTC)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

// stubSessions knows the access ids minted by routerEnv.token.
type stubSessions map[string]int64

func (s stubSessions) Lookup(_ context.Context, accessID string) (*session.Session, error) {
	owner, ok := s[accessID]
	if !ok {
		return nil, nil
	}
	return &session.Session{UserID: owner}, nil
}

// windowCounter is an in-memory fixed window without expiry.
type windowCounter struct {
	hits map[string]int64
}

func (w *windowCounter) FixedWindowAllow(_ context.Context, scope string, limit int64, window time.Duration) (pkgredis.WindowDecision, error) {
	w.hits[scope]++
	n := w.hits[scope]
	d := pkgredis.WindowDecision{Allowed: n <= limit, Count: n, Limit: limit}
	if !d.Allowed {
		d.ResetIn = window
	}
	return d, nil
}

type stubAuthService struct {
	loggedOut []string
	refreshed []string
}

func (s *stubAuthService) Register(ctx context.Context, req auth.RegisterRequest) (*auth.TokenResponse, error) {
	return &auth.TokenResponse{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"}, nil
}

func (s *stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.TokenResponse, error) {
	return &auth.TokenResponse{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"}, nil
}

func (s *stubAuthService) Refresh(ctx context.Context, accessToken string, req auth.RefreshRequest) (*auth.TokenResponse, error) {
	s.refreshed = append(s.refreshed, req.RefreshToken)
	return &auth.TokenResponse{AccessToken: "a2", RefreshToken: "r2", TokenType: "Bearer"}, nil
}

func (s *stubAuthService) Logout(ctx context.Context, accessID string) error {
	s.loggedOut = append(s.loggedOut, accessID)
	return nil
}

func (s *stubAuthService) CurrentUser(ctx context.Context, userID int64) (*users.UserDTO, error) {
	return &users.UserDTO{ID: userID, Name: "Tester"}, nil
}

type routerEnv struct {
	handler  http.Handler
	conn     *gorm.DB
	auth     *stubAuthService
	cfg      *config.Config
	sessions stubSessions
}

type envOptions struct {
	bookingTimeout time.Duration
	limits         config.RateLimitConfig
	limiter        middleware.WindowLimiter
}

func newRouterEnv(t *testing.T) routerEnv {
	return newRouterEnvWith(t, envOptions{})
}

func newRouterEnvWith(t *testing.T, opts envOptions) routerEnv {
	t.Helper()
	if opts.bookingTimeout == 0 {
		opts.bookingTimeout = 5 * time.Second
	}
	dsn := fmt.Sprintf("file:routes_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(
		&models.Category{}, &models.User{}, &models.Costume{}, &models.Rental{}, &models.OutboxEvent{},
	))
	_, err = catalog.Seed(context.Background(), conn)
	require.NoError(t, err)

	cfg := &config.Config{
		App:       config.AppConfig{Env: "test", CORSOrigins: "http://localhost:3000"},
		JWT:       config.JWTConfig{Secret: "secret", Issuer: "costume-rental", ExpirationMinutes: 60},
		RateLimit: opts.limits,
	}
	logg := logger.New(logger.Options{ServiceName: "routes-test", Output: io.Discard})

	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn))
	require.NoError(t, err)
	rentalSvc, err := rentals.NewService(rentals.ServiceParams{
		DB:     db.NewFromConn(conn),
		Ledger: rentals.NewLedger(conn),
		Outbox: outbox.NewService(outbox.NewRepository(conn), logg),
		Config: config.BookingConfig{Timeout: opts.bookingTimeout},
		Logger: logg,
		Now:    func() time.Time { return routerNow },
	})
	require.NoError(t, err)

	authSvc := &stubAuthService{}
	sessions := stubSessions{}
	handler := NewRouter(RouterParams{
		Config:     cfg,
		Logger:     logg,
		DB:         stubPinger{},
		Redis:      stubPinger{},
		Sessions:   sessions,
		RateLimits: opts.limiter,
		Auth:       authSvc,
		Catalog:    catalogSvc,
		Rentals:    rentalSvc,
		Metrics:    metrics.NewRegistry(),
	})
	return routerEnv{handler: handler, conn: conn, auth: authSvc, cfg: cfg, sessions: sessions}
}

// token mints an access token backed by a live session.
func (e routerEnv) token(t *testing.T, userID int64, role enums.UserRole) string {
	t.Helper()
	jti := uuid.NewString()
	token, err := pkgAuth.MintAccessToken(e.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: userID, Role: role, JTI: jti})
	require.NoError(t, err)
	e.sessions[jti] = userID
	return token
}

func (e routerEnv) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	return e.doFrom(t, "192.0.2.1:4000", method, path, body, token)
}

func (e routerEnv) doFrom(t *testing.T, remoteAddr, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = remoteAddr
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

const userRentalBody = `{"costume_id":1,"start_date":"2030-03-12","expected_return_date":"2030-03-15"}`

func TestHealthAndMetrics(t *testing.T) {
	env := newRouterEnv(t)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/live", "", "").Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/ready", "", "").Code)

	rec := env.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestCostumeEndpoints(t *testing.T) {
	env := newRouterEnv(t)

	rec := env.do(t, http.MethodGet, "/costumes", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var costumes []struct {
		ID          int64  `json:"id"`
		Price       string `json:"price"`
		IsAvailable bool   `json:"is_available"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &costumes))
	require.Len(t, costumes, 8)
	assert.EqualValues(t, 1, costumes[0].ID)
	assert.Equal(t, "450.00", costumes[0].Price)

	rec = env.do(t, http.MethodGet, "/costumes/999", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodGet, "/costumes/abc", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateRentalFlow(t *testing.T) {
	env := newRouterEnv(t)
	token := env.token(t, 42, enums.UserRoleCustomer)

	rec := env.do(t, http.MethodPost, "/rentals", userRentalBody, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/rentals", userRentalBody, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var rental struct {
		ID         int64  `json:"id"`
		UserID     *int64 `json:"user_id"`
		TotalPrice string `json:"total_price"`
		StartDate  string `json:"start_date"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &rental))
	require.NotNil(t, rental.UserID)
	assert.EqualValues(t, 42, *rental.UserID)
	assert.Equal(t, "450.00", rental.TotalPrice)
	assert.Equal(t, "2030-03-12", rental.StartDate)

	rec = env.do(t, http.MethodPost, "/rentals", userRentalBody, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Costume is not available", body.Message)
	assert.Equal(t, "COSTUME_UNAVAILABLE", body.Error.Code)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/rentals/%d", rental.ID), "", token)
	assert.Equal(t, http.StatusOK, rec.Code)

	other := env.token(t, 7, enums.UserRoleCustomer)
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/rentals/%d", rental.ID), "", other)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/rentals/9999", "", token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateRentalValidation(t *testing.T) {
	env := newRouterEnv(t)
	token := env.token(t, 42, enums.UserRoleCustomer)

	cases := map[string]string{
		"past start":       `{"costume_id":1,"start_date":"2030-03-01","expected_return_date":"2030-03-15"}`,
		"return not after": `{"costume_id":1,"start_date":"2030-03-12","expected_return_date":"2030-03-12"}`,
		"bad date":         `{"costume_id":1,"start_date":"12/03/2030","expected_return_date":"2030-03-15"}`,
		"missing costume":  `{"start_date":"2030-03-12","expected_return_date":"2030-03-15"}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/rentals", payload, token)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
			assert.Equal(t, "VALIDATION_ERROR", decode(t, rec).Error.Code)
		})
	}

	var costume models.Costume
	require.NoError(t, env.conn.First(&costume, 1).Error)
	assert.True(t, costume.IsAvailable)
}

func TestGuestRental(t *testing.T) {
	env := newRouterEnv(t)

	rec := env.do(t, http.MethodPost, "/guest-rentals",
		`{"costume_id":2,"start_date":"2030-03-10","expected_return_date":"2030-03-11","guest_name":"Ana","guest_phone":"555-0100","guest_address":"1 Rue"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var rental struct {
		ID        int64   `json:"id"`
		UserID    *int64  `json:"user_id"`
		GuestName *string `json:"guest_name"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &rental))
	assert.Nil(t, rental.UserID)
	require.NotNil(t, rental.GuestName)
	assert.Equal(t, "Ana", *rental.GuestName)

	rec = env.do(t, http.MethodPost, "/guest-rentals",
		`{"costume_id":3,"start_date":"2030-03-10","expected_return_date":"2030-03-11","guest_name":"  ","guest_phone":"555","guest_address":"x"}`, "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode(t, rec).Error.Details, "guest_name")

	customer := env.token(t, 42, enums.UserRoleCustomer)
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/rentals/%d", rental.ID), "", customer)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminReturn(t *testing.T) {
	env := newRouterEnv(t)
	customer := env.token(t, 42, enums.UserRoleCustomer)
	admin := env.token(t, 1, enums.UserRoleAdmin)

	rec := env.do(t, http.MethodPost, "/rentals", userRentalBody, customer)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &created))
	path := fmt.Sprintf("/admin/rentals/%d/return", created.ID)

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, path, "", customer).Code)

	rec = env.do(t, http.MethodPost, path, "", admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var returned struct {
		ReturnedAt *string `json:"returned_at"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &returned))
	require.NotNil(t, returned.ReturnedAt)
	assert.Equal(t, "2030-03-12", *returned.ReturnedAt)

	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, path, "", admin).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/admin/rentals/9999/return", "", admin).Code)

	rec = env.do(t, http.MethodPost, "/rentals", userRentalBody, customer)
	assert.Equal(t, http.StatusCreated, rec.Code, "costume should be bookable again")
}

func TestAuthRoutes(t *testing.T) {
	env := newRouterEnv(t)
	token := env.token(t, 42, enums.UserRoleCustomer)

	rec := env.do(t, http.MethodPost, "/login", `{"email":"a@example.com","password":"secretpass"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/register", `{"name":"A","email":"a@example.com","password":"secretpass","password_confirmation":"other"}`, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodGet, "/user", "", token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/refresh", `{"refresh_token":"r"}`, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"r"}, env.auth.refreshed)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/refresh", `{"refresh_token":"r"}`, "").Code)

	rec = env.do(t, http.MethodPost, "/logout", "", token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, env.auth.loggedOut, 1)
}

func TestProtectedRoutesNeedLiveSession(t *testing.T) {
	env := newRouterEnv(t)
	orphan, err := pkgAuth.MintAccessToken(env.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: 42, Role: enums.UserRoleCustomer})
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/user", "", orphan)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBookingTimeoutIsServiceUnavailable(t *testing.T) {
	env := newRouterEnvWith(t, envOptions{bookingTimeout: 100 * time.Millisecond})
	token := env.token(t, 42, enums.UserRoleCustomer)

	// the pool has one connection; holding it starves the booking
	holder := env.conn.Begin()
	require.NoError(t, holder.Error)

	rec := env.do(t, http.MethodPost, "/rentals", userRentalBody, token)
	require.NoError(t, holder.Rollback().Error)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
	assert.Equal(t, "BUSY", decode(t, rec).Error.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	var costume models.Costume
	require.NoError(t, env.conn.First(&costume, 1).Error)
	assert.True(t, costume.IsAvailable, "a timed out booking must not hold the costume")
}

func TestGuestBookingsAreRateLimitedPerPhone(t *testing.T) {
	env := newRouterEnvWith(t, envOptions{
		limiter: &windowCounter{hits: map[string]int64{}},
		limits: config.RateLimitConfig{
			GuestBookingWindow:   10 * time.Minute,
			GuestBookingPerIP:    10,
			GuestBookingPerPhone: 1,
		},
	})
	guest := func(costumeID int, phone string) string {
		return fmt.Sprintf(`{"costume_id":%d,"start_date":"2030-03-10","expected_return_date":"2030-03-11","guest_name":"Ana","guest_phone":%q,"guest_address":"1 Rue"}`, costumeID, phone)
	}

	rec := env.doFrom(t, "198.51.100.1:1000", http.MethodPost, "/guest-rentals", guest(2, "555-0100"), "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// same phone, different spelling and address
	rec = env.doFrom(t, "198.51.100.2:1000", http.MethodPost, "/guest-rentals", guest(3, "5550100"), "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code, rec.Body.String())
	assert.Equal(t, "600", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", decode(t, rec).Error.Code)

	rec = env.doFrom(t, "198.51.100.2:1000", http.MethodPost, "/guest-rentals", guest(3, "555-0199"), "")
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	env := newRouterEnv(t)
	rec := env.do(t, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, rec).Error.Code)
}
