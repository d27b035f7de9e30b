package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/maisonlocation/costume-rental-backend/api/controllers"
	"github.com/maisonlocation/costume-rental-backend/api/middleware"
	"github.com/maisonlocation/costume-rental-backend/api/responses"
	"github.com/maisonlocation/costume-rental-backend/internal/auth"
	"github.com/maisonlocation/costume-rental-backend/internal/catalog"
	"github.com/maisonlocation/costume-rental-backend/pkg/auth/session"
	"github.com/maisonlocation/costume-rental-backend/pkg/config"
	"github.com/maisonlocation/costume-rental-backend/pkg/enums"
	pkgerrors "github.com/maisonlocation/costume-rental-backend/pkg/errors"
	"github.com/maisonlocation/costume-rental-backend/pkg/logger"
	"github.com/maisonlocation/costume-rental-backend/pkg/metrics"
	pkgredis "github.com/maisonlocation/costume-rental-backend/pkg/redis"
)

// RouterParams carries the collaborators behind the HTTP surface. Redis-backed
// stores may be left nil, which disables rate limiting and idempotency.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    controllers.Pinger
	Sessions session.Lookup

	RateLimits  middleware.WindowLimiter
	Idempotency pkgredis.IdempotencyStore

	Auth    auth.Service
	Catalog catalog.Service
	Rentals controllers.RentalService

	Metrics *prometheus.Registry
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	limits := cfg.RateLimit
	loginLimit := middleware.RateLimit(p.RateLimits, logg,
		middleware.PerIP("login", limits.LoginPerIP, limits.LoginWindow),
		middleware.PerEmail("login", limits.LoginPerEmail, limits.LoginWindow),
	)
	registerLimit := middleware.RateLimit(p.RateLimits, logg,
		middleware.PerIP("register", limits.RegisterPerIP, limits.RegisterWindow),
		middleware.PerEmail("register", limits.RegisterPerEmail, limits.RegisterWindow),
	)
	guestBookingLimit := middleware.RateLimit(p.RateLimits, logg,
		middleware.PerIP("guest-booking", limits.GuestBookingPerIP, limits.GuestBookingWindow),
		middleware.PerGuestPhone("guest-booking", limits.GuestBookingPerPhone, limits.GuestBookingWindow),
	)

	authenticated := middleware.Auth(cfg.JWT, p.Sessions, logg)
	idempotent := middleware.Idempotency(p.Idempotency, cfg.Idempotency.TTL, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler(p.Metrics))

	r.With(registerLimit).Post("/register", controllers.AuthRegister(p.Auth, logg))
	r.With(loginLimit).Post("/login", controllers.AuthLogin(p.Auth, logg))
	r.Post("/refresh", controllers.AuthRefresh(p.Auth, logg))

	r.Get("/costumes", controllers.CostumeList(p.Catalog, logg))
	r.Get("/costumes/{costumeId}", controllers.CostumeDetail(p.Catalog, logg))

	// limits run first so a blocked guest never claims an idempotency key
	r.With(guestBookingLimit, idempotent).Post("/guest-rentals", controllers.GuestRentalCreate(p.Rentals, logg))

	r.Group(func(r chi.Router) {
		r.Use(authenticated)

		r.Post("/logout", controllers.AuthLogout(p.Auth, logg))
		r.Get("/user", controllers.AuthUser(p.Auth, logg))

		r.With(idempotent).Post("/rentals", controllers.RentalCreate(p.Rentals, logg))
		r.Get("/rentals/{rentalId}", controllers.RentalDetail(p.Rentals, logg))

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))
			r.Post("/rentals/{rentalId}/return", controllers.AdminRentalReturn(p.Rentals, logg))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeNotFound, "route not found"))
	})

	return r
}
