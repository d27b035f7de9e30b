package middleware

import (
	"net/http"
	"strings"

	"github.com/maisonlocation/costume-rental-backend/api/responses"
	pkgAuth "github.com/maisonlocation/costume-rental-backend/pkg/auth"
	"github.com/maisonlocation/costume-rental-backend/pkg/auth/session"
	"github.com/maisonlocation/costume-rental-backend/pkg/config"
	pkgerrors "github.com/maisonlocation/costume-rental-backend/pkg/errors"
	"github.com/maisonlocation/costume-rental-backend/pkg/logger"
)

// Auth admits requests whose bearer token is valid and still backed by a live
// session for the same user. Logout and refresh end sessions before the JWT
// itself expires.
func Auth(cfg config.JWTConfig, sessions session.Lookup, logg *logger.Logger) func(http.Handler) http.Handler {
	reject := func(w http.ResponseWriter, r *http.Request, err error) {
		responses.WriteError(r.Context(), logg, w, err)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			if raw == "" {
				reject(w, r, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			claims, err := pkgAuth.ParseAccessToken(cfg, raw)
			if err != nil {
				reject(w, r, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if claims.ID == "" {
				reject(w, r, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
				return
			}

			if sessions != nil {
				live, err := sessions.Lookup(r.Context(), claims.ID)
				if err != nil {
					reject(w, r, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				}
				if live == nil || live.UserID != claims.UserID {
					reject(w, r, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable"))
					return
				}
			}

			ctx := withAccessID(WithUser(r.Context(), claims.UserID, claims.Role), claims.ID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID)
				ctx = logg.WithField(ctx, "actor_role", string(claims.Role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken returns the token from the Authorization header, with or
// without the Bearer scheme.
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(raw, " ")
	if found && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token)
	}
	return raw
}
