package controllers

import (
	"net/http"

	"github.com/maisonlocation/costume-rental-backend/api/middleware"
	"github.com/maisonlocation/costume-rental-backend/api/responses"
	"github.com/maisonlocation/costume-rental-backend/api/validators"
	"github.com/maisonlocation/costume-rental-backend/internal/auth"
	pkgerrors "github.com/maisonlocation/costume-rental-backend/pkg/errors"
	"github.com/maisonlocation/costume-rental-backend/pkg/logger"
)

// issueTokens decodes a Req body and answers with the token pair call returns.
func issueTokens[Req any](logg *logger.Logger, status int, call func(r *http.Request, body Req) (*auth.TokenResponse, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body Req
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pair, err := call(r, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, pair)
	}
}

// AuthRegister creates a customer account and signs it in.
func AuthRegister(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return issueTokens(logg, http.StatusCreated, func(r *http.Request, body auth.RegisterRequest) (*auth.TokenResponse, error) {
		return svc.Register(r.Context(), body)
	})
}

func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return issueTokens(logg, http.StatusOK, func(r *http.Request, body auth.LoginRequest) (*auth.TokenResponse, error) {
		return svc.Login(r.Context(), body)
	})
}

// AuthRefresh rotates the session named by the bearer token, which may have
// expired already.
func AuthRefresh(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return issueTokens(logg, http.StatusOK, func(r *http.Request, body auth.RefreshRequest) (*auth.TokenResponse, error) {
		token := middleware.BearerToken(r)
		if token == "" {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
		}
		return svc.Refresh(r.Context(), token, body)
	})
}

// AuthLogout revokes the session of the presented access token.
func AuthLogout(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accessID := middleware.AccessIDFromContext(r.Context())
		if accessID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
			return
		}
		if err := svc.Logout(r.Context(), accessID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func AuthUser(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := svc.CurrentUser(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}
