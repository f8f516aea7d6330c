package server

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/taskhive/identity/auth"
	"github.com/taskhive/identity/internal/obs"
	"github.com/taskhive/identity/tenants"
	"github.com/taskhive/identity/token/refresh"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
	RetryAfter  int    `json:"retry_after_seconds,omitempty"`
}

func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	result, err := s.auth.Login(r.Context(), req.Email, req.Password, originFrom(r))
	if err != nil {
		s.writeLoginError(w, err)
		return
	}

	obs.ObserveLogin("success")
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) writeLoginError(w http.ResponseWriter, err error) {
	var lockedErr *auth.AccountLockedError
	switch {
	case errors.As(err, &lockedErr):
		obs.ObserveLogin("locked")
		writeJSON(w, http.StatusForbidden, errorResponse{
			Error:       "account_locked",
			Description: lockedErr.Error(),
			RetryAfter:  int(lockedErr.RetryAfter.Round(time.Second).Seconds()),
		})
	case errors.Is(err, auth.ErrInvalidCredentials):
		obs.ObserveLogin("invalid_credentials")
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect")
	case errors.Is(err, auth.ErrLoginThrottled):
		obs.ObserveLogin("throttled")
		writeError(w, http.StatusTooManyRequests, "throttled", "too many login attempts")
	default:
		obs.ObserveLogin("error")
		log.Error().Err(err).Msg("login failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "login failed")
	}
}

func (s *Server) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	pair, err := s.auth.Refresh(r.Context(), req.RefreshToken, originFrom(r))
	switch {
	case errors.Is(err, refresh.ErrTokenReused):
		obs.ObserveRefresh("reused")
		writeError(w, http.StatusUnauthorized, "refresh_token_reused", "token reuse detected, session family revoked")
	case errors.Is(err, refresh.ErrTokenExpired):
		obs.ObserveRefresh("expired")
		writeError(w, http.StatusUnauthorized, "refresh_token_expired", "refresh token expired")
	case errors.Is(err, refresh.ErrTokenInvalid):
		obs.ObserveRefresh("invalid")
		writeError(w, http.StatusUnauthorized, "invalid_refresh_token", "refresh token not recognised")
	case err != nil:
		obs.ObserveRefresh("error")
		log.Error().Err(err).Msg("refresh failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "refresh failed")
	default:
		obs.ObserveRefresh("success")
		writeJSON(w, http.StatusOK, pair)
	}
}

func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	if err := s.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		log.Error().Err(err).Msg("logout failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "logout failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) LogoutAllHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no authenticated user")
		return
	}

	if err := s.auth.LogoutAll(r.Context(), userID); err != nil {
		log.Error().Err(err).Msg("logout-all failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "logout failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MeHandler echoes the caller's resolved identity; it doubles as the smoke
// test for tenant resolution.
func (s *Server) MeHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	response := struct {
		UserID       int64            `json:"user_id"`
		Organization *tenants.Context `json:"organization,omitempty"`
	}{UserID: userID}

	if tc, ok := tenants.FromContext(r.Context()); ok {
		response.Organization = tc
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func originFrom(r *http.Request) auth.Origin {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip, _, _ = net.SplitHostPort(r.RemoteAddr)
	}
	return auth.Origin{IP: ip, UserAgent: r.UserAgent()}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("response encoding failed")
	}
}

func writeError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, errorResponse{Error: code, Description: description})
}
