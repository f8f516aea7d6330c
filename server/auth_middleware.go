package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/taskhive/identity/tenants"
	"github.com/taskhive/identity/token"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUserID stores the authenticated user ID
	ContextKeyUserID ContextKey = "user_id"
	// ContextKeyClaims stores parsed token claims
	ContextKeyClaims ContextKey = "claims"
)

// TenantSelectorHeader names the organization a tenant-scoped call operates
// against. Without it the caller's home organization is used.
const TenantSelectorHeader = "X-Org-ID"

// UserIDFromContext returns the authenticated caller's user id.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ContextKeyUserID).(int64)
	return id, ok
}

// RequireAuth validates the Bearer access token and injects the caller's
// identity into the request context.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing Authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid Authorization header format")
				return
			}

			claims, err := s.issuer.Verify(parts[1])
			if err != nil {
				if errors.Is(err, token.ErrExpired) {
					writeError(w, http.StatusUnauthorized, "token_expired", "access token expired")
					return
				}
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUserID, claims.UserID)
			ctx = context.WithValue(ctx, ContextKeyClaims, claims)
			next(w, r.WithContext(ctx))
		}
	}
}

// ResolveTenant derives the request's organization from the selector header
// and the caller's memberships, before any business logic runs. The resolved
// context lives only inside this request's context.Context.
func (s *Server) ResolveTenant() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "no authenticated user")
				return
			}

			selector := r.Header.Get(TenantSelectorHeader)
			tc, err := s.resolver.Resolve(r.Context(), userID, selector)
			switch {
			case errors.Is(err, tenants.ErrInvalidSelector):
				writeError(w, http.StatusBadRequest, "invalid_tenant_selector", "tenant selector must be an organization id")
				return
			case errors.Is(err, tenants.ErrAccessDenied):
				writeError(w, http.StatusForbidden, "tenant_access_denied", "no active membership in the selected organization")
				return
			case err != nil:
				writeError(w, http.StatusInternalServerError, "internal_error", "tenant resolution failed")
				return
			}

			if tc != nil {
				next(w, r.WithContext(tenants.NewContext(r.Context(), tc)))
				return
			}
			// No memberships: the request proceeds without a tenant and only
			// non-tenant-scoped work is reachable downstream.
			next(w, r)
		}
	}
}
