package middleware

import (
	"context"
	"net/http"

	"github.com/miner1qaz-ops/Mochi-sub000/internal/model"
	"github.com/miner1qaz-ops/Mochi-sub000/internal/service"
	"github.com/miner1qaz-ops/Mochi-sub000/pkg/apierror"
)

// TokenDataKey is the key for storing token data in request context.
const TokenDataKey contextKey = "token_data"

// AdminAuthConfig holds configuration for the admin auth middleware.
type AdminAuthConfig struct {
	TokenService *service.TokenService
	AdminKey     string
}

// NewAdminAuth creates an authentication middleware for admin routes.
// Pack preview/build/accept/reject routes stay public; only the admin
// group is mounted behind this. Accepts either the static admin key via
// X-Admin-Key, or a session token from /admin/login via X-Token.
// NO GLOBAL STATE - dependencies are passed via closure.
func NewAdminAuth(cfg AdminAuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.AdminKey != "" && r.Header.Get("X-Admin-Key") == cfg.AdminKey {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get("X-Token")
			if token != "" && cfg.TokenService != nil {
				tokenData, err := cfg.TokenService.ValidateToken(r.Context(), token)
				if err != nil {
					writeError(w, apierror.Unauthorized("Invalid or expired token"))
					return
				}

				ctx := context.WithValue(r.Context(), TokenDataKey, tokenData)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			writeError(w, apierror.Unauthorized("Authentication required. Use X-Admin-Key or X-Token header."))
		})
	}
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}

// GetTokenDataFromContext retrieves token data from request context.
func GetTokenDataFromContext(ctx context.Context) *model.TokenData {
	if data, ok := ctx.Value(TokenDataKey).(*model.TokenData); ok {
		return data
	}
	return nil
}
