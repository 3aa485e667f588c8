package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/planix/backend/internal/contextkeys"
	"github.com/planix/backend/internal/domain"
	"github.com/planix/backend/internal/handler"
)

// TokenVerifier validates a session token and returns its claims.
type TokenVerifier interface {
	VerifyToken(token string) (*domain.JWTClaims, error)
}

// Auth creates a JWT authentication middleware.
func Auth(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				handler.JSON(w, http.StatusUnauthorized, map[string]string{"error": "no token provided"})
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				handler.JSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid authorization header"})
				return
			}

			claims, err := verifier.VerifyToken(strings.TrimSpace(parts[1]))
			if err != nil {
				handler.JSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// WithClaims stores the account identity from claims in ctx.
func WithClaims(ctx context.Context, claims *domain.JWTClaims) context.Context {
	ctx = context.WithValue(ctx, contextkeys.AccountID, claims.Sub)
	ctx = context.WithValue(ctx, contextkeys.AccountEmail, claims.Email)
	return context.WithValue(ctx, contextkeys.AccountRole, claims.Role)
}
