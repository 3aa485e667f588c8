package middleware

import (
	"net/http"

	"github.com/planix/backend/internal/contextkeys"
	"github.com/planix/backend/internal/domain"
	"github.com/planix/backend/internal/handler"
)

// AdminOnly middleware ensures the account has the admin role.
// Must be used AFTER Auth middleware which sets contextkeys.AccountRole in context.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, ok := r.Context().Value(contextkeys.AccountRole).(string)
		if !ok || role != domain.RoleAdmin {
			handler.JSON(w, http.StatusForbidden, map[string]string{"error": "forbidden: admin access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
