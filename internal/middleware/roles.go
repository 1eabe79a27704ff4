package middleware

import (
	"net/http"

	"github.com/tradeshield/escrow-backend/internal/api/httpx"
)

// RequireRole allows only the named role through; anything else is 403.
func RequireRole(need string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := FromCtx(r.Context())
			if u.UserID == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}
			if u.Role != need {
				httpx.WriteError(w, http.StatusForbidden, "forbidden", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
