package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tradeshield/escrow-backend/internal/api/httpx"
	"github.com/tradeshield/escrow-backend/internal/auth"
	"github.com/tradeshield/escrow-backend/internal/models"
	"github.com/tradeshield/escrow-backend/internal/services"
)

type AuthMiddleware struct {
	TM      *auth.TokenManager
	APIKeys *services.APIKeyService
}

func NewAuthMiddleware(tm *auth.TokenManager, apiKeys *services.APIKeyService) *AuthMiddleware {
	return &AuthMiddleware{TM: tm, APIKeys: apiKeys}
}

// Auth accepts either a JWT bearer token or an X-API-Key header and puts
// the resolved identity into the request context.
func (m *AuthMiddleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := r.Header.Get("X-API-Key"); key != "" && m.APIKeys != nil {
			m.authAPIKey(next, w, r, key)
			return
		}

		ah := r.Header.Get("Authorization")
		if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		token := strings.TrimSpace(ah[len("Bearer "):])

		claims, isRefresh, err := m.TM.ParseAny(token)
		if err != nil || isRefresh {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid access token")
			return
		}
		ctx := WithUser(r.Context(), UserCtx{UserID: claims.UserID, Role: claims.Role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) authAPIKey(next http.Handler, w http.ResponseWriter, r *http.Request, key string) {
	k, err := m.APIKeys.Authenticate(r.Context(), key)
	if err != nil {
		if errors.Is(err, services.ErrRateLimited) {
			httpx.WriteError(w, http.StatusTooManyRequests, "rate_limited", "api key rate limit exceeded")
			return
		}
		httpx.Err(w, err)
		return
	}
	ctx := WithUser(r.Context(), UserCtx{UserID: k.UserID, Role: models.RoleUser, APIKeyID: k.ID})
	next.ServeHTTP(w, r.WithContext(ctx))
}

// UserID is a convenience for handlers.
func UserID(ctx context.Context) (string, bool) {
	u := FromCtx(ctx)
	return u.UserID, u.UserID != ""
}
