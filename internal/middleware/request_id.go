package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type reqIDKeyType struct{}

var requestIDKey reqIDKeyType

// RequestIDFrom returns the request id stored on the context, or "".
func RequestIDFrom(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// RequestID assigns a fresh id to each request, echoing back an
// X-Request-Id supplied by the caller when one is present.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
