package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/medsage/medsage-server/internal/api/respond"
)

type contextKey struct{}

var userIDKey contextKey

// Middleware returns an http middleware that validates the bearer access
// token and stores the authenticated user ID in the request context.
func Middleware(tm *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if h == "" || !strings.HasPrefix(h, "Bearer ") {
				respond.WriteUnauthorized(w, "authorization token required")
				return
			}
			userID, err := tm.VerifyAccess(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				respond.WriteUnauthorized(w, "invalid or expired token")
				return
			}
			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the authenticated user ID set by Middleware.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}
