package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"

	"casehub-backend/internal/auth"
	"casehub-backend/internal/transport"
)

// APIKeyAdmin is the identity recorded for requests that used X-Admin-Key.
const APIKeyAdmin = "api-key"

type adminKey struct{}

// AdminAuth accepts either the static X-Admin-Key or an admin access token in
// the cms_access cookie, and records who was let in.
func AdminAuth(apiKey string, manager *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" && manager == nil {
				transport.WriteError(w, http.StatusServiceUnavailable, "admin auth not configured", nil)
				return
			}

			if apiKey != "" {
				given := r.Header.Get("X-Admin-Key")
				if given != "" && subtle.ConstantTimeCompare([]byte(given), []byte(apiKey)) == 1 {
					next.ServeHTTP(w, r.WithContext(WithAdmin(r.Context(), APIKeyAdmin)))
					return
				}
			}

			if manager != nil {
				if cookie, err := r.Cookie(auth.AccessCookie); err == nil && cookie.Value != "" {
					if claims, err := manager.Authorize(cookie.Value, auth.KindAccess); err == nil {
						next.ServeHTTP(w, r.WithContext(WithAdmin(r.Context(), claims.Subject)))
						return
					}
				}
			}

			transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		})
	}
}

func WithAdmin(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, adminKey{}, subject)
}

// AdminFromContext returns the authenticated admin, or "" outside AdminAuth.
func AdminFromContext(ctx context.Context) string {
	s, _ := ctx.Value(adminKey{}).(string)
	return s
}
