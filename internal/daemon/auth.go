package daemon

import (
	"context"
	"net/http"
	"strings"

	"captioner/internal/config"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity headers set by the fronting oauth2 proxy.
const (
	headerAuthEmail     = "X-Auth-Request-Email"
	headerForwardedUser = "X-Forwarded-User"
)

// proxyAuth trusts the identity headers of an authenticating reverse proxy.
// Requests without an identity get 401; identities outside the allowlist get
// 403.
func proxyAuth(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := strings.TrimSpace(r.Header.Get(headerAuthEmail))
			if user == "" {
				user = strings.TrimSpace(r.Header.Get(headerForwardedUser))
			}
			if user == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !cfg.EmailAllowed(user) {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			ctx := context.WithValue(r.Context(), identityKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func identity(r *http.Request) string {
	user, _ := r.Context().Value(identityKey).(string)
	return user
}
