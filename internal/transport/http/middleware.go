package http

import (
	"context"
	"net/http"

	"fleet-monitor/reconciler/internal/auth"
)

type ctxKey struct{}

// SourceFromContext returns the feed source the auth middleware resolved.
func SourceFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKey{}).(string)
	return s
}

type AuthMiddleware struct {
	auth *auth.Authenticator
}

func NewAuthMiddleware(a *auth.Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: a}
}

func (m *AuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "missing X-API-Key header")
			return
		}

		source, ok := m.auth.Source(r.Context(), apiKey)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, source)))
	})
}
