package http

import (
	"context"
	"net/http"

	"helmet-monitor/ingestion/internal/auth"
)

// Validator resolves an API key to an authenticated helmet identity.
type Validator interface {
	Validate(ctx context.Context, apiKey string) (helmetID string, ok bool)
}

// AuthMiddleware gates both the stream upgrade and the control endpoints
// behind a provisioned helmet API key, and binds the resolved helmet
// identity to the request context for downstream handlers.
type AuthMiddleware struct {
	auth Validator
}

func NewAuthMiddleware(a Validator) *AuthMiddleware {
	return &AuthMiddleware{auth: a}
}

func (m *AuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"missing X-API-Key header"}`))
			return
		}

		helmetID, ok := m.auth.Validate(r.Context(), apiKey)
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid API key"}`))
			return
		}

		if helmetID != "" {
			r = r.WithContext(auth.WithHelmet(r.Context(), helmetID))
		}

		next.ServeHTTP(w, r)
	})
}
