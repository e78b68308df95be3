package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"helmet-monitor/ingestion/internal/auth"
)

type fakeValidator struct {
	helmets map[string]string
}

func (f *fakeValidator) Validate(ctx context.Context, apiKey string) (string, bool) {
	id, ok := f.helmets[apiKey]
	return id, ok
}

func newWrappedHandler(t *testing.T) (http.Handler, *string) {
	t.Helper()
	var seenHelmet string
	mw := NewAuthMiddleware(&fakeValidator{helmets: map[string]string{
		"hm100-key":  "hm-100",
		"static-key": "",
	}})
	h := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenHelmet = auth.HelmetFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	return h, &seenHelmet
}

func TestAuthMiddlewareMissingKey(t *testing.T) {
	h, _ := newWrappedHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareInvalidKey(t *testing.T) {
	h, _ := newWrappedHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("X-API-Key", "ghost-key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareBindsHelmetIdentity(t *testing.T) {
	h, seen := newWrappedHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("X-API-Key", "hm100-key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hm-100", *seen)
}

func TestAuthMiddlewareStaticKeyHasNoHelmet(t *testing.T) {
	h, seen := newWrappedHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("X-API-Key", "static-key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, *seen)
}
