package auth

import (
	"context"
	"sync"
	"time"

	"helmet-monitor/ingestion/internal/config"
)

// KeyLookup resolves a provisioned API key to the helmet it belongs to.
// Backed by Redis in production; empty helmet id means the key is unknown.
type KeyLookup interface {
	GetAPIKey(ctx context.Context, apiKey string) (string, error)
}

type cacheEntry struct {
	helmetID  string
	expiresAt time.Time
}

type Authenticator struct {
	localCache sync.Map
	keys       KeyLookup
	ttl        time.Duration
	staticKeys map[string]bool
}

func NewAuthenticator(cfg *config.Config, keys KeyLookup) *Authenticator {
	staticKeys := make(map[string]bool, len(cfg.ValidAPIKeys))
	for _, k := range cfg.ValidAPIKeys {
		if k != "" {
			staticKeys[k] = true
		}
	}

	return &Authenticator{
		keys:       keys,
		ttl:        time.Duration(cfg.AuthCacheTTLSeconds) * time.Second,
		staticKeys: staticKeys,
	}
}

// Validate resolves an API key to the helmet it was provisioned for. Static
// config keys are operator credentials, not bound to a helmet, so they
// authenticate with an empty helmet id.
func (a *Authenticator) Validate(ctx context.Context, apiKey string) (string, bool) {
	// Level 0: static config keys
	if a.staticKeys[apiKey] {
		return "", true
	}

	// Level 1: in-memory cache
	if raw, ok := a.localCache.Load(apiKey); ok {
		entry := raw.(cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			return entry.helmetID, true
		}
		a.localCache.Delete(apiKey)
	}

	// Level 2: Redis lookup
	helmetID, err := a.keys.GetAPIKey(ctx, apiKey)
	if err != nil || helmetID == "" {
		return "", false
	}

	// Populate in-memory cache
	a.localCache.Store(apiKey, cacheEntry{
		helmetID:  helmetID,
		expiresAt: time.Now().Add(a.ttl),
	})

	return helmetID, true
}

type helmetContextKey struct{}

// WithHelmet binds the authenticated helmet id to a request context.
func WithHelmet(ctx context.Context, helmetID string) context.Context {
	return context.WithValue(ctx, helmetContextKey{}, helmetID)
}

// HelmetFromContext returns the helmet id bound by the auth middleware, or
// "" for operator credentials and unauthenticated contexts.
func HelmetFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(helmetContextKey{}).(string); ok {
		return id
	}
	return ""
}
