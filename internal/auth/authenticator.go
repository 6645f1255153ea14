package auth

import (
	"context"
	"sync"
	"time"

	"fleet-monitor/reconciler/internal/config"
)

// KeyLookup resolves an API key to the feed source it belongs to. An
// unknown key resolves to "".
type KeyLookup interface {
	GetAPIKey(ctx context.Context, apiKey string) (string, error)
}

type cacheEntry struct {
	source    string
	expiresAt time.Time
}

// Authenticator checks feed API keys against static config, a local TTL
// cache and finally Redis.
type Authenticator struct {
	localCache sync.Map
	keys       KeyLookup
	ttl        time.Duration
	staticKeys map[string]bool
	now        func() time.Time
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
		now:        time.Now,
	}
}

// Source returns the feed source for apiKey and whether the key is valid.
// Static keys map to the source "static".
func (a *Authenticator) Source(ctx context.Context, apiKey string) (string, bool) {
	// Level 0: static config keys
	if a.staticKeys[apiKey] {
		return "static", true
	}

	// Level 1: in-memory cache
	if raw, ok := a.localCache.Load(apiKey); ok {
		entry := raw.(cacheEntry)
		if a.now().Before(entry.expiresAt) {
			return entry.source, true
		}
		a.localCache.Delete(apiKey)
	}

	// Level 2: Redis lookup
	if a.keys == nil {
		return "", false
	}
	source, err := a.keys.GetAPIKey(ctx, apiKey)
	if err != nil || source == "" {
		return "", false
	}

	a.localCache.Store(apiKey, cacheEntry{
		source:    source,
		expiresAt: a.now().Add(a.ttl),
	})

	return source, true
}
