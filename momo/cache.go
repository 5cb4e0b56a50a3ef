package momo

import "sync"

// TokenCache is a single-slot, in-memory holder for the current bearer
// token. Set replaces whatever was there; nothing is kept after Clear.
type TokenCache struct {
	mu    sync.RWMutex
	token BearerToken
	ok    bool
}

// Get returns the cached token, or false when the cache is empty.
func (c *TokenCache) Get() (BearerToken, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.token, c.ok
}

// Set stores t, replacing any previous token.
func (c *TokenCache) Set(t BearerToken) {
	c.mu.Lock()
	c.token = t
	c.ok = true
	c.mu.Unlock()
}

// Clear empties the cache.
func (c *TokenCache) Clear() {
	c.mu.Lock()
	c.token = BearerToken{}
	c.ok = false
	c.mu.Unlock()
}

// ClearIf empties the cache only if it holds a token with the given value.
// It reports whether the cache was cleared.
func (c *TokenCache) ClearIf(value string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ok || c.token.Value != value {
		return false
	}

	c.token = BearerToken{}
	c.ok = false

	return true
}
