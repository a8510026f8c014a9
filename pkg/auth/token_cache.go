package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/Daylily-Informatics/UltraQC/pkg/models"
)

// DefaultAPITokenCacheTTL bounds how long a token lookup is trusted before the
// users table is consulted again.
const DefaultAPITokenCacheTTL = 5 * time.Minute

// APITokenCache caches API token to user lookups, keyed by SHA-256 of the token.
type APITokenCache struct {
	cache *cache.Cache
}

// NewAPITokenCache creates a cache whose entries expire after ttl.
func NewAPITokenCache(ttl time.Duration) *APITokenCache {
	if ttl <= 0 {
		ttl = DefaultAPITokenCacheTTL
	}
	return &APITokenCache{cache: cache.New(ttl, 2*ttl)}
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Get returns a copy of the cached user for token.
func (c *APITokenCache) Get(token string) (*models.User, bool) {
	v, ok := c.cache.Get(tokenKey(token))
	if !ok {
		return nil, false
	}
	user := v.(models.User)
	return &user, true
}

// Set caches user for token.
func (c *APITokenCache) Set(token string, user *models.User) {
	c.cache.SetDefault(tokenKey(token), *user)
}

// Invalidate drops token from the cache.
func (c *APITokenCache) Invalidate(token string) {
	c.cache.Delete(tokenKey(token))
}

// Len returns the number of cached entries, including expired ones not yet evicted.
func (c *APITokenCache) Len() int {
	return c.cache.ItemCount()
}
