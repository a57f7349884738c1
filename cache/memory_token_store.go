package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"go.pilab.hu/codegrant/domain"
)

// MemoryTokenStore implements TokenStore using ttlcache. Entries expire on
// their token's own schedule; a background janitor evicts them.
type MemoryTokenStore struct {
	cache *ttlcache.Cache[string, *TokenEntry]
}

// NewMemoryTokenStore creates a new in-memory token store with automatic
// cleanup.
func NewMemoryTokenStore(cleanupInterval time.Duration) *MemoryTokenStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *TokenEntry](cleanupInterval),
		ttlcache.WithDisableTouchOnHit[string, *TokenEntry](),
	)

	// Start the cleanup process
	go cache.Start()

	return &MemoryTokenStore{
		cache: cache,
	}
}

// Set implements TokenStore.Set.
func (s *MemoryTokenStore) Set(_ context.Context, token *TokenEntry) error {
	ttl := time.Until(token.ExpiresAt)
	s.cache.Set(HashToken(token.TokenValue), token, ttl)
	return nil
}

// Get implements TokenStore.Get.
func (s *MemoryTokenStore) Get(_ context.Context, token string) (*TokenEntry, error) {
	item := s.cache.Get(HashToken(token))
	if item == nil {
		return nil, domain.ErrTokenNotFound
	}
	return item.Value(), nil
}

// Delete removes a token from the cache.
func (s *MemoryTokenStore) Delete(_ context.Context, token string) error {
	s.cache.Delete(HashToken(token))

	return nil
}

// DeleteExpired removes all expired tokens from the cache.
func (s *MemoryTokenStore) DeleteExpired(_ context.Context) error {
	// ttlcache expires entries on its own; this just forces a sweep.
	s.cache.DeleteExpired()

	return nil
}

// Clear removes all tokens from the cache.
func (s *MemoryTokenStore) Clear(_ context.Context) error {
	s.cache.DeleteAll()

	return nil
}

// Count counts the number of tokens in the cache.
func (s *MemoryTokenStore) Count(_ context.Context) int {
	return s.cache.Len()
}

// Close stops the cleanup goroutine.
func (s *MemoryTokenStore) Close() error {
	s.cache.Stop()

	return nil
}
