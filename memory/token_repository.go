package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.pilab.hu/codegrant/api"
	"go.pilab.hu/codegrant/domain"
)

// TokenRepository is an in-memory domain.TokenRepository keyed by token
// value.
type TokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]domain.Token
}

var _ domain.TokenRepository = (*TokenRepository)(nil)

// NewTokenRepository creates an empty in-memory token store.
func NewTokenRepository() *TokenRepository {
	return &TokenRepository{
		tokens: make(map[string]domain.Token),
	}
}

// StoreToken persists an issued token record.
func (r *TokenRepository) StoreToken(_ context.Context, token *domain.Token) error {
	if token == nil || token.TokenValue == "" {
		return errors.New("token record must carry a token value")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tokens[token.TokenValue]; exists {
		return errors.New("token already exists")
	}
	r.tokens[token.TokenValue] = *token
	return nil
}

// GetAccessToken fetches an access token record by its value.
func (r *TokenRepository) GetAccessToken(_ context.Context, tokenValue string) (*domain.Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	token, ok := r.tokens[tokenValue]
	if !ok || token.TokenType != api.TokenTypeAccessToken {
		return nil, domain.ErrTokenNotFound
	}
	out := token
	return &out, nil
}

// RevokeToken marks a token revoked by its value.
func (r *TokenRepository) RevokeToken(_ context.Context, tokenValue string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[tokenValue]
	if !ok {
		return domain.ErrTokenNotFound
	}
	token.IsRevoked = true
	r.tokens[tokenValue] = token
	return nil
}

// DeleteExpiredTokens removes records whose expiry has passed.
func (r *TokenRepository) DeleteExpiredTokens(_ context.Context) error {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for value, token := range r.tokens {
		if token.IsExpiredAt(now) {
			delete(r.tokens, value)
		}
	}
	return nil
}
