package cache

import (
	"context"
	"time"
)

// TokenEntry represents a cached access token entry. It carries the subset
// of token attributes the hot validation path needs, keyed by the hashed
// token value.
type TokenEntry struct {
	ID         string    `redis:"id"`         // Unique token identifier
	TokenValue string    `redis:"tokenValue"` // The actual token string
	ClientID   string    `redis:"clientId"`   // Client the token was issued to
	UserID     string    `redis:"userId"`     // User who authorized the token
	Scope      string    `redis:"scope"`      // Authorized scopes
	ACR        string    `redis:"acr"`        // Authentication context reference
	ExpiresAt  time.Time `redis:"expiresAt"`  // Expiration timestamp
	IsRevoked  bool      `redis:"isRevoked"`  // Whether the token is revoked
}

// TokenStore caches issued tokens so validation does not hit the primary
// store on every request.
type TokenStore interface {
	Set(ctx context.Context, token *TokenEntry) error
	Get(ctx context.Context, token string) (*TokenEntry, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) int
}
