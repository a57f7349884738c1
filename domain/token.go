package domain

import "time"

// Token represents an issued OAuth 2.0 access token.
type Token struct {
	ID         string    `bson:"_id,omitempty" json:"id"`
	TokenType  string    `bson:"token_type" json:"token_type"` // "access_token"
	TokenValue string    `bson:"token_value" json:"token_value"`
	ClientID   string    `bson:"client_id" json:"client_id"`
	UserID     string    `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Scope      string    `bson:"scope,omitempty" json:"scope,omitempty"`
	ACR        string    `bson:"acr,omitempty" json:"acr,omitempty"`
	IssuedAt   time.Time `bson:"issued_at" json:"issued_at"`
	ExpiresAt  time.Time `bson:"expires_at" json:"expires_at"`
	IsRevoked  bool      `bson:"is_revoked,omitempty" json:"is_revoked,omitempty"`
	Issuer     string    `bson:"issuer,omitempty" json:"issuer,omitempty"`
}

// IsExpiredAt reports whether the token is past its expiry at the given instant.
func (t *Token) IsExpiredAt(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
