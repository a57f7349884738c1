package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/codegrant/api"
	"go.pilab.hu/codegrant/cache"
	"go.pilab.hu/codegrant/domain"
	"go.pilab.hu/codegrant/internal/metrics"
)

// DefaultAccessTokenTTL is the access token lifetime used when the service
// is configured with a zero TTL.
const DefaultAccessTokenTTL = time.Hour

// ErrTokenInvalid is returned for tokens that are unknown, expired or
// revoked. Callers get one answer for all three so a probe cannot tell
// which it was.
var ErrTokenInvalid = errors.New("token is invalid or expired")

// TokenService mints and validates access tokens. It implements
// AccessTokenIssuer, so the grant exchange can hand it a validated grant
// context without knowing anything about JWTs or storage.
type TokenService struct {
	repo   domain.TokenRepository
	cache  cache.TokenStore
	issuer string
	signer *TokenSigner
	ttl    time.Duration
}

// NewTokenService creates a new TokenService instance
func NewTokenService(
	repo domain.TokenRepository,
	tokenCache cache.TokenStore,
	issuer string,
	signer *TokenSigner,
	ttl time.Duration,
) *TokenService {
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	return &TokenService{
		repo:   repo,
		cache:  tokenCache,
		issuer: issuer,
		signer: signer,
		ttl:    ttl,
	}
}

func toCacheEntry(t *domain.Token) *cache.TokenEntry {
	return &cache.TokenEntry{
		ID:         t.ID,
		TokenValue: t.TokenValue,
		ClientID:   t.ClientID,
		UserID:     t.UserID,
		Scope:      t.Scope,
		ACR:        t.ACR,
		ExpiresAt:  t.ExpiresAt,
		IsRevoked:  t.IsRevoked,
	}
}

func fromCacheEntry(entry *cache.TokenEntry) *domain.Token {
	return &domain.Token{
		ID:         entry.ID,
		TokenType:  api.TokenTypeAccessToken,
		TokenValue: entry.TokenValue,
		ClientID:   entry.ClientID,
		UserID:     entry.UserID,
		Scope:      entry.Scope,
		ACR:        entry.ACR,
		ExpiresAt:  entry.ExpiresAt,
		IsRevoked:  entry.IsRevoked,
	}
}

// Create implements AccessTokenIssuer. It signs a JWT bound to the grant
// attributes, persists it and warms the validation cache.
func (s *TokenService) Create(ctx context.Context, clientID, userID, scope, acr string) (*domain.Token, error) {
	now := time.Now()
	tokenID := uuid.NewString()
	expiresAt := now.Add(s.ttl)

	claims := jwt.MapClaims{
		"iss": s.issuer,
		"sub": userID,
		"aud": jwt.ClaimStrings{clientID},
		"exp": jwt.NewNumericDate(expiresAt).Unix(),
		"iat": jwt.NewNumericDate(now).Unix(),
		"nbf": jwt.NewNumericDate(now).Unix(),
		"jti": tokenID,
	}
	if scope != "" {
		claims["scope"] = scope
	}
	if acr != "" {
		claims["acr"] = acr
	}

	signedToken, err := s.signer.Sign(claims, "")
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	token := &domain.Token{
		ID:         tokenID,
		TokenType:  api.TokenTypeAccessToken,
		TokenValue: signedToken,
		ClientID:   clientID,
		UserID:     userID,
		Scope:      scope,
		ACR:        acr,
		IssuedAt:   now,
		ExpiresAt:  expiresAt,
		Issuer:     s.issuer,
	}
	if err := s.repo.StoreToken(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to store access token: %w", err)
	}

	if err := s.cache.Set(ctx, toCacheEntry(token)); err != nil {
		log.Warn().Err(err).Msg("failed to cache token")
	}

	metrics.TokensCreatedTotal.Inc()
	return token, nil
}

// ValidateAccessToken resolves a presented token value into the issued
// token, rejecting unknown, expired and revoked tokens with
// ErrTokenInvalid. The cache answers the hot path; misses fall through to
// the repository and re-warm it.
func (s *TokenService) ValidateAccessToken(ctx context.Context, tokenValue string) (*domain.Token, error) {
	if entry, err := s.cache.Get(ctx, tokenValue); err == nil && entry != nil {
		if entry.IsRevoked || !entry.ExpiresAt.After(time.Now()) {
			return nil, ErrTokenInvalid
		}
		return fromCacheEntry(entry), nil
	}

	token, err := s.repo.GetAccessToken(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("failed to fetch access token: %w", err)
	}
	if token.IsRevoked || token.IsExpiredAt(time.Now()) {
		return nil, ErrTokenInvalid
	}

	if err := s.cache.Set(ctx, toCacheEntry(token)); err != nil {
		log.Warn().Err(err).Msg("failed to cache token")
	}
	return token, nil
}

// RevokeToken revokes a token by value in both the repository and the cache.
func (s *TokenService) RevokeToken(ctx context.Context, tokenValue string) error {
	if err := s.repo.RevokeToken(ctx, tokenValue); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	if err := s.cache.Delete(ctx, tokenValue); err != nil {
		log.Warn().Err(err).Msg("failed to evict revoked token from cache")
	}
	return nil
}
