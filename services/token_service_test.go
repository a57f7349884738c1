package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/codegrant/api"
	"go.pilab.hu/codegrant/cache"
	"go.pilab.hu/codegrant/domain"
)

// --- Mock Implementations ---

// MockTokenRepository mocks domain.TokenRepository.
type MockTokenRepository struct {
	mock.Mock
}

func (m *MockTokenRepository) StoreToken(ctx context.Context, token *domain.Token) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockTokenRepository) GetAccessToken(ctx context.Context, tokenValue string) (*domain.Token, error) {
	args := m.Called(ctx, tokenValue)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Token), args.Error(1)
}

func (m *MockTokenRepository) RevokeToken(ctx context.Context, tokenValue string) error {
	args := m.Called(ctx, tokenValue)
	return args.Error(0)
}

func (m *MockTokenRepository) DeleteExpiredTokens(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockTokenStore mocks cache.TokenStore.
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) Set(ctx context.Context, token *cache.TokenEntry) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockTokenStore) Get(ctx context.Context, token string) (*cache.TokenEntry, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cache.TokenEntry), args.Error(1)
}

func (m *MockTokenStore) Delete(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockTokenStore) DeleteExpired(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTokenStore) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTokenStore) Count(ctx context.Context) int {
	args := m.Called(ctx)
	return args.Int(0)
}

func newTestTokenService(repo domain.TokenRepository, store cache.TokenStore) *TokenService {
	signer := NewTokenSigner()
	signer.AddKeySigner("test-secret")
	return NewTokenService(repo, store, "https://sso.example.com", signer, time.Hour)
}

func TestTokenService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("signs, stores and caches the token", func(t *testing.T) {
		repo := new(MockTokenRepository)
		store := new(MockTokenStore)
		repo.On("StoreToken", ctx, mock.AnythingOfType("*domain.Token")).Return(nil).Once()
		store.On("Set", ctx, mock.AnythingOfType("*cache.TokenEntry")).Return(nil).Once()
		svc := newTestTokenService(repo, store)

		token, err := svc.Create(ctx, "client-1", "user-1", "profile email", "urn:mace:incommon:iap:silver")

		require.NoError(t, err)
		assert.Equal(t, api.TokenTypeAccessToken, token.TokenType)
		assert.Equal(t, "client-1", token.ClientID)
		assert.Equal(t, "user-1", token.UserID)
		assert.Equal(t, "profile email", token.Scope)
		assert.NotEmpty(t, token.TokenValue)

		parsed, err := jwt.Parse(token.TokenValue, func(*jwt.Token) (any, error) {
			return []byte("test-secret"), nil
		})
		require.NoError(t, err)
		claims, ok := parsed.Claims.(jwt.MapClaims)
		require.True(t, ok)
		assert.Equal(t, "https://sso.example.com", claims["iss"])
		assert.Equal(t, "user-1", claims["sub"])
		assert.Equal(t, "profile email", claims["scope"])
		assert.Equal(t, "urn:mace:incommon:iap:silver", claims["acr"])
		assert.Equal(t, token.ID, claims["jti"])
		aud, err := claims.GetAudience()
		require.NoError(t, err)
		assert.Equal(t, jwt.ClaimStrings{"client-1"}, aud)

		repo.AssertExpectations(t)
		store.AssertExpectations(t)
	})

	t.Run("omits scope and acr claims when empty", func(t *testing.T) {
		repo := new(MockTokenRepository)
		store := new(MockTokenStore)
		repo.On("StoreToken", ctx, mock.Anything).Return(nil).Once()
		store.On("Set", ctx, mock.Anything).Return(nil).Once()
		svc := newTestTokenService(repo, store)

		token, err := svc.Create(ctx, "client-1", "user-1", "", "")

		require.NoError(t, err)
		parsed, err := jwt.Parse(token.TokenValue, func(*jwt.Token) (any, error) {
			return []byte("test-secret"), nil
		})
		require.NoError(t, err)
		claims := parsed.Claims.(jwt.MapClaims)
		assert.NotContains(t, claims, "scope")
		assert.NotContains(t, claims, "acr")
	})

	t.Run("fails when the repository rejects the token", func(t *testing.T) {
		repo := new(MockTokenRepository)
		store := new(MockTokenStore)
		repo.On("StoreToken", ctx, mock.Anything).Return(assert.AnError).Once()
		svc := newTestTokenService(repo, store)

		_, err := svc.Create(ctx, "client-1", "user-1", "", "")

		require.Error(t, err)
		store.AssertNotCalled(t, "Set", mock.Anything, mock.Anything)
	})
}

func TestTokenService_ValidateAccessToken(t *testing.T) {
	ctx := context.Background()

	t.Run("serves valid tokens from the cache", func(t *testing.T) {
		repo := new(MockTokenRepository)
		store := new(MockTokenStore)
		store.On("Get", ctx, "tok").Return(&cache.TokenEntry{
			ID:         "token-1",
			TokenValue: "tok",
			ClientID:   "client-1",
			UserID:     "user-1",
			Scope:      "profile",
			ExpiresAt:  time.Now().Add(time.Hour),
		}, nil).Once()
		svc := newTestTokenService(repo, store)

		token, err := svc.ValidateAccessToken(ctx, "tok")

		require.NoError(t, err)
		assert.Equal(t, "user-1", token.UserID)
		repo.AssertNotCalled(t, "GetAccessToken", mock.Anything, mock.Anything)
	})

	t.Run("rejects revoked cache entries", func(t *testing.T) {
		repo := new(MockTokenRepository)
		store := new(MockTokenStore)
		store.On("Get", ctx, "tok").Return(&cache.TokenEntry{
			TokenValue: "tok",
			ExpiresAt:  time.Now().Add(time.Hour),
			IsRevoked:  true,
		}, nil).Once()
		svc := newTestTokenService(repo, store)

		_, err := svc.ValidateAccessToken(ctx, "tok")

		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("falls through to the repository and re-warms the cache", func(t *testing.T) {
		repo := new(MockTokenRepository)
		store := new(MockTokenStore)
		store.On("Get", ctx, "tok").Return(nil, domain.ErrTokenNotFound).Once()
		repo.On("GetAccessToken", ctx, "tok").Return(&domain.Token{
			ID:         "token-1",
			TokenValue: "tok",
			UserID:     "user-1",
			ExpiresAt:  time.Now().Add(time.Hour),
		}, nil).Once()
		store.On("Set", ctx, mock.AnythingOfType("*cache.TokenEntry")).Return(nil).Once()
		svc := newTestTokenService(repo, store)

		token, err := svc.ValidateAccessToken(ctx, "tok")

		require.NoError(t, err)
		assert.Equal(t, "user-1", token.UserID)
		store.AssertExpectations(t)
	})

	t.Run("rejects unknown tokens", func(t *testing.T) {
		repo := new(MockTokenRepository)
		store := new(MockTokenStore)
		store.On("Get", ctx, "tok").Return(nil, domain.ErrTokenNotFound).Once()
		repo.On("GetAccessToken", ctx, "tok").Return(nil, domain.ErrTokenNotFound).Once()
		svc := newTestTokenService(repo, store)

		_, err := svc.ValidateAccessToken(ctx, "tok")

		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("rejects expired tokens from the repository", func(t *testing.T) {
		repo := new(MockTokenRepository)
		store := new(MockTokenStore)
		store.On("Get", ctx, "tok").Return(nil, domain.ErrTokenNotFound).Once()
		repo.On("GetAccessToken", ctx, "tok").Return(&domain.Token{
			TokenValue: "tok",
			ExpiresAt:  time.Now().Add(-time.Minute),
		}, nil).Once()
		svc := newTestTokenService(repo, store)

		_, err := svc.ValidateAccessToken(ctx, "tok")

		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}

func TestTokenService_RevokeToken(t *testing.T) {
	ctx := context.Background()

	repo := new(MockTokenRepository)
	store := new(MockTokenStore)
	repo.On("RevokeToken", ctx, "tok").Return(nil).Once()
	store.On("Delete", ctx, "tok").Return(nil).Once()
	svc := newTestTokenService(repo, store)

	err := svc.RevokeToken(ctx, "tok")

	require.NoError(t, err)
	repo.AssertExpectations(t)
	store.AssertExpectations(t)
}
