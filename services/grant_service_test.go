package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"go.pilab.hu/codegrant/domain"
	serrors "go.pilab.hu/codegrant/errors"
	applog "go.pilab.hu/codegrant/log"
)

// --- Mock Implementations ---

// MockAuthCodeRepository mocks domain.AuthorizationCodeRepository.
type MockAuthCodeRepository struct {
	mock.Mock
}

func (m *MockAuthCodeRepository) SaveAuthCode(ctx context.Context, code *domain.AuthCode) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockAuthCodeRepository) GetAuthCode(ctx context.Context, code string) (*domain.AuthCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthCode), args.Error(1)
}

func (m *MockAuthCodeRepository) InvalidateAuthCode(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockAuthCodeRepository) DeleteExpiredAuthCodes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockAccessTokenIssuer mocks the token-issuance collaborator.
type MockAccessTokenIssuer struct {
	mock.Mock
}

func (m *MockAccessTokenIssuer) Create(ctx context.Context, clientID, userID, scope, acr string) (*domain.Token, error) {
	args := m.Called(ctx, clientID, userID, scope, acr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Token), args.Error(1)
}

// fixedClock pins the validator's view of time for deterministic expiry
// checks.
type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// --- Helpers ---

func strPtr(s string) *string { return &s }

func methodPtr(m domain.CodeChallengeMethod) *domain.CodeChallengeMethod { return &m }

func assertIsOAuthErrorCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	var oerr *serrors.OAuth2Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, wantCode, oerr.Code)
}

func newTestGrantService(codes domain.AuthorizationCodeRepository, now time.Time) *GrantService {
	return NewGrantService(codes, fixedClock{now: now}, 10*time.Minute, applog.NewZerologAdapter(zerolog.Disabled, false))
}

// validAuthCode builds a record that passes every check: unexpired,
// unconsumed, no redirect binding, no PKCE.
func validAuthCode(now time.Time) *domain.AuthCode {
	expires := now.Add(60 * time.Second)
	return &domain.AuthCode{
		Code:      "abc123",
		ClientID:  "client-1",
		UserID:    strPtr("user-1"),
		Scope:     strPtr("profile email"),
		ACR:       strPtr("urn:mace:incommon:iap:silver"),
		CreatedAt: now.Add(-time.Minute),
		ExpiresAt: &expires,
	}
}

func TestGrantService_Validate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("returns grant context for a valid code", func(t *testing.T) {
		repo := new(MockAuthCodeRepository)
		repo.On("GetAuthCode", ctx, "abc123").Return(validAuthCode(now), nil).Once()
		svc := newTestGrantService(repo, now)

		grant, err := svc.Validate(ctx, &ExchangeRequest{Code: "abc123"})

		require.NoError(t, err)
		require.NotNil(t, grant)
		assert.Equal(t, "client-1", grant.ClientID())
		assert.Equal(t, "user-1", grant.UserID())
		assert.Equal(t, "profile email", grant.Scope())
		assert.Equal(t, "urn:mace:incommon:iap:silver", grant.ACR())
		assert.Equal(t, "abc123", grant.Code())
		assert.False(t, grant.Consumed())
		repo.AssertExpectations(t)
	})

	t.Run("requires the code parameter", func(t *testing.T) {
		repo := new(MockAuthCodeRepository)
		svc := newTestGrantService(repo, now)

		_, err := svc.Validate(ctx, &ExchangeRequest{})

		assertIsOAuthErrorCode(t, err, serrors.InvalidRequest)
		assert.Contains(t, err.Error(), "Missing parameter: code is required")
		repo.AssertNotCalled(t, "GetAuthCode", mock.Anything, mock.Anything)
	})

	t.Run("rejects unknown codes", func(t *testing.T) {
		repo := new(MockAuthCodeRepository)
		repo.On("GetAuthCode", ctx, "nope").Return(nil, domain.ErrAuthCodeNotFound).Once()
		svc := newTestGrantService(repo, now)

		_, err := svc.Validate(ctx, &ExchangeRequest{Code: "nope"})

		assertIsOAuthErrorCode(t, err, serrors.InvalidGrant)
		assert.Contains(t, err.Error(), "Authorization code doesn't exist or is invalid for the client")
	})

	t.Run("rejects consumed codes", func(t *testing.T) {
		record := validAuthCode(now)
		record.Used = true
		repo := new(MockAuthCodeRepository)
		repo.On("GetAuthCode", ctx, "abc123").Return(record, nil).Once()
		svc := newTestGrantService(repo, now)

		_, err := svc.Validate(ctx, &ExchangeRequest{Code: "abc123"})

		assertIsOAuthErrorCode(t, err, serrors.InvalidGrant)
	})

	t.Run("propagates storage failures as plain errors", func(t *testing.T) {
		repo := new(MockAuthCodeRepository)
		repo.On("GetAuthCode", ctx, "abc123").Return(nil, errors.New("connection reset")).Once()
		svc := newTestGrantService(repo, now)

		_, err := svc.Validate(ctx, &ExchangeRequest{Code: "abc123"})

		require.Error(t, err)
		var oerr *serrors.OAuth2Error
		assert.False(t, errors.As(err, &oerr), "storage failures must not surface as client errors")
		assert.ErrorContains(t, err, "connection reset")
	})

	t.Run("rejects expired codes", func(t *testing.T) {
		record := validAuthCode(now)
		expired := now.Add(-time.Second)
		record.ExpiresAt = &expired
		repo := new(MockAuthCodeRepository)
		repo.On("GetAuthCode", ctx, "abc123").Return(record, nil).Once()
		svc := newTestGrantService(repo, now)

		_, err := svc.Validate(ctx, &ExchangeRequest{Code: "abc123"})

		assertIsOAuthErrorCode(t, err, serrors.InvalidGrant)
		assert.Contains(t, err.Error(), "The authorization code has expired")
	})

	t.Run("rejects codes expiring exactly now", func(t *testing.T) {
		record := validAuthCode(now)
		record.ExpiresAt = &now
		repo := new(MockAuthCodeRepository)
		repo.On("GetAuthCode", ctx, "abc123").Return(record, nil).Once()
		svc := newTestGrantService(repo, now)

		_, err := svc.Validate(ctx, &ExchangeRequest{Code: "abc123"})

		assertIsOAuthErrorCode(t, err, serrors.InvalidGrant)
	})

	t.Run("fails fatally when the record has no expiry", func(t *testing.T) {
		record := validAuthCode(now)
		record.ExpiresAt = nil
		repo := new(MockAuthCodeRepository)
		repo.On("GetAuthCode", ctx, "abc123").Return(record, nil).Once()
		svc := newTestGrantService(repo, now)

		_, err := svc.Validate(ctx, &ExchangeRequest{Code: "abc123"})

		var cverr *serrors.ContractViolationError
		require.ErrorAs(t, err, &cverr)
		var oerr *serrors.OAuth2Error
		assert.False(t, errors.As(err, &oerr), "contract violations must stay out of the client error surface")
	})

	t.Run("requires redirect_uri when one is stored", func(t *testing.T) {
		record := validAuthCode(now)
		record.RedirectURI = strPtr("https://client.example.com/cb")
		repo := new(MockAuthCodeRepository)
		repo.On("GetAuthCode", ctx, "abc123").Return(record, nil).Once()
		svc := newTestGrantService(repo, now)

		_, err := svc.Validate(ctx, &ExchangeRequest{Code: "abc123"})

		assertIsOAuthErrorCode(t, err, serrors.RedirectURIMismatch)
	})

	t.Run("rejects a differing redirect_uri", func(t *testing.T) {
		record := validAuthCode(now)
		record.RedirectURI = strPtr("https://client.example.com/cb")
		repo := new(MockAuthCodeRepository)
		repo.On("GetAuthCode", ctx, "abc123").Return(record, nil).Once()
		svc := newTestGrantService(repo, now)

		_, err := svc.Validate(ctx, &ExchangeRequest{
			Code:        "abc123",
			RedirectURI: "https://attacker.example.com/cb",
		})

		assertIsOAuthErrorCode(t, err, serrors.RedirectURIMismatch)
	})

	t.Run("accepts an exact redirect_uri match", func(t *testing.T) {
		record := validAuthCode(now)
		record.RedirectURI = strPtr("https://client.example.com/cb")
		repo := new(MockAuthCodeRepository)
		repo.On("GetAuthCode", ctx, "abc123").Return(record, nil).Once()
		svc := newTestGrantService(repo, now)

		_, err := svc.Validate(ctx, &ExchangeRequest{
			Code:        "abc123",
			RedirectURI: "https://client.example.com/cb",
		})

		require.NoError(t, err)
	})

	t.Run("matches redirect URIs after URL decoding", func(t *testing.T) {
		record := validAuthCode(now)
		record.RedirectURI = strPtr("https%3A%2F%2Fclient.example.com%2Fcb")
		repo := new(MockAuthCodeRepository)
		repo.On("GetAuthCode", ctx, "abc123").Return(record, nil).Once()
		svc := newTestGrantService(repo, now)

		_, err := svc.Validate(ctx, &ExchangeRequest{
			Code:        "abc123",
			RedirectURI: "https://client.example.com/cb",
		})

		require.NoError(t, err)
	})

	t.Run("ignores redirect_uri when none is stored", func(t *testing.T) {
		repo := new(MockAuthCodeRepository)
		repo.On("GetAuthCode", ctx, "abc123").Return(validAuthCode(now), nil).Once()
		svc := newTestGrantService(repo, now)

		_, err := svc.Validate(ctx, &ExchangeRequest{
			Code:        "abc123",
			RedirectURI: "https://client.example.com/anything",
		})

		require.NoError(t, err)
	})

	t.Run("verifies the PKCE challenge when one is stored", func(t *testing.T) {
		verifier := oauth2.GenerateVerifier()
		record := validAuthCode(now)
		record.CodeChallenge = strPtr(oauth2.S256ChallengeFromVerifier(verifier))
		record.CodeChallengeMethod = methodPtr(domain.ChallengeMethodS256)
		repo := new(MockAuthCodeRepository)
		repo.On("GetAuthCode", ctx, "abc123").Return(record, nil).Once()
		svc := newTestGrantService(repo, now)

		grant, err := svc.Validate(ctx, &ExchangeRequest{Code: "abc123", CodeVerifier: verifier})

		require.NoError(t, err)
		assert.Equal(t, "client-1", grant.ClientID())
	})

	t.Run("rejects a missing verifier when a challenge is stored", func(t *testing.T) {
		record := validAuthCode(now)
		record.CodeChallenge = strPtr(oauth2.S256ChallengeFromVerifier(oauth2.GenerateVerifier()))
		record.CodeChallengeMethod = methodPtr(domain.ChallengeMethodS256)
		repo := new(MockAuthCodeRepository)
		repo.On("GetAuthCode", ctx, "abc123").Return(record, nil).Once()
		svc := newTestGrantService(repo, now)

		_, err := svc.Validate(ctx, &ExchangeRequest{Code: "abc123"})

		assertIsOAuthErrorCode(t, err, serrors.CodeVerifierMissing)
	})

	t.Run("skips PKCE for records without a challenge", func(t *testing.T) {
		repo := new(MockAuthCodeRepository)
		repo.On("GetAuthCode", ctx, "abc123").Return(validAuthCode(now), nil).Once()
		svc := newTestGrantService(repo, now)

		_, err := svc.Validate(ctx, &ExchangeRequest{Code: "abc123", CodeVerifier: "ignored-when-no-challenge-stored"})

		require.NoError(t, err)
	})
}

func TestGrantService_Issue(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	issuedToken := &domain.Token{
		ID:         "token-1",
		TokenValue: "signed.jwt.value",
		ClientID:   "client-1",
		UserID:     "user-1",
		ExpiresAt:  now.Add(time.Hour),
	}

	validateGrant := func(t *testing.T, repo *MockAuthCodeRepository) *domain.GrantContext {
		t.Helper()
		repo.On("GetAuthCode", ctx, "abc123").Return(validAuthCode(now), nil).Once()
		svc := newTestGrantService(repo, now)
		grant, err := svc.Validate(ctx, &ExchangeRequest{Code: "abc123"})
		require.NoError(t, err)
		return grant
	}

	t.Run("issues a token and invalidates the code", func(t *testing.T) {
		repo := new(MockAuthCodeRepository)
		grant := validateGrant(t, repo)
		issuer := new(MockAccessTokenIssuer)
		issuer.On("Create", ctx, "client-1", "user-1", "profile email", "urn:mace:incommon:iap:silver").
			Return(issuedToken, nil).Once()
		repo.On("InvalidateAuthCode", ctx, "abc123").Return(nil).Once()
		svc := newTestGrantService(repo, now)

		token, err := svc.Issue(ctx, grant, issuer)

		require.NoError(t, err)
		assert.Equal(t, "signed.jwt.value", token.TokenValue)
		assert.True(t, grant.Consumed())
		issuer.AssertExpectations(t)
		repo.AssertExpectations(t)
	})

	t.Run("leaves the code valid when token creation fails", func(t *testing.T) {
		repo := new(MockAuthCodeRepository)
		grant := validateGrant(t, repo)
		issuer := new(MockAccessTokenIssuer)
		issuer.On("Create", ctx, "client-1", "user-1", "profile email", "urn:mace:incommon:iap:silver").
			Return(nil, errors.New("signer unavailable")).Once()
		svc := newTestGrantService(repo, now)

		_, err := svc.Issue(ctx, grant, issuer)

		require.Error(t, err)
		assert.False(t, grant.Consumed())
		repo.AssertNotCalled(t, "InvalidateAuthCode", mock.Anything, mock.Anything)
	})

	t.Run("returns the token even when invalidation fails", func(t *testing.T) {
		repo := new(MockAuthCodeRepository)
		grant := validateGrant(t, repo)
		issuer := new(MockAccessTokenIssuer)
		issuer.On("Create", ctx, "client-1", "user-1", "profile email", "urn:mace:incommon:iap:silver").
			Return(issuedToken, nil).Once()
		repo.On("InvalidateAuthCode", ctx, "abc123").Return(errors.New("write timeout")).Once()
		svc := newTestGrantService(repo, now)

		token, err := svc.Issue(ctx, grant, issuer)

		require.NoError(t, err)
		assert.Equal(t, issuedToken, token)
		assert.True(t, grant.Consumed())
	})

	t.Run("rejects a consumed grant", func(t *testing.T) {
		repo := new(MockAuthCodeRepository)
		grant := validateGrant(t, repo)
		issuer := new(MockAccessTokenIssuer)
		issuer.On("Create", ctx, "client-1", "user-1", "profile email", "urn:mace:incommon:iap:silver").
			Return(issuedToken, nil).Once()
		repo.On("InvalidateAuthCode", ctx, "abc123").Return(nil).Once()
		svc := newTestGrantService(repo, now)

		_, err := svc.Issue(ctx, grant, issuer)
		require.NoError(t, err)

		_, err = svc.Issue(ctx, grant, issuer)
		assert.ErrorIs(t, err, domain.ErrGrantConsumed)
		issuer.AssertNumberOfCalls(t, "Create", 1)
	})

	t.Run("a code cannot be exchanged twice", func(t *testing.T) {
		repo := new(MockAuthCodeRepository)
		grant := validateGrant(t, repo)
		issuer := new(MockAccessTokenIssuer)
		issuer.On("Create", ctx, "client-1", "user-1", "profile email", "urn:mace:incommon:iap:silver").
			Return(issuedToken, nil).Once()
		repo.On("InvalidateAuthCode", ctx, "abc123").Return(nil).Once()
		svc := newTestGrantService(repo, now)

		_, err := svc.Issue(ctx, grant, issuer)
		require.NoError(t, err)

		// The store now reports the code as consumed; a replayed exchange
		// must be indistinguishable from an unknown code.
		replayed := validAuthCode(now)
		replayed.Used = true
		repo.On("GetAuthCode", ctx, "abc123").Return(replayed, nil).Once()

		_, err = svc.Validate(ctx, &ExchangeRequest{Code: "abc123"})
		assertIsOAuthErrorCode(t, err, serrors.InvalidGrant)
	})
}

func TestGrantService_GenerateAuthCode(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("persists a record with the configured TTL", func(t *testing.T) {
		repo := new(MockAuthCodeRepository)
		var saved *domain.AuthCode
		repo.On("SaveAuthCode", ctx, mock.MatchedBy(func(rec *domain.AuthCode) bool {
			return rec.ClientID == "client-1" && !rec.Used && rec.Code != ""
		})).Run(func(args mock.Arguments) {
			saved = args.Get(1).(*domain.AuthCode)
		}).Return(nil).Once()
		svc := newTestGrantService(repo, now)

		code, err := svc.GenerateAuthCode(ctx, AuthCodeParams{
			ClientID:    "client-1",
			UserID:      "user-1",
			RedirectURI: "https://client.example.com/cb",
			Scope:       "profile",
		})

		require.NoError(t, err)
		require.NotNil(t, saved)
		assert.Equal(t, saved.Code, code)
		assert.Len(t, code, 43) // 32 random bytes, base64url
		require.NotNil(t, saved.ExpiresAt)
		assert.Equal(t, now.Add(10*time.Minute), *saved.ExpiresAt)
		require.NotNil(t, saved.RedirectURI)
		assert.Equal(t, "https://client.example.com/cb", *saved.RedirectURI)
		assert.Nil(t, saved.CodeChallenge)
		repo.AssertExpectations(t)
	})

	t.Run("requires a client id", func(t *testing.T) {
		repo := new(MockAuthCodeRepository)
		svc := newTestGrantService(repo, now)

		_, err := svc.GenerateAuthCode(ctx, AuthCodeParams{})

		assertIsOAuthErrorCode(t, err, serrors.InvalidRequest)
		repo.AssertNotCalled(t, "SaveAuthCode", mock.Anything, mock.Anything)
	})

	t.Run("rejects unknown challenge methods", func(t *testing.T) {
		repo := new(MockAuthCodeRepository)
		svc := newTestGrantService(repo, now)

		_, err := svc.GenerateAuthCode(ctx, AuthCodeParams{
			ClientID:            "client-1",
			CodeChallenge:       "anything",
			CodeChallengeMethod: "S512",
		})

		assertIsOAuthErrorCode(t, err, serrors.CodeChallengeMethodInvalid)
	})

	t.Run("stores the challenge and method when provided", func(t *testing.T) {
		repo := new(MockAuthCodeRepository)
		challenge := oauth2.S256ChallengeFromVerifier(oauth2.GenerateVerifier())
		repo.On("SaveAuthCode", ctx, mock.MatchedBy(func(rec *domain.AuthCode) bool {
			return rec.HasCodeChallenge() &&
				*rec.CodeChallenge == challenge &&
				rec.ChallengeMethod() == domain.ChallengeMethodS256
		})).Return(nil).Once()
		svc := newTestGrantService(repo, now)

		_, err := svc.GenerateAuthCode(ctx, AuthCodeParams{
			ClientID:            "client-1",
			CodeChallenge:       challenge,
			CodeChallengeMethod: domain.ChallengeMethodS256,
		})

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}
