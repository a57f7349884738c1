package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.pilab.hu/codegrant/domain"
	serrors "go.pilab.hu/codegrant/errors"
	"go.pilab.hu/codegrant/internal/metrics"
	applog "go.pilab.hu/codegrant/log"
)

// DefaultAuthCodeTTL is how long issued authorization codes stay
// exchangeable unless the service is configured otherwise.
const DefaultAuthCodeTTL = 10 * time.Minute

// ExchangeRequest carries the client-supplied parameters of an authorization
// code exchange. Field names are the token endpoint form parameters.
type ExchangeRequest struct {
	Code         string `form:"code" json:"code"`
	RedirectURI  string `form:"redirect_uri" json:"redirect_uri,omitempty"`
	CodeVerifier string `form:"code_verifier" json:"code_verifier,omitempty"`
}

// AccessTokenIssuer is the token-issuance collaborator consumed by Issue.
// It is opaque to the exchange beyond its four inputs.
type AccessTokenIssuer interface {
	Create(ctx context.Context, clientID, userID, scope, acr string) (*domain.Token, error)
}

// GrantService issues authorization codes and verifies their exchange for
// access tokens, including the PKCE extension. It holds no per-request
// state; every exchange is validated independently against the code store.
type GrantService struct {
	codes   domain.AuthorizationCodeRepository
	clock   domain.Clock
	codeTTL time.Duration
	logger  applog.Logger
}

// NewGrantService creates a GrantService on top of the given code store.
// A nil clock falls back to the system clock, a zero TTL to
// DefaultAuthCodeTTL.
func NewGrantService(
	codes domain.AuthorizationCodeRepository,
	clock domain.Clock,
	codeTTL time.Duration,
	logger applog.Logger,
) *GrantService {
	if clock == nil {
		clock = domain.SystemClock()
	}
	if codeTTL <= 0 {
		codeTTL = DefaultAuthCodeTTL
	}
	return &GrantService{
		codes:   codes,
		clock:   clock,
		codeTTL: codeTTL,
		logger:  logger,
	}
}

// Validate runs the ordered checks of the authorization code exchange and,
// when every check passes, returns the immutable grant context token
// issuance consumes. The first failing check wins; client-addressable
// failures come back as *errors.OAuth2Error, a record violating the storage
// contract as *errors.ContractViolationError, and code store I/O failures
// wrapped as plain errors.
//
// Validate never mutates the stored record. The code is invalidated by
// Issue, once a token has actually been created from the grant.
func (s *GrantService) Validate(ctx context.Context, req *ExchangeRequest) (*domain.GrantContext, error) {
	if req.Code == "" {
		return nil, s.reject(serrors.NewInvalidRequest("Missing parameter: code is required"))
	}

	authCode, err := s.codes.GetAuthCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, domain.ErrAuthCodeNotFound) {
			return nil, s.reject(serrors.NewInvalidGrant("Authorization code doesn't exist or is invalid for the client"))
		}
		return nil, fmt.Errorf("fetching authorization code: %w", err)
	}
	// A consumed code is indistinguishable from an unknown one on the wire.
	if authCode.Used {
		return nil, s.reject(serrors.NewInvalidGrant("Authorization code doesn't exist or is invalid for the client"))
	}

	if authCode.HasRedirectURI() && !redirectURIMatches(*authCode.RedirectURI, req.RedirectURI) {
		return nil, s.reject(serrors.NewRedirectURIMismatch())
	}

	if authCode.ExpiresAt == nil {
		return nil, serrors.NewContractViolation(`authorization code record is missing "expires_at"`)
	}
	if authCode.IsExpiredAt(s.clock.Now()) {
		return nil, s.reject(serrors.NewInvalidGrant("The authorization code has expired"))
	}

	if authCode.HasCodeChallenge() {
		if err := VerifyCodeVerifier(*authCode.CodeChallenge, authCode.ChallengeMethod(), req.CodeVerifier); err != nil {
			var oerr *serrors.OAuth2Error
			if errors.As(err, &oerr) {
				return nil, s.reject(oerr)
			}
			return nil, err
		}
	}

	s.logger.Debug(ctx, "authorization code validated", map[string]any{
		"client_id": authCode.ClientID,
	})
	return domain.NewGrantContext(authCode, req.Code), nil
}

// Issue exchanges a validated grant for an access token: it delegates token
// creation to the issuer, then invalidates the code so it can never be
// exchanged again, and marks the grant consumed. When the issuer fails, the
// code is left untouched and the exchange may be retried.
func (s *GrantService) Issue(ctx context.Context, grant *domain.GrantContext, issuer AccessTokenIssuer) (*domain.Token, error) {
	if grant.Consumed() {
		return nil, domain.ErrGrantConsumed
	}

	token, err := issuer.Create(ctx, grant.ClientID(), grant.UserID(), grant.Scope(), grant.ACR())
	if err != nil {
		return nil, fmt.Errorf("creating access token: %w", err)
	}

	// The token exists from here on. An invalidation failure must not turn
	// a minted credential into a client-visible error; it gets logged and
	// the code is left for the expiry sweep.
	if err := s.codes.InvalidateAuthCode(ctx, grant.Code()); err != nil {
		s.logger.Error(ctx, "failed to invalidate authorization code after token issuance", err, map[string]any{
			"client_id": grant.ClientID(),
		})
	}
	if err := grant.Consume(); err != nil {
		return nil, err
	}

	metrics.CodeExchangesTotal.Inc()
	return token, nil
}

// AuthCodeParams carries the attributes bound to a newly issued
// authorization code.
type AuthCodeParams struct {
	ClientID            string
	UserID              string
	RedirectURI         string
	Scope               string
	ACR                 string
	CodeChallenge       string
	CodeChallengeMethod domain.CodeChallengeMethod
}

// GenerateAuthCode mints a single-use authorization code bound to the given
// attributes and persists it with the configured TTL. The returned code is
// the value handed to the client on the authorization response.
func (s *GrantService) GenerateAuthCode(ctx context.Context, params AuthCodeParams) (string, error) {
	if params.ClientID == "" {
		return "", serrors.NewInvalidRequest("Missing parameter: client_id is required")
	}
	if params.CodeChallenge != "" {
		switch params.CodeChallengeMethod {
		case domain.ChallengeMethodS256, domain.ChallengeMethodPlain, "":
		default:
			return "", serrors.NewCodeChallengeMethodInvalid()
		}
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating authorization code: %w", err)
	}
	code := base64.RawURLEncoding.EncodeToString(b)

	now := s.clock.Now()
	expiresAt := now.Add(s.codeTTL)
	authCode := &domain.AuthCode{
		Code:          code,
		ClientID:      params.ClientID,
		CreatedAt:     now,
		ExpiresAt:     &expiresAt,
		UserID:        optString(params.UserID),
		RedirectURI:   optString(params.RedirectURI),
		Scope:         optString(params.Scope),
		ACR:           optString(params.ACR),
		CodeChallenge: optString(params.CodeChallenge),
	}
	if params.CodeChallenge != "" && params.CodeChallengeMethod != "" {
		method := params.CodeChallengeMethod
		authCode.CodeChallengeMethod = &method
	}

	if err := s.codes.SaveAuthCode(ctx, authCode); err != nil {
		return "", fmt.Errorf("saving authorization code: %w", err)
	}

	metrics.AuthCodesIssuedTotal.Inc()
	s.logger.Debug(ctx, "authorization code issued", map[string]any{
		"client_id": params.ClientID,
	})
	return code, nil
}

// reject counts a client-facing exchange failure before handing it back.
func (s *GrantService) reject(oerr *serrors.OAuth2Error) *serrors.OAuth2Error {
	metrics.CodeExchangeFailuresTotal.WithLabelValues(oerr.Code).Inc()
	return oerr
}

// redirectURIMatches compares the stored and presented redirect URIs after
// URL-decoding each side independently. A missing presented value, or one
// that cannot be decoded, never matches.
func redirectURIMatches(stored, presented string) bool {
	if presented == "" {
		return false
	}
	storedDecoded, err := url.QueryUnescape(stored)
	if err != nil {
		return false
	}
	presentedDecoded, err := url.QueryUnescape(presented)
	if err != nil {
		return false
	}
	return storedDecoded == presentedDecoded
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
