package echo

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/codegrant/api"
	"go.pilab.hu/codegrant/domain"
	serrors "go.pilab.hu/codegrant/errors"
	"go.pilab.hu/codegrant/internal/audit"
	"go.pilab.hu/codegrant/services"
)

// GrantType enumeration for OAuth2 grant types.
type GrantType string

// GrantTypeAuthorizationCode is the only grant type this server exchanges.
const GrantTypeAuthorizationCode GrantType = "authorization_code"

// HealthFunc probes a backing service for the health endpoint.
type HealthFunc func(ctx context.Context) error

// OAuth2API struct to hold dependencies.
type OAuth2API struct {
	grants *services.GrantService
	tokens *services.TokenService
	claims *services.UserClaimsService
	health HealthFunc
}

// NewOAuth2API initializes the OAuth2 API. The health probe may be nil,
// in which case /healthz only reports process liveness.
func NewOAuth2API(
	grants *services.GrantService,
	tokens *services.TokenService,
	claims *services.UserClaimsService,
	health HealthFunc,
) *OAuth2API {
	return &OAuth2API{
		grants: grants,
		tokens: tokens,
		claims: claims,
		health: health,
	}
}

// RegisterRoutes registers the OAuth2 routes.
func (oa *OAuth2API) RegisterRoutes(e *echo.Echo) {
	e.POST("/oauth2/token", oa.TokenHandler)
	e.GET("/oauth2/userinfo", oa.UserInfoHandler)
	e.GET("/healthz", oa.HealthzHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// TokenHandler handles OAuth2 token requests. It dispatches on grant_type,
// runs the exchange and renders either the token response or the exchange's
// OAuth2 error with its status code. Failures that the client cannot act on
// surface as an opaque server_error; their detail stays in the log.
func (oa *OAuth2API) TokenHandler(c echo.Context) error {
	grantType := c.FormValue("grant_type")

	var tokenResponse *api.TokenResponse
	var processErr error

	switch GrantType(grantType) {
	case GrantTypeAuthorizationCode:
		tokenResponse, processErr = oa.handleAuthorizationCodeGrant(c)
	default:
		return c.JSON(http.StatusBadRequest, serrors.NewUnsupportedGrantType())
	}

	if processErr != nil {
		var oauthErr *serrors.OAuth2Error
		if stderrors.As(processErr, &oauthErr) {
			log.Debug().
				Str("grant_type", grantType).
				Str("error_code", oauthErr.Code).
				Msg("Token exchange rejected")

			return c.JSON(oauthErr.StatusCode(), oauthErr)
		}

		log.Error().Err(processErr).Msg("Token exchange failed")

		return c.JSON(http.StatusInternalServerError, serrors.NewServerError("Failed to issue token"))
	}

	log.Info().
		Str("grant_type", grantType).
		Str("token_type", tokenResponse.TokenType).
		Int("expires_in", tokenResponse.ExpiresIn).
		Msg("Token issued")

	return c.JSON(http.StatusOK, tokenResponse)
}

// handleAuthorizationCodeGrant validates the presented code, redirect URI and
// PKCE verifier, then exchanges the grant for an access token.
func (oa *OAuth2API) handleAuthorizationCodeGrant(c echo.Context) (*api.TokenResponse, error) {
	req := &services.ExchangeRequest{
		Code:         c.FormValue("code"),
		RedirectURI:  c.FormValue("redirect_uri"),
		CodeVerifier: c.FormValue("code_verifier"),
	}

	ctx := c.Request().Context()

	grant, err := oa.grants.Validate(ctx, req)
	if err != nil {
		audit.Log("TokenExchange", "", "", "Authorization code validation failed", false, err)
		return nil, err
	}

	token, err := oa.grants.Issue(ctx, grant, oa.tokens)
	if err != nil {
		audit.Log("TokenExchange", grant.ClientID(), grant.UserID(), "Token issuance failed", false, err)
		return nil, err
	}

	audit.Log("TokenExchange", token.ClientID, token.UserID, "Authorization code exchanged", true, nil)

	return &api.TokenResponse{
		AccessToken: token.TokenValue,
		TokenType:   "Bearer",
		ExpiresIn:   int(token.ExpiresAt.Sub(token.IssuedAt).Seconds()),
		Scope:       token.Scope,
	}, nil
}

// UserInfoHandler serves the claims of the user behind a bearer token. The
// claims are filtered by the scope the token was issued with.
func (oa *OAuth2API) UserInfoHandler(c echo.Context) error {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing_token"})
	}

	tokenParts := strings.Split(authHeader, " ")
	if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_token"})
	}

	ctx := c.Request().Context()

	token, err := oa.tokens.ValidateAccessToken(ctx, tokenParts[1])
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_token"})
	}

	claims, err := oa.claims.GetUserClaims(ctx, token.UserID, token.Scope)
	if err != nil {
		// A valid token whose subject no longer exists is a dead token.
		if stderrors.Is(err, domain.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_token"})
		}

		log.Error().Err(err).Msg("Failed to resolve user claims")

		return c.JSON(http.StatusInternalServerError, serrors.NewServerError("Failed to resolve user claims"))
	}

	return c.JSON(http.StatusOK, claims)
}

// HealthzHandler reports liveness, and backend health when a probe was wired.
func (oa *OAuth2API) HealthzHandler(c echo.Context) error {
	if oa.health != nil {
		if err := oa.health(c.Request().Context()); err != nil {
			log.Warn().Err(err).Msg("Health probe failed")

			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unhealthy"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
