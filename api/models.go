package api

// TokenTypeAccessToken is the only token type this server issues.
const TokenTypeAccessToken = "access_token"

// TokenResponse represents an OAuth 2.0 token response
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}
