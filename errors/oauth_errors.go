package errors

import (
	"fmt"
	"net/http"
)

// OAuth2Error represents a standardized OAuth 2.0 error. It is the
// client-facing error tier: every validation failure of the token exchange
// surfaces as one of these, serialized onto the wire as-is.
type OAuth2Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	URI         string `json:"error_uri,omitempty"`
	State       string `json:"state,omitempty"`
}

func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// StatusCode returns the HTTP status the error maps to on the token
// endpoint.
func (e *OAuth2Error) StatusCode() int {
	if e.Code == ServerError {
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

// Error codes emitted by the authorization code exchange.
const (
	InvalidRequest       = "invalid_request"
	InvalidGrant         = "invalid_grant"
	RedirectURIMismatch  = "redirect_uri_mismatch"
	UnsupportedGrantType = "unsupported_grant_type"
	ServerError          = "server_error"

	// PKCE verification codes (RFC 7636, Section 4.6)
	CodeVerifierMissing        = "code_verifier_missing"
	CodeVerifierInvalid        = "code_verifier_invalid"
	CodeChallengeMethodInvalid = "code_challenge_method_invalid"
	CodeVerifierMismatch       = "code_verifier_mismatch"
)

// Common error constructors
func NewInvalidRequest(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidRequest,
		Description: description,
	}
}

func NewInvalidGrant(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidGrant,
		Description: description,
	}
}

func NewRedirectURIMismatch() *OAuth2Error {
	return &OAuth2Error{
		Code:        RedirectURIMismatch,
		Description: "The redirect URI is missing or do not match",
		URI:         "https://datatracker.ietf.org/doc/html/rfc6749#section-4.1.3",
	}
}

func NewUnsupportedGrantType() *OAuth2Error {
	return &OAuth2Error{
		Code:        UnsupportedGrantType,
		Description: "The authorization grant type is not supported",
	}
}

func NewServerError(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        ServerError,
		Description: description,
	}
}

// PKCE verification errors
func NewCodeVerifierMissing() *OAuth2Error {
	return &OAuth2Error{
		Code:        CodeVerifierMissing,
		Description: "The PKCE code verifier parameter is required.",
	}
}

func NewCodeVerifierInvalid() *OAuth2Error {
	return &OAuth2Error{
		Code:        CodeVerifierInvalid,
		Description: "The PKCE code verifier parameter is invalid.",
	}
}

func NewCodeChallengeMethodInvalid() *OAuth2Error {
	return &OAuth2Error{
		Code:        CodeChallengeMethodInvalid,
		Description: "Unknown PKCE code challenge method.",
	}
}

func NewCodeVerifierMismatch() *OAuth2Error {
	return &OAuth2Error{
		Code:        CodeVerifierMismatch,
		Description: "The PKCE code verifier parameter does not match the code challenge.",
	}
}
