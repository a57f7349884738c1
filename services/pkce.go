package services

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"go.pilab.hu/codegrant/domain"
	serrors "go.pilab.hu/codegrant/errors"
)

// Code verifier length bounds from RFC 7636, Section 4.1.
const (
	MinCodeVerifierLength = 43
	MaxCodeVerifierLength = 128
)

// VerifyCodeVerifier proves possession of the PKCE verifier bound to an
// authorization code (RFC 7636, Section 4.6). The challenge is the stored
// code_challenge; method selects the transform. An empty method means
// "plain", the RFC 7636 Section 4.3 default for clients that omitted it at
// authorization time.
func VerifyCodeVerifier(challenge string, method domain.CodeChallengeMethod, verifier string) error {
	if verifier == "" {
		return serrors.NewCodeVerifierMissing()
	}
	if !validCodeVerifier(verifier) {
		return serrors.NewCodeVerifierInvalid()
	}

	var candidate string
	switch method {
	case domain.ChallengeMethodS256:
		sum := sha256.Sum256([]byte(verifier))
		candidate = base64.RawURLEncoding.EncodeToString(sum[:])
	case domain.ChallengeMethodPlain, "":
		candidate = verifier
	default:
		return serrors.NewCodeChallengeMethodInvalid()
	}

	// Constant-time compare keeps the stored challenge from leaking through
	// response timing.
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(challenge)) != 1 {
		return serrors.NewCodeVerifierMismatch()
	}
	return nil
}

// validCodeVerifier checks the RFC 7636 Section 4.1 grammar: 43 to 128
// characters from the unreserved set [A-Za-z0-9-._~].
func validCodeVerifier(verifier string) bool {
	if len(verifier) < MinCodeVerifierLength || len(verifier) > MaxCodeVerifierLength {
		return false
	}
	for i := 0; i < len(verifier); i++ {
		c := verifier[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '.' || c == '_' || c == '~':
		default:
			return false
		}
	}
	return true
}
