package services

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidKeyID = errors.New("invalid key id")

// TokenSignerFunc signs a claims set and returns the serialized token.
type TokenSignerFunc func(claims jwt.Claims) (string, error)

// TokenSigner holds the signing functions available to the token service,
// keyed by key ID. Key material never leaves the closure that signs with it.
type TokenSigner struct {
	keys map[string]TokenSignerFunc
}

// NewTokenSigner creates a new Signer instance
func NewTokenSigner() *TokenSigner {
	return &TokenSigner{
		keys: make(map[string]TokenSignerFunc),
	}
}

// AddKeySigner registers an HS256 signer under the default key ID.
func (s *TokenSigner) AddKeySigner(secretKey string) {
	s.keys["default"] = func(claims jwt.Claims) (string, error) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

		tokenString, err := token.SignedString([]byte(secretKey))
		if err != nil {
			return "", fmt.Errorf("failed to sign token: %w", err)
		}

		return tokenString, nil
	}
}

// Sign serializes and signs claims with the key identified by keyID. An
// empty keyID uses whichever signer is registered.
func (s *TokenSigner) Sign(claims jwt.Claims, keyID string) (string, error) {
	if keyID == "" {
		for _, signer := range s.keys {
			if signer != nil {
				return signer(claims)
			}
		}

		return "", ErrInvalidKeyID
	}

	if signer, ok := s.keys[keyID]; ok {
		return signer(claims)
	}

	return "", ErrInvalidKeyID
}
