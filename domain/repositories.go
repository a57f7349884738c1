package domain

import (
	"context"
	"errors"
)

var (
	// ErrAuthCodeNotFound is returned by code stores when no record exists
	// for a code. Stores that delete records on invalidation or expiry also
	// return it for codes that once existed.
	ErrAuthCodeNotFound = errors.New("authorization code not found")

	// ErrTokenNotFound is returned by token stores for unknown token values.
	ErrTokenNotFound = errors.New("token not found")

	// ErrUserNotFound is returned by user stores for unknown user IDs.
	ErrUserNotFound = errors.New("user not found")
)

// AuthorizationCodeRepository is the persistence gateway for authorization
// codes. GetAuthCode and InvalidateAuthCode form the exchange-path contract:
// implementations must guarantee that concurrent exchanges of the same code
// let at most one caller observe the code as unconsumed and then invalidate
// it, either through atomic storage primitives or a conditional update keyed
// on the code still being unused.
type AuthorizationCodeRepository interface {
	// SaveAuthCode persists a freshly issued code record. Implementations
	// reject records that would break the store contract (empty code, no
	// expiry).
	SaveAuthCode(ctx context.Context, code *AuthCode) error

	// GetAuthCode fetches a record by its code value, returning
	// ErrAuthCodeNotFound when it does not exist.
	GetAuthCode(ctx context.Context, code string) (*AuthCode, error)

	// InvalidateAuthCode marks a code as consumed. Invalidating a code that
	// is already consumed, or that no longer exists, is a no-op success.
	InvalidateAuthCode(ctx context.Context, code string) error

	// DeleteExpiredAuthCodes removes records past their expiry. Stores whose
	// backend expires entries natively may implement this as a no-op.
	DeleteExpiredAuthCodes(ctx context.Context) error
}

// TokenRepository stores issued access tokens for later validation and
// revocation.
type TokenRepository interface {
	StoreToken(ctx context.Context, token *Token) error

	// GetAccessToken fetches a token by its value, returning
	// ErrTokenNotFound when it does not exist.
	GetAccessToken(ctx context.Context, tokenValue string) (*Token, error)

	// RevokeToken marks a token revoked by its value.
	RevokeToken(ctx context.Context, tokenValue string) error

	DeleteExpiredTokens(ctx context.Context) error
}

// UserRepository reads resource-owner profiles for claims resolution.
type UserRepository interface {
	// GetUserByID fetches a user by ID, returning ErrUserNotFound when it
	// does not exist.
	GetUserByID(ctx context.Context, userID string) (*User, error)
}
