package domain

import "time"

// CodeChallengeMethod identifies the algorithm binding a PKCE code challenge
// to its verifier (RFC 7636, Section 4.2).
type CodeChallengeMethod string

const (
	// ChallengeMethodS256 hashes the verifier with SHA-256 before comparing.
	ChallengeMethodS256 CodeChallengeMethod = "S256"
	// ChallengeMethodPlain compares the verifier to the challenge verbatim.
	ChallengeMethodPlain CodeChallengeMethod = "plain"
)

// AuthCode represents an OAuth 2.0 authorization code record as persisted by
// a code store. It is written once when the code is issued, read during the
// exchange, and invalidated exactly once on a successful exchange.
//
// Optional attributes are pointers so that "not stored" and "stored but
// empty" stay distinguishable. ExpiresAt is semantically mandatory; it is a
// pointer only so a store returning a record without it can be detected and
// reported as a broken storage contract instead of being defaulted.
type AuthCode struct {
	Code      string    `bson:"code" json:"code"`             // Unique authorization code, lookup key
	ClientID  string    `bson:"client_id" json:"client_id"`   // Client the code was issued to
	Used      bool      `bson:"used" json:"used"`             // Whether the code has been exchanged
	CreatedAt time.Time `bson:"created_at" json:"created_at"` // Issuance timestamp

	UserID      *string    `bson:"user_id,omitempty" json:"user_id,omitempty"`           // Resource owner who authorized the request
	RedirectURI *string    `bson:"redirect_uri,omitempty" json:"redirect_uri,omitempty"` // Callback URI bound at authorization time
	Scope       *string    `bson:"scope,omitempty" json:"scope,omitempty"`               // Space-separated scope tokens
	ACR         *string    `bson:"acr,omitempty" json:"acr,omitempty"`                   // Authentication context class reference
	ExpiresAt   *time.Time `bson:"expires_at,omitempty" json:"expires_at,omitempty"`

	CodeChallenge       *string              `bson:"code_challenge,omitempty" json:"code_challenge,omitempty"`
	CodeChallengeMethod *CodeChallengeMethod `bson:"code_challenge_method,omitempty" json:"code_challenge_method,omitempty"`
}

// HasRedirectURI reports whether a redirect URI was bound at authorization time.
func (c *AuthCode) HasRedirectURI() bool {
	return c.RedirectURI != nil && *c.RedirectURI != ""
}

// HasCodeChallenge reports whether the code was issued with a PKCE challenge.
func (c *AuthCode) HasCodeChallenge() bool {
	return c.CodeChallenge != nil && *c.CodeChallenge != ""
}

// ChallengeMethod returns the stored challenge method, or the empty method
// when none was recorded. Verification treats the empty method as "plain"
// per RFC 7636, Section 4.3.
func (c *AuthCode) ChallengeMethod() CodeChallengeMethod {
	if c.CodeChallengeMethod == nil {
		return ""
	}
	return *c.CodeChallengeMethod
}

// IsExpiredAt reports whether the code is no longer exchangeable at the given
// instant. A code expires exactly at its expiry timestamp. Records without an
// expiry never report expired here; callers must treat a nil ExpiresAt as a
// storage-contract violation before consulting this.
func (c *AuthCode) IsExpiredAt(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}
