package domain

import "errors"

// ErrGrantConsumed is returned when token issuance is attempted twice against
// the same grant context.
var ErrGrantConsumed = errors.New("grant context already consumed")

// GrantContext is the immutable outcome of a successfully validated
// authorization code exchange. It carries exactly the attributes token
// issuance needs and nothing else; the underlying code record is never
// handed out. A context is consumed at most once, when a token has been
// issued against it.
//
// A GrantContext is bound to a single exchange request and is not safe for
// concurrent use.
type GrantContext struct {
	clientID string
	userID   string
	scope    string
	acr      string
	code     string
	consumed bool
}

// NewGrantContext builds a grant context from a validated code record. The
// code value falls back to the value presented on the exchange request when
// the record does not echo one.
func NewGrantContext(record *AuthCode, requestCode string) *GrantContext {
	g := &GrantContext{
		clientID: record.ClientID,
		code:     record.Code,
	}
	if g.code == "" {
		g.code = requestCode
	}
	if record.UserID != nil {
		g.userID = *record.UserID
	}
	if record.Scope != nil {
		g.scope = *record.Scope
	}
	if record.ACR != nil {
		g.acr = *record.ACR
	}
	return g
}

// ClientID returns the client the code was issued to.
func (g *GrantContext) ClientID() string { return g.clientID }

// UserID returns the authorizing resource owner, or "" when the grant has no
// user binding.
func (g *GrantContext) UserID() string { return g.userID }

// Scope returns the granted scope string, or "" when none was stored.
func (g *GrantContext) Scope() string { return g.scope }

// ACR returns the authentication context class reference asserted at login,
// or "" when none was stored.
func (g *GrantContext) ACR() string { return g.acr }

// Code returns the authorization code this grant was validated from.
func (g *GrantContext) Code() string { return g.code }

// Consumed reports whether a token has already been issued from this grant.
func (g *GrantContext) Consumed() bool { return g.consumed }

// Consume marks the grant as spent. It fails with ErrGrantConsumed on the
// second and later calls so a token can never be minted twice from one
// validated exchange.
func (g *GrantContext) Consume() error {
	if g.consumed {
		return ErrGrantConsumed
	}
	g.consumed = true
	return nil
}
