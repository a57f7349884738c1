// Package memory provides in-memory repository implementations for
// development setups and tests.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.pilab.hu/codegrant/domain"
)

// AuthCodeRepository is an in-memory domain.AuthorizationCodeRepository.
// Records are stored by value and handed out as deep copies, so callers can
// never mutate the store through a returned record. The used flag is flipped
// under the write lock, which makes invalidation a single atomic
// check-and-set.
type AuthCodeRepository struct {
	mu    sync.RWMutex
	codes map[string]domain.AuthCode
}

var _ domain.AuthorizationCodeRepository = (*AuthCodeRepository)(nil)

// NewAuthCodeRepository creates an empty in-memory code store.
func NewAuthCodeRepository() *AuthCodeRepository {
	return &AuthCodeRepository{
		codes: make(map[string]domain.AuthCode),
	}
}

// SaveAuthCode persists a freshly issued authorization code record.
func (r *AuthCodeRepository) SaveAuthCode(_ context.Context, code *domain.AuthCode) error {
	if code == nil || code.Code == "" {
		return errors.New("auth code record must carry a code value")
	}
	if code.ExpiresAt == nil {
		return errors.New("auth code record must carry an expiry")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.codes[code.Code]; exists {
		return errors.New("authorization code already exists")
	}
	record := cloneAuthCode(code)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	r.codes[code.Code] = record
	return nil
}

// GetAuthCode fetches a code record by its code value, consumed or not.
// Expiry is the caller's call; expired records stay readable until a purge.
func (r *AuthCodeRepository) GetAuthCode(_ context.Context, code string) (*domain.AuthCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.codes[code]
	if !ok {
		return nil, domain.ErrAuthCodeNotFound
	}
	out := cloneAuthCode(&record)
	return &out, nil
}

// InvalidateAuthCode marks a still-live record as consumed. Invalidating a
// code that is absent or already consumed is a no-op success.
func (r *AuthCodeRepository) InvalidateAuthCode(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.codes[code]
	if !ok || record.Used {
		return nil
	}
	record.Used = true
	r.codes[code] = record
	return nil
}

// DeleteExpiredAuthCodes removes records whose expiry has passed.
func (r *AuthCodeRepository) DeleteExpiredAuthCodes(_ context.Context) error {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for code, record := range r.codes {
		if record.IsExpiredAt(now) {
			delete(r.codes, code)
		}
	}
	return nil
}

// Len reports the number of stored records, expired ones included.
func (r *AuthCodeRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.codes)
}

// cloneAuthCode copies a record including its pointer fields, so the clone
// shares no memory with the original.
func cloneAuthCode(c *domain.AuthCode) domain.AuthCode {
	out := *c
	out.UserID = cloneStringPtr(c.UserID)
	out.RedirectURI = cloneStringPtr(c.RedirectURI)
	out.Scope = cloneStringPtr(c.Scope)
	out.ACR = cloneStringPtr(c.ACR)
	out.CodeChallenge = cloneStringPtr(c.CodeChallenge)
	if c.ExpiresAt != nil {
		expiresAt := *c.ExpiresAt
		out.ExpiresAt = &expiresAt
	}
	if c.CodeChallengeMethod != nil {
		method := *c.CodeChallengeMethod
		out.CodeChallengeMethod = &method
	}
	return out
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
