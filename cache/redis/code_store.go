package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"go.pilab.hu/codegrant/domain"
)

// invalidateScript flips the used flag in place. Running it as a script
// makes check-and-mark atomic, so concurrent exchanges of the same code can
// never both observe it unconsumed. KEEPTTL leaves the record on its
// original expiry schedule; a missing or already-used record is a no-op.
var invalidateScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
  return 0
end
local code = cjson.decode(v)
if code.used then
  return 0
end
code.used = true
redis.call('SET', KEYS[1], cjson.encode(code), 'KEEPTTL')
return 1
`)

// CodeStore implements domain.AuthorizationCodeRepository on Redis. Records
// carry a TTL matching their expiry, so Redis evicts them on its own and the
// explicit expiry sweep is a no-op.
type CodeStore struct {
	client *redis.Client
	prefix string // Optional prefix for keys
}

// NewCodeStore creates a new [CodeStore] instance.
func NewCodeStore(client *redis.Client, prefix string) *CodeStore {
	return &CodeStore{
		client: client,
		prefix: prefix,
	}
}

// redisKey returns the Redis key for a given code
func (r *CodeStore) redisKey(code string) string {
	return fmt.Sprintf("%s:authcode:%s", r.prefix, code)
}

// SaveAuthCode stores a freshly issued code record under its expiry TTL.
func (r *CodeStore) SaveAuthCode(ctx context.Context, code *domain.AuthCode) error {
	if code.Code == "" {
		return errors.New("authorization code value is required")
	}
	if code.ExpiresAt == nil {
		return errors.New("authorization code expiry is required")
	}
	ttl := time.Until(*code.ExpiresAt)
	if ttl <= 0 {
		return errors.New("authorization code is already expired")
	}

	payload, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("failed to marshal authorization code: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.redisKey(code.Code), payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store authorization code: %w", err)
	}
	if !ok {
		return errors.New("authorization code already exists")
	}
	return nil
}

// GetAuthCode fetches a code record, returning domain.ErrAuthCodeNotFound
// for unknown or already-evicted codes.
func (r *CodeStore) GetAuthCode(ctx context.Context, code string) (*domain.AuthCode, error) {
	payload, err := r.client.Get(ctx, r.redisKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrAuthCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch authorization code: %w", err)
	}

	var authCode domain.AuthCode
	if err := json.Unmarshal(payload, &authCode); err != nil {
		return nil, fmt.Errorf("failed to unmarshal authorization code: %w", err)
	}
	return &authCode, nil
}

// InvalidateAuthCode marks a code consumed via the atomic script.
func (r *CodeStore) InvalidateAuthCode(ctx context.Context, code string) error {
	if err := invalidateScript.Run(ctx, r.client, []string{r.redisKey(code)}).Err(); err != nil {
		return fmt.Errorf("failed to invalidate authorization code: %w", err)
	}
	return nil
}

// DeleteExpiredAuthCodes is a no-op; Redis evicts records by TTL.
func (r *CodeStore) DeleteExpiredAuthCodes(_ context.Context) error {
	return nil
}
