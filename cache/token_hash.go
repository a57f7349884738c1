package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken hashes a token value into a fixed-size cache key, so long JWTs
// do not become map keys themselves.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
