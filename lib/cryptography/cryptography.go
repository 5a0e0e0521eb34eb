package cryptography

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashValue returns the hex encoded SHA256 digest of [value].
func HashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// ShortHash is the first [n] characters of [HashValue], used to derive stable identifiers.
func ShortHash(value string, n int) string {
	return HashValue(value)[:min(max(n, 1), sha256.Size*2)]
}
