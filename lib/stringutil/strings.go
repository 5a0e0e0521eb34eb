package stringutil

import "math/rand/v2"

const charset = "abcdefghijklmnopqrstuvwxyz0123456789"

// Random returns a lowercase alphanumeric string, safe to embed in unquoted identifiers of every engine.
func Random(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.IntN(len(charset))]
	}
	return string(b)
}
