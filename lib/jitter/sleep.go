package jitter

import (
	"math/rand/v2"
	"time"
)

const DefaultMaxMs = 3500

// Jitter returns a random duration within [0, min(maxMs, baseMs * 2^attempts)).
// https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
func Jitter(baseMs, maxMs, attempts int) time.Duration {
	if maxMs <= 0 {
		return time.Duration(0)
	}

	// Cap the exponent so the shift cannot overflow.
	if attemptsMaxMs := baseMs * (1 << min(max(attempts, 0), 30)); attemptsMaxMs > 0 {
		maxMs = min(maxMs, attemptsMaxMs)
	}

	return time.Duration(rand.IntN(maxMs)) * time.Millisecond
}
