package store

import (
	"math/rand/v2"
	"time"
)

// DefaultMaxTxnRetries bounds how often Update reruns a transaction that
// lost a conflict. Every like on a post writes the post's counter, so a
// popular post needs headroom for many concurrent writers.
const DefaultMaxTxnRetries = 100

// Backoff returns the wait before retry attempt (1-based): base/2 plus a
// uniformly random jitter below base*2^(attempt-1), with the jitter capped at max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	ceiling := max
	if attempt < 1 {
		attempt = 1
	}
	if shift := attempt - 1; shift < 32 {
		if d := base << shift; d > 0 && d < max {
			ceiling = d
		}
	}
	return base/2 + rand.N(ceiling)
}
