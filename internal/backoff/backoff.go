package backoff

import "time"

// Delay computes the exponential retry delay base * 2^(attempt-1), capped at
// max. Attempts start at 1; out-of-range input clamps to the nearest bound.
// The cap must be kept at or below the claim TTL by configuration, so a
// worker waiting out its backoff never outlives its own lease.
func Delay(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if max > 0 && base > max {
		base = max
	}
	if attempt < 1 {
		attempt = 1
	}
	// 2^62ns overflows; anything past shift 40 is beyond any sane cap anyway.
	if attempt > 40 {
		attempt = 40
	}

	d := base << uint(attempt-1)
	if d <= 0 || (max > 0 && d > max) {
		return max
	}
	return d
}
