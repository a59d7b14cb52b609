package kv

import (
	"context"
	"time"
)

// NoExpiry is returned by TTL for keys that exist but carry no expiry.
const NoExpiry = time.Duration(-1)

// Store is the shared key/value surface behind claims and tracking counters:
// conditional set with TTL, token-gated delete, incremental scan. Both
// mutating primitives must be atomic as seen by all workers.
type Store interface {
	// SetIfAbsent writes key=value with the given TTL only when the key does
	// not exist (or has expired). ttl <= 0 means no expiry.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// TTL returns the remaining lifetime of key. NoExpiry means the key has
	// no expiry; ok=false means the key does not exist.
	TTL(ctx context.Context, key string) (time.Duration, bool, error)

	// DeleteIfTokenMatches deletes key only when the stored value's token
	// segment (everything before the first '|') equals token. The check and
	// delete are a single atomic step.
	DeleteIfTokenMatches(ctx context.Context, key, token string) (bool, error)

	// Delete removes key unconditionally, reporting whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// Scan streams keys matching a glob pattern through fn, using an
	// incremental cursor rather than a full key listing.
	Scan(ctx context.Context, pattern string, fn func(key string) error) error

	// IncrBy atomically adds n to the integer value at key, creating it at
	// zero if absent, and applies ttl (when > 0) to the key.
	IncrBy(ctx context.Context, key string, n int64, ttl time.Duration) (int64, error)
}
