// Package lockstore provides the distributed lock and fixed-window rate
// counter that gate every outbound connector operation. Both primitives are
// backed by a shared key/value store with TTL and atomic compare-and-delete.
package lockstore

import (
	"context"
	"time"
)

// Store is the contract for the lock & rate backing store. A key/value store
// supporting atomic set-if-absent-with-ttl, atomic compare-and-delete, and
// atomic incr can implement it.
type Store interface {
	// AcquireLock atomically sets key=ownerToken with the given ttl if key is
	// absent. Returns true on acquisition, false on contention or store outage.
	AcquireLock(ctx context.Context, key, ownerToken string, ttl time.Duration) (bool, error)

	// ReleaseLock atomically deletes key iff its current value equals
	// ownerToken. Never deletes another owner's lock. Returns true if this
	// call performed the delete.
	ReleaseLock(ctx context.Context, key, ownerToken string) (bool, error)

	// RateIncr atomically increments the counter at key, setting its TTL to
	// window on the first increment. Returns the post-increment count.
	RateIncr(ctx context.Context, key string, window time.Duration) (int64, error)

	// ScanAndDelete deletes every key matching prefix+"*". Administrative
	// sweep for lock:* on service startup/shutdown.
	ScanAndDelete(ctx context.Context, prefix string) (int, error)
}

// Key builders. Keys are described in spec §3.

// LockKey builds "lock:{source}:{source_id}:{platform}:{operation}".
func LockKey(source, sourceID, platform, operation string) string {
	return "lock:" + source + ":" + sourceID + ":" + platform + ":" + operation
}

// RateKey builds "rate_limit:{source}:{source_id}:{platform}:{operation}".
func RateKey(source, sourceID, platform, operation string) string {
	return "rate_limit:" + source + ":" + sourceID + ":" + platform + ":" + operation
}
