// Package lock provides short-lived named locks used to serialize ledger
// operations that touch the same account set. Locks are advisory and
// time-bounded: a crashed holder's lock self-expires after its TTL, so the
// system never deadlocks permanently. Callers must still release explicitly on
// every path rather than leaning on expiry.
package lock

import (
	"context"
	"time"
)

// KeyLocker is the mutual-exclusion capability. The substrate is swappable: an
// in-memory locker serializes callers within one process, the Redis locker
// serializes across processes.
type KeyLocker interface {
	// TryAcquire attempts to take the named lock without blocking. It returns
	// false when the lock is already held by someone else.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release frees a lock previously acquired through this locker. Releasing
	// a lock that expired and was re-acquired elsewhere is a no-op.
	Release(ctx context.Context, key string) error
}
