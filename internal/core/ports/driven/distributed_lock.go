package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates exclusive batch jobs across instances.
// The catalog publish pipeline holds one while it runs.
type DistributedLock interface {
	// Acquire attempts to acquire a named lock with the given TTL.
	// Returns false without error if another holder has it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release releases a named lock held by this instance.
	// Safe to call even if the lock is not held or has expired.
	Release(ctx context.Context, name string) error

	// Extend pushes the expiry of a lock this instance holds out to ttl from now.
	// Returns domain.ErrLockLost if the lock is no longer held by this instance.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
