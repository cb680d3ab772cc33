package port

import (
	"context"
	"errors"
	"time"
)

var (
	ErrLockNotAcquired = errors.New("lock not acquired")
	ErrLockNotHeld     = errors.New("lock was not held or already expired")
)

// LockOptions controls how long a lock lives and how hard AcquireLock tries
// to take it.
type LockOptions struct {
	Expiry     time.Duration
	Tries      int
	RetryDelay time.Duration
}

// Lock is a held lock.
type Lock interface {
	// Unlock releases the lock, ErrLockNotHeld if it already expired
	Unlock(ctx context.Context) error
}

type CacheRepository interface {
	// AcquireLock takes key, retrying per opts; ErrLockNotAcquired if every try found it held
	AcquireLock(ctx context.Context, key string, opts LockOptions) (Lock, error)

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ClearIdempotency removes the key so a failed request can be retried
	ClearIdempotency(ctx context.Context, key string) error
}
