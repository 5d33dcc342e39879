package lockmgr

import "context"

// ILockManager defines the interface for a lock provider.
type ILockManager interface {
	// AcquireLock blocks until the lock for key is held or ctx is done.
	// It returns the owner ID needed to release the lock.
	AcquireLock(ctx context.Context, key string) (ownerID []byte, err error)

	// TryAcquireLock attempts to acquire the lock for key once without waiting.
	// Return a boolean indicating whether the lock was acquired, an owner ID, and an error if any.
	TryAcquireLock(ctx context.Context, key string) (ok bool, ownerID []byte, err error)

	// ReleaseLock releases the lock for the given key.
	// Return a boolean indicating whether the lock was released, and an error if any.
	// The method will also return true if the lock did not exist.
	ReleaseLock(ctx context.Context, key string, ownerID []byte) (ok bool, err error)
}
