package lockmgr

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/dQL/lib/store"
)

// lockMgrImpl keeps its locks as leases in a store.ILockStore
type lockMgrImpl struct {
	store store.ILockStore
	ttl   time.Duration
}

// NewLockManager creates a lock manager on top of the leases of a store.
// Locks expire ttl after they were acquired (0 = never), which frees locks of
// crashed holders.
func NewLockManager(store store.ILockStore, ttl time.Duration) ILockManager {
	return &lockMgrImpl{
		store: store,
		ttl:   ttl,
	}
}

func (lp *lockMgrImpl) TryAcquireLock(ctx context.Context, key string) (bool, []byte, error) {
	ownerID, err := generateOwnerID()
	if err != nil {
		return false, nil, err
	}
	ok, err := lp.tryAcquire(ctx, key, ownerID)
	if !ok {
		return false, nil, err
	}
	return true, ownerID, nil
}

// tryAcquire sets the lease only if it doesn't exist (atomic operation of
// the store) and checks whether it is held by ownerID afterwards.
func (lp *lockMgrImpl) tryAcquire(ctx context.Context, key string, ownerID []byte) (bool, error) {
	if err := lp.store.SetIfUnset(ctx, key, ownerID, lp.ttl); err != nil {
		log.Errorf("failed to set lease %q: %v", key, err)
		return false, err
	}

	value, found, err := lp.store.GetLock(ctx, key)
	if err != nil {
		return false, err
	}

	// Return true if lock was acquired BY US
	return found && bytes.Equal(value, ownerID), nil
}

func (lp *lockMgrImpl) AcquireLock(ctx context.Context, key string) ([]byte, error) {
	ownerID, err := generateOwnerID()
	if err != nil {
		return nil, err
	}

	err = poll(ctx, func() (bool, error) {
		return lp.tryAcquire(ctx, key, ownerID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %q: %w", key, err)
	}
	return ownerID, nil
}

func (lp *lockMgrImpl) ReleaseLock(ctx context.Context, key string, ownerID []byte) (bool, error) {
	return lp.store.DeleteIfEqual(ctx, key, ownerID)
}
