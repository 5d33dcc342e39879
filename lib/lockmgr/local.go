package lockmgr

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/semaphore"
)

// localLock is one exclusive lock of the local lock manager
type localLock struct {
	sem   *semaphore.Weighted
	mu    sync.Mutex
	owner []byte
}

// localLockMgrImpl keeps its locks in process memory
type localLockMgrImpl struct {
	locks *xsync.MapOf[string, *localLock]
}

// NewLocalLockManager creates a lock manager for a single process. Waiting
// holders are woken in FIFO order. Locks never expire.
func NewLocalLockManager() ILockManager {
	return &localLockMgrImpl{
		locks: xsync.NewMapOf[string, *localLock](),
	}
}

func (lm *localLockMgrImpl) lock(key string) *localLock {
	l, _ := lm.locks.LoadOrCompute(key, func() *localLock {
		return &localLock{sem: semaphore.NewWeighted(1)}
	})
	return l
}

// own records the new owner of a freshly acquired lock
func (l *localLock) own() ([]byte, error) {
	ownerID, err := generateOwnerID()
	if err != nil {
		l.sem.Release(1)
		return nil, err
	}
	l.mu.Lock()
	l.owner = ownerID
	l.mu.Unlock()
	return ownerID, nil
}

func (lm *localLockMgrImpl) AcquireLock(ctx context.Context, key string) ([]byte, error) {
	l := lm.lock(key)
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire lock %q: %w", key, err)
	}
	return l.own()
}

func (lm *localLockMgrImpl) TryAcquireLock(ctx context.Context, key string) (bool, []byte, error) {
	if err := ctx.Err(); err != nil {
		return false, nil, err
	}
	l := lm.lock(key)
	if !l.sem.TryAcquire(1) {
		return false, nil, nil
	}
	ownerID, err := l.own()
	return err == nil, ownerID, err
}

func (lm *localLockMgrImpl) ReleaseLock(_ context.Context, key string, ownerID []byte) (bool, error) {
	l, ok := lm.locks.Load(key)
	if !ok {
		return true, nil
	}

	l.mu.Lock()
	switch {
	case l.owner == nil:
		l.mu.Unlock()
		return true, nil
	case !bytes.Equal(l.owner, ownerID):
		l.mu.Unlock()
		return false, nil
	}
	l.owner = nil
	l.mu.Unlock()

	l.sem.Release(1)
	return true, nil
}
