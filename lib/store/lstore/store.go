package lstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dQL/lib/clock"
	"github.com/ValentinKolb/dQL/lib/db"
	"github.com/ValentinKolb/dQL/lib/store"
	"github.com/ValentinKolb/dQL/lib/store/internal/snaptx"
	"github.com/puzpuzpuz/xsync/v3"
)

// Store is a local, in-memory transaction store over a db.KVDB engine.
type Store struct {
	db       db.KVDB
	clock    clock.Clock
	commitMu sync.Mutex // serializes version assignment and Apply
	leases   *xsync.MapOf[string, store.Lease]
	closed   atomic.Bool
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
// Commit versions are taken from clk, falling back to the last version plus
// one when the clock did not advance.
func NewLocalStore(factory store.DBFactory, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &Store{
		db:     factory(),
		clock:  clk,
		leases: xsync.NewMapOf[string, store.Lease](),
	}
}

// nextVersion returns the version for the next commit. Must be called with
// commitMu held.
func (s *Store) nextVersion() uint64 {
	next := s.db.Version() + 1
	if now := uint64(s.clock.Now()); now > next {
		return now
	}
	return next
}

func (s *Store) now() time.Time {
	return s.clock.Now().Time()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *Store) Begin(ctx context.Context, write bool) (store.ITx, error) {
	if err := store.CheckContext(ctx); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, store.NewError(store.RetCInvalidOperation, "store is closed")
	}
	return snaptx.New(s.db.Snapshot(), write, s.apply), nil
}

// apply validates and applies the batch of a write transaction at the next
// commit version.
func (s *Store) apply(_ context.Context, batch *db.Batch) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	if err := s.db.Apply(batch, s.nextVersion()); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return store.NewError(store.RetCConflict, err.Error())
		}
		return store.NewError(store.RetCInternalError, err.Error())
	}
	return nil
}

func (s *Store) GetDBInfo(context.Context) (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}

func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

// --------------------------------------------------------------------------
// Leases (store.ILockStore)
// --------------------------------------------------------------------------

func (s *Store) SetIfUnset(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now()
	s.leases.Compute(key, func(old store.Lease, loaded bool) (store.Lease, bool) {
		if loaded && !old.Expired(now.UnixMilli()) {
			return old, false
		}
		return store.NewLease(value, now, ttl), false
	})
	return nil
}

func (s *Store) GetLock(_ context.Context, key string) ([]byte, bool, error) {
	l, ok := s.leases.Load(key)
	if !ok || l.Expired(s.now().UnixMilli()) {
		return nil, false, nil
	}
	return append([]byte(nil), l.Value...), true, nil
}

func (s *Store) DeleteIfEqual(_ context.Context, key string, value []byte) (bool, error) {
	nowMs := s.now().UnixMilli()
	released := true
	s.leases.Compute(key, func(old store.Lease, loaded bool) (store.Lease, bool) {
		if !loaded || old.Expired(nowMs) || string(old.Value) == string(value) {
			return old, true
		}
		released = false
		return old, false
	})
	return released, nil
}
