package kvs

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/dQL/lib/clock"
	"github.com/ValentinKolb/dQL/lib/db"
	"github.com/ValentinKolb/dQL/lib/db/engines/maple"
	"github.com/ValentinKolb/dQL/lib/lockmgr"
	"github.com/ValentinKolb/dQL/lib/store"
	"github.com/ValentinKolb/dQL/lib/store/dstore"
	"github.com/ValentinKolb/dQL/lib/store/fstore"
	"github.com/ValentinKolb/dQL/lib/store/lstore"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("kvs")

// Backend names reported by Datastore.Backend.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRaft   = "raft"
)

// raftRetention is the number of raft log entries a tombstone stays
// visible to conflict checks of the distributed backend
const raftRetention = 100_000

// Datastore owns exactly one storage backend and hands out transactions on it.
// It is safe for concurrent use.
type Datastore struct {
	path    string
	backend string
	store   store.IStore
	locks   lockmgr.ILockManager
	clock   clock.Clock

	closeOnce sync.Once
	closeErr  error
}

// New creates a Datastore for the connection string path:
//
//	memory, memory://          in-memory store (lost on exit)
//	file://{path}              embedded bbolt file, parent directories are created
//	raft://{addr}?{params}     replica of a raft cluster, see dstore.ParseURL
//
// Any other scheme fails with ErrInvalidPath.
func New(path string, opts ...Option) (*Datastore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	ds := &Datastore{path: path, clock: o.clock}

	switch {
	case path == "memory" || path == "memory://":
		ds.backend = BackendMemory
		s := lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }, o.clock)
		ds.store = s
		ds.locks = lockmgr.NewLocalLockManager()

	case strings.HasPrefix(path, "file://"):
		file := strings.TrimPrefix(path, "file://")
		if file == "" {
			return nil, fmt.Errorf("%w: missing file path in %q", ErrInvalidPath, path)
		}
		s, err := fstore.Open(file, fstore.DefaultOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", file, err)
		}
		ds.backend = BackendFile
		ds.store = s
		ds.locks = lockmgr.NewLocalLockManager()

	case strings.HasPrefix(path, "raft://"):
		cfg, err := dstore.ParseURL(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), o.startTimeout)
		defer cancel()
		s, err := dstore.StartNode(ctx, cfg, func() db.KVDB {
			return maple.NewMapleDB(&maple.DBOptions{InlineGC: true, Retention: raftRetention})
		}, o.clock)
		if err != nil {
			return nil, err
		}
		ds.backend = BackendRaft
		ds.store = s
		ds.locks = lockmgr.NewLockManager(s, o.lockTTL)

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	log.Infof("opened %s datastore %s", ds.backend, path)
	return ds, nil
}

// Path returns the connection string the datastore was created with.
func (ds *Datastore) Path() string { return ds.path }

// Backend returns the name of the selected backend.
func (ds *Datastore) Backend() string { return ds.backend }

// Locks returns the lock manager of the backend. Local backends lock within
// the process, the raft backend holds leases in the replicated state.
func (ds *Datastore) Locks() lockmgr.ILockManager { return ds.locks }

// Clock returns the clock of the datastore.
func (ds *Datastore) Clock() clock.Clock { return ds.clock }

// Transaction opens a new transaction. With lock set, the serialization lock
// is acquired first, waiting for the current holder or until ctx is done.
func (ds *Datastore) Transaction(ctx context.Context, write, lock bool) (*Transaction, error) {
	tx := &Transaction{
		id:    uuid.New(),
		ds:    ds,
		write: write,
		start: time.Now(),
	}

	if lock {
		start := time.Now()
		owner, err := ds.locks.AcquireLock(ctx, lockKey)
		observeSince(lockWait, start)
		if err != nil {
			return nil, err
		}
		tx.locked = true
		tx.owner = owner
	}

	tx.ts = ds.clock.Now()
	inner, err := ds.store.Begin(ctx, write)
	if err != nil {
		tx.unlock()
		return nil, err
	}
	tx.tx = inner

	txOpened.Inc()
	log.Debugf("opened transaction %s (write=%t, lock=%t)", tx.id, write, lock)
	return tx, nil
}

// Info returns metadata about the engine of the backend.
func (ds *Datastore) Info(ctx context.Context) (db.DatabaseInfo, error) {
	return ds.store.GetDBInfo(ctx)
}

// Close releases the backend. Transactions must not be used afterwards.
func (ds *Datastore) Close() error {
	ds.closeOnce.Do(func() {
		ds.closeErr = ds.store.Close()
		log.Infof("closed %s datastore", ds.backend)
	})
	return ds.closeErr
}
