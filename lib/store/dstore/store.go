package dstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/dQL/lib/clock"
	"github.com/ValentinKolb/dQL/lib/db"
	"github.com/ValentinKolb/dQL/lib/store"
	"github.com/ValentinKolb/dQL/lib/store/dstore/internal"
	"github.com/ValentinKolb/dQL/lib/store/internal/snaptx"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

var (
	retries = 5
	log     = logger.GetLogger("store")
)

// Store is the distributed implementation of store.IStore and store.ILockStore.
// It encapsulates a Dragonboat NodeHost which is used to communicate with the state machine.
type Store struct {
	nh      *dragonboat.NodeHost
	ownsNH  bool
	shardID uint64
	cs      *client.Session
	timeout time.Duration
	clock   clock.Clock
}

// NewDistributedStore creates a new distributed store instance on a NodeHost
// that already runs a replica of shardID. Transactions read from a snapshot of
// the local replica taken after a linearizable read, so every transaction
// observes all batches committed before it began.
func NewDistributedStore(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &Store{
		nh:      nh,
		shardID: shardID,
		cs:      nh.GetNoOPSession(shardID),
		timeout: timeout,
		clock:   clk,
	}
}

// StartNode creates a NodeHost for cfg, starts the replica and waits until the
// shard has a leader or ctx is done. The returned store owns the NodeHost and
// stops it on Close.
func StartNode(ctx context.Context, cfg NodeConfig, dbFactory store.DBFactory, clk clock.Clock) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid raft configuration: %w", err)
	}

	nh, err := dragonboat.NewNodeHost(cfg.ToNodeHostConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create node host: %w", err)
	}

	members := cfg.Members
	if cfg.Join {
		members = nil
	}
	if err := nh.StartConcurrentReplica(members, cfg.Join, CreateStateMachineFactory(dbFactory), cfg.ToDragonboatConfig()); err != nil {
		nh.Close()
		return nil, fmt.Errorf("failed to start shard %d: %w", cfg.ShardID, err)
	}
	log.Infof("started replica %d of shard %d on %s", cfg.ReplicaID, cfg.ShardID, cfg.RaftAddress)

	s := NewDistributedStore(nh, cfg.ShardID, cfg.Timeout, clk)
	s.ownsNH = true

	if err := s.waitForLeader(ctx); err != nil {
		nh.Close()
		return nil, err
	}
	return s, nil
}

// waitForLeader polls the NodeHost until the shard reports a leader.
func (s *Store) waitForLeader(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if _, _, ok, err := s.nh.GetLeaderID(s.shardID); err == nil && ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return store.Errorf(store.RetCCancelled, "shard %d has no leader: %v", s.shardID, ctx.Err())
		case <-ticker.C:
		}
	}
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// retryable reports whether a request was rejected before it reached the
// raft log, which makes it safe to send again.
func retryable(err error) bool {
	return errors.Is(err, dragonboat.ErrSystemBusy) || errors.Is(err, dragonboat.ErrShardNotReady)
}

// backoff waits before the next attempt. It returns false if ctx is done.
func (s *Store) backoff(ctx context.Context) bool {
	t := time.NewTimer(s.timeout / 10)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// toStoreError maps errors of the NodeHost to store errors.
func toStoreError(ctx context.Context, err error) error {
	var se *store.Error
	switch {
	case errors.As(err, &se):
		return se
	case ctx.Err() != nil:
		return store.Errorf(store.RetCCancelled, "%v", ctx.Err())
	default:
		return store.NewError(store.RetCInternalError, err.Error())
	}
}

// write serializes a Command and sends it via SyncPropose.
// Requests rejected as busy or not ready are retried up to retries times.
func (s *Store) write(ctx context.Context, cmd internal.Command) (sm.Result, error) {
	data := cmd.Serialize()
	for i := 0; i < retries; i++ {
		if err := store.CheckContext(ctx); err != nil {
			return sm.Result{}, err
		}

		attempt, cancel := context.WithTimeout(ctx, s.timeout)
		res, err := s.nh.SyncPropose(attempt, s.cs, data)
		cancel()

		if retryable(err) {
			log.Infof("SyncPropose %s: %v, retrying (%d/%d)...", cmd.Type, err, i+1, retries)
			if !s.backoff(ctx) {
				break
			}
			continue
		}
		if err != nil {
			return sm.Result{}, toStoreError(ctx, err)
		}
		if res.Value != uint64(store.RetCSuccess) {
			return res, store.NewError(store.RetCode(res.Value), string(res.Data))
		}
		return res, nil
	}
	if err := store.CheckContext(ctx); err != nil {
		return sm.Result{}, err
	}
	return sm.Result{}, store.NewError(store.RetCInternalError, "timeout")
}

// read is a generic helper function that queries the state machine via
// SyncRead and converts the response into the expected type R.
func read[R any](ctx context.Context, s *Store, q internal.Query) (R, error) {
	var zero R
	for i := 0; i < retries; i++ {
		if err := store.CheckContext(ctx); err != nil {
			return zero, err
		}

		attempt, cancel := context.WithTimeout(ctx, s.timeout)
		res, err := s.nh.SyncRead(attempt, s.shardID, q)
		cancel()

		if retryable(err) {
			log.Infof("SyncRead %s: %v, retrying (%d/%d)...", q.Type, err, i+1, retries)
			if !s.backoff(ctx) {
				break
			}
			continue
		}
		if err != nil {
			return zero, toStoreError(ctx, err)
		}

		// The state machine is expected to return the response in the expected type R.
		casted, ok := res.(R)
		if !ok {
			return zero, store.Errorf(store.RetCInternalError, "unexpected type: received %T, expected %T", res, zero)
		}
		return casted, nil
	}
	if err := store.CheckContext(ctx); err != nil {
		return zero, err
	}
	return zero, store.NewError(store.RetCInternalError, "timeout")
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *Store) Begin(ctx context.Context, write bool) (store.ITx, error) {
	snap, err := read[db.Snapshot](ctx, s, internal.Query{Type: internal.QueryTSnapshot})
	if err != nil {
		return nil, err
	}
	return snaptx.New(snap, write, s.commit), nil
}

// commit proposes the batch of a write transaction. The state machine
// validates it against the read set and rejects it with RetCConflict.
func (s *Store) commit(ctx context.Context, batch *db.Batch) error {
	_, err := s.write(ctx, internal.Command{Type: internal.CommandTCommit, Batch: batch})
	return err
}

func (s *Store) GetDBInfo(ctx context.Context) (db.DatabaseInfo, error) {
	return read[db.DatabaseInfo](ctx, s, internal.Query{Type: internal.QueryTGetDBInfo})
}

func (s *Store) Close() error {
	if s.ownsNH {
		s.nh.Close()
	}
	return nil
}

// --------------------------------------------------------------------------
// Leases (store.ILockStore)
// --------------------------------------------------------------------------

func (s *Store) SetIfUnset(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.write(ctx, internal.Command{
		Type:  internal.CommandTLock,
		Key:   key,
		Value: value,
		NowMs: int64(s.clock.Now()),
		TTLMs: ttl.Milliseconds(),
	})
	return err
}

func (s *Store) GetLock(ctx context.Context, key string) ([]byte, bool, error) {
	res, err := read[internal.QueryResult](ctx, s, internal.Query{
		Type:  internal.QueryTGetLock,
		Key:   key,
		NowMs: int64(s.clock.Now()),
	})
	if err != nil {
		return nil, false, err
	}
	return res.Value, res.Ok, nil
}

func (s *Store) DeleteIfEqual(ctx context.Context, key string, value []byte) (bool, error) {
	res, err := s.write(ctx, internal.Command{
		Type:  internal.CommandTUnlock,
		Key:   key,
		Value: value,
		NowMs: int64(s.clock.Now()),
	})
	if err != nil {
		return false, err
	}
	return len(res.Data) == 1 && res.Data[0] == 1, nil
}
