package dstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ValentinKolb/dQL/lib/db"
	"github.com/ValentinKolb/dQL/lib/store"
	"github.com/ValentinKolb/dQL/lib/store/dstore/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// KVStateMachine is a state machine implementation for Dragonboat RAFT.
// Committed batches are applied to the engine at the index of their log
// entry, so the engine version of every replica equals the index of the last
// applied batch.
type KVStateMachine struct {
	replicaID uint64
	shardID   uint64
	database  db.KVDB // the actual dataStorage

	leaseMu sync.RWMutex
	leases  map[string]store.Lease
}

// snapshotState is the state captured by PrepareSnapshot
type snapshotState struct {
	snap   db.Snapshot
	leases map[string]store.Lease
}

// CreateStateMachineFactory returns a function that can be used by dragonboat to create a new state machine for a node host.
// The factory pattern is used to enable the caller to pass an interchangeable dbFactory.
// The engine must decide everything it does in Apply deterministically, e.g. maple with InlineGC.
func CreateStateMachineFactory(dbFactory store.DBFactory) func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return newStateMachine(shardID, replicaID, dbFactory())
	}
}

func newStateMachine(shardID, replicaID uint64, database db.KVDB) *KVStateMachine {
	return &KVStateMachine{
		replicaID: replicaID,
		shardID:   shardID,
		database:  database,
		leases:    make(map[string]store.Lease),
	}
}

// Lookup handles read-only queries. Queries run on the local replica only and
// are passed in-process, so results may carry live objects (db.Snapshot).
func (fsm *KVStateMachine) Lookup(itf interface{}) (interface{}, error) {

	// try to parse Query into Query struct
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, store.Errorf(store.RetCInternalError, "invalid Query type: %T", itf)
	}

	switch q.Type {
	case internal.QueryTSnapshot:
		if !fsm.database.SupportsFeature(db.FeatureSnapshot) {
			return nil, store.NewError(store.RetCUnsupportedOperation, "Snapshot operation is not supported")
		}
		return fsm.database.Snapshot(), nil
	case internal.QueryTGetLock:
		fsm.leaseMu.RLock()
		l, ok := fsm.leases[q.Key]
		fsm.leaseMu.RUnlock()
		if !ok || l.Expired(q.NowMs) {
			return internal.QueryResult{}, nil
		}
		return internal.QueryResult{Ok: true, Value: bytes.Clone(l.Value)}, nil
	case internal.QueryTGetDBInfo:
		return fsm.database.GetInfo(), nil
	default:
		return nil, store.Errorf(store.RetCInvalidOperation, "unknown Query operation: %d", q.Type)
	}
}

// Update handles write commands on the KVDB instance.
// All write operations are serialized into []byte and are accessible via the entries struct.
func (fsm *KVStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {

	// Nothing to do
	if len(entries) == 0 {
		return entries, nil
	}

	// Stats
	start := time.Now()

	for idx, e := range entries {
		entries[idx].Result = fsm.apply(e)
	}

	// Log if the update took long
	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("State machine took long to update. Batch updated %d entries, took %.2fms", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

func (fsm *KVStateMachine) apply(e sm.Entry) sm.Result {
	if len(e.Cmd) == 0 {
		return result(store.RetCInvalidOperation, "empty command ignored")
	}

	cmd := internal.Command{}
	if err := cmd.Deserialize(e.Cmd); err != nil {
		return result(store.RetCInternalError, fmt.Sprintf("failed to deserialize command: %v", err))
	}

	switch cmd.Type {
	case internal.CommandTCommit:
		err := fsm.database.Apply(cmd.Batch, e.Index)
		switch {
		case err == nil:
			return result(store.RetCSuccess, "")
		case errors.Is(err, db.ErrConflict):
			return result(store.RetCConflict, err.Error())
		default:
			log.Errorf("failed to apply batch at index %d: %v", e.Index, err)
			return result(store.RetCInternalError, err.Error())
		}

	case internal.CommandTLock:
		fsm.leaseMu.Lock()
		defer fsm.leaseMu.Unlock()
		fsm.pruneLeases(cmd.NowMs)
		if _, held := fsm.leases[cmd.Key]; !held {
			l := store.Lease{Value: cmd.Value}
			if cmd.TTLMs > 0 {
				l.ExpireAt = cmd.NowMs + cmd.TTLMs
			}
			fsm.leases[cmd.Key] = l
		}
		return result(store.RetCSuccess, "")

	case internal.CommandTUnlock:
		fsm.leaseMu.Lock()
		defer fsm.leaseMu.Unlock()
		l, held := fsm.leases[cmd.Key]
		if held && !l.Expired(cmd.NowMs) && !bytes.Equal(l.Value, cmd.Value) {
			return sm.Result{Value: uint64(store.RetCSuccess), Data: []byte{0}}
		}
		delete(fsm.leases, cmd.Key)
		return sm.Result{Value: uint64(store.RetCSuccess), Data: []byte{1}}

	default:
		return result(store.RetCInvalidOperation, fmt.Sprintf("unknown Command operation: %s", cmd.Type))
	}
}

// pruneLeases removes all leases expired at nowMs. Must be called with leaseMu held.
func (fsm *KVStateMachine) pruneLeases(nowMs int64) {
	for key, l := range fsm.leases {
		if l.Expired(nowMs) {
			delete(fsm.leases, key)
		}
	}
}

func result(code store.RetCode, msg string) sm.Result {
	r := sm.Result{Value: uint64(code)}
	if msg != "" {
		r.Data = []byte(msg)
	}
	return r
}

// PrepareSnapshot captures an engine snapshot and a copy of the leases.
// Dragonboat never runs it concurrently with Update, so both belong to the
// same log index.
func (fsm *KVStateMachine) PrepareSnapshot() (interface{}, error) {
	if !fsm.database.SupportsFeature(db.FeatureSave) {
		return nil, fmt.Errorf("the used KVDB implementation does not support Save() operations")
	}

	fsm.leaseMu.RLock()
	leases := make(map[string]store.Lease, len(fsm.leases))
	for k, v := range fsm.leases {
		leases[k] = v
	}
	fsm.leaseMu.RUnlock()

	return &snapshotState{snap: fsm.database.Snapshot(), leases: leases}, nil
}

// SaveSnapshot writes the leases followed by the engine snapshot.
func (fsm *KVStateMachine) SaveSnapshot(ctx interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	state, ok := ctx.(*snapshotState)
	if !ok {
		return fmt.Errorf("invalid snapshot context type: %T", ctx)
	}
	defer state.snap.Release()

	if err := writeLeases(writer, state.leases); err != nil {
		return err
	}
	return state.snap.Save(writer)
}

// RecoverFromSnapshot replaces the state of the machine with the snapshot.
func (fsm *KVStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureLoad) {
		return fmt.Errorf("the used KVDB implementation does not support Load() operations")
	}

	leases, err := readLeases(r)
	if err != nil {
		return fmt.Errorf("failed to read leases: %w", err)
	}
	if err := fsm.database.Load(r); err != nil {
		return err
	}

	fsm.leaseMu.Lock()
	fsm.leases = leases
	fsm.leaseMu.Unlock()
	return nil
}

// Close performs any necessary cleanup.
func (fsm *KVStateMachine) Close() error {
	return fsm.database.Close()
}

// --------------------------------------------------------------------------
// Lease Serialization
// --------------------------------------------------------------------------

// maxLeaseField bounds key and value sizes read from a snapshot
const maxLeaseField = 64 << 20

// writeLeases writes: 4 bytes count, then per lease 4 bytes key length | key |
// 4 bytes value length | value | 8 bytes expiry (unix ms). Big endian.
func writeLeases(w io.Writer, leases map[string]store.Lease) error {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(leases)))
	for key, l := range leases {
		_ = binary.Write(&buf, binary.BigEndian, uint32(len(key)))
		buf.WriteString(key)
		_ = binary.Write(&buf, binary.BigEndian, uint32(len(l.Value)))
		buf.Write(l.Value)
		_ = binary.Write(&buf, binary.BigEndian, l.ExpireAt)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// readLeases reads exactly the bytes written by writeLeases.
func readLeases(r io.Reader) (map[string]store.Lease, error) {
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, err
	}

	readField := func() ([]byte, error) {
		var n uint32
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		if n > maxLeaseField {
			return nil, fmt.Errorf("lease field of %d bytes exceeds limit", n)
		}
		b := make([]byte, n)
		_, err := io.ReadFull(r, b)
		return b, err
	}

	leases := make(map[string]store.Lease, min(count, 1024))
	for i := uint32(0); i < count; i++ {
		key, err := readField()
		if err != nil {
			return nil, err
		}
		value, err := readField()
		if err != nil {
			return nil, err
		}
		var expireAt int64
		if err := binary.Read(r, binary.BigEndian, &expireAt); err != nil {
			return nil, err
		}
		leases[string(key)] = store.Lease{Value: value, ExpireAt: expireAt}
	}
	return leases, nil
}
