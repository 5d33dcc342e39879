// Package dstore implements a distributed, fault-tolerant transaction store using
// the Dragonboat RAFT consensus library. It implements store.IStore and
// store.ILockStore and is the backend behind "raft://" connection strings.
//
// Architecture:
//
// The dstore implementation consists of three main components:
//
//   - Store: Implements the store interfaces. Transactions read from a
//     snapshot of the local replica and buffer their writes; Commit proposes
//     one batch command to the RAFT cluster.
//
//   - State Machine: A Dragonboat IConcurrentStateMachine that holds the
//     db.KVDB engine and the lock leases of a shard. It validates and applies
//     committed batches on every replica.
//
//   - Communication Protocol: Defined in the internal package, this consists of
//     Commands (serialized, stored in the RAFT log) and Queries (in-process).
//
// Transactions:
//
//	1. Begin issues a SyncRead. Once the local replica has applied every entry
//	   committed before the read, the state machine returns an engine snapshot.
//	   The transaction reads exclusively from this snapshot (snapshot isolation).
//	2. Writes are buffered locally. Point reads of write transactions record the
//	   version they observed.
//	3. Commit serializes the read set, the read version and the writes into a
//	   CommandTCommit and proposes it via SyncPropose.
//	4. Every replica validates the batch against its engine exactly like the
//	   in-memory store does and applies it at the RAFT log index. A batch that
//	   lost against a concurrent commit is answered with RetCConflict on all
//	   replicas alike.
//
//	Engine versions are RAFT log indexes. The engine must not make decisions
//	based on wall time or local state in Apply: use maple with InlineGC.
//
// Leases:
//
//	Lock leases live in the state machine next to the engine. Lock and unlock
//	commands carry the proposer's clock reading, so expiry is decided from the
//	log alone and replicas never disagree. Leases are part of the snapshots.
//
// Error Handling and Retries:
//
//	Requests rejected by Dragonboat before they reached the log (ErrSystemBusy,
//	ErrShardNotReady) are retried after a short delay. Every attempt is bounded
//	by the configured timeout and by the caller's context. Other errors, and
//	timeouts in particular, are returned to the caller because the proposal may
//	still be applied.
//
// Snapshotting and Recovery:
//
//	PrepareSnapshot captures an engine snapshot and a copy of the leases while
//	Update is paused. SaveSnapshot streams both while new entries are applied.
//	RecoverFromSnapshot replaces leases and engine content.
//
// Usage:
//
//	cfg, err := dstore.ParseURL("raft://127.0.0.1:63001?dir=/var/lib/dql")
//	if err != nil { ... }
//
//	dbFactory := func() db.KVDB {
//		return maple.NewMapleDB(&maple.DBOptions{InlineGC: true, Retention: 10_000})
//	}
//	s, err := dstore.StartNode(ctx, cfg, dbFactory, clock.NewSystemClock())
//	if err != nil { ... }
//	defer s.Close()
//
// Deployment Recommendations:
//
//   - Node Count: Deploy with an odd number of nodes (typically 3, 5, or 7) to ensure
//     majority consensus is always possible.
//
//   - Network Quality: Ensure low-latency connections between nodes. The
//     timeout should be adjusted to the expected round trip times.
//
// For scenarios where distributed consensus is not required, consider using the simpler
// and faster lstore package.
package dstore
