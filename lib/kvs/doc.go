// Package kvs provides the uniform transaction of dQL and the low-level
// Datastore that selects the storage backend.
//
// A Datastore is created once from a connection string and owns exactly one
// backend (memory, file:// or raft://). Every Transaction it hands out wraps a
// transaction of that backend for its whole lifetime.
//
//	ds, err := kvs.New("memory")
//	if err != nil { ... }
//	defer ds.Close()
//
//	tx, err := ds.Transaction(ctx, true, false)
//	if err != nil { ... }
//	if err := tx.Put(ctx, []byte("k"), []byte("v")); err != nil {
//		_ = tx.Cancel()
//		...
//	}
//	if err := tx.Commit(ctx); kvs.IsConflict(err) {
//		// retry the whole transaction
//	}
//
// Concurrency:
//
//	Without lock, the backend decides: the memory and raft backends detect
//	conflicts at commit, the file backend serializes write transactions. With
//	lock, the transaction holds an exclusive lock (key "txn") from creation
//	until it terminates, so locked transactions never interleave. The lock is
//	process-local for memory and file, and a lease in the raft cluster for
//	raft://.
//
// Metrics:
//
//	Opened, committed, cancelled, conflicting and failed transactions, the
//	transaction duration and the time spent waiting for the lock are exported
//	through VictoriaMetrics/metrics with the prefix dql_kvs_.
package kvs
