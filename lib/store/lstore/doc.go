// Package lstore implements a local, in-memory, single-node transaction store
// based on the store.IStore interface. Data is stored entirely in a db.KVDB
// engine (maple by default) and is not persisted between process restarts.
// This is the backend behind the "memory" connection string.
//
// Key Features:
//   - Snapshot isolation: every transaction reads from an engine snapshot
//     taken at Begin and sees its own buffered writes on top of it
//   - Optimistic concurrency control: reads of write transactions are recorded
//     and validated by the engine at commit
//   - Commit versions from a clock.Clock, so entry versions are timestamps
//   - Leases for the store-backed lock manager (store.ILockStore)
//
// Implementation Details:
//
//   - Versions: Commit takes a store-wide mutex and asks the clock for the
//     current timestamp. If the clock did not advance past the engine version
//     (fake clocks, two commits in the same millisecond) the engine version
//     plus one is used instead. Versions therefore increase strictly.
//
//   - Validation: Each point read records the version of the entry it
//     returned, or the snapshot version if the key was absent. Written keys are
//     validated against the snapshot version. The engine rejects the batch with
//     db.ErrConflict when any of these keys was committed later, which is
//     reported as store.RetCConflict. Scans are not recorded.
//
//   - Read-only Transactions: Read-only transactions neither record reads nor
//     buffer writes. Commit simply releases the snapshot.
//
//   - Leases: Lock leases are kept in an xsync.MapOf next to the engine. They
//     are not versioned and not visible to transactions. Expiry is measured with
//     the store's clock.
//
// Thread Safety:
//
//	The store is safe for concurrent use. A single transaction is not and must
//	be owned by one goroutine.
//
// Usage Example:
//
//	factory := func() db.KVDB { return maple.NewMapleDB(nil) }
//	s := lstore.NewLocalStore(factory, clock.NewSystemClock())
//
//	tx, _ := s.Begin(ctx, true)
//	_ = tx.Put(ctx, "greeting", []byte("hello"))
//	if err := tx.Commit(ctx); err != nil {
//		// store.CodeOf(err) == store.RetCConflict -> retry
//	}
//
// For distributed scenarios requiring consensus across multiple nodes, consider
// using the dstore package instead, which provides a RAFT-based implementation
// of the same interface.
package lstore
