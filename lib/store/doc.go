// Package store defines the backend contract of dQL: a transactional, ordered
// key-value store. It sits between the kvs transaction layer and the concrete
// backends, which differ radically in how they store and replicate data but
// all expose the same transactions.
//
// Key Components:
//
//   - IStore / ITx / Iterator: A store hands out transactions with Begin.
//     Transactions read, write, scan half-open key ranges (Range) and end with
//     exactly one Commit or Cancel. Read-only transactions reject writes.
//
//   - ILockStore: Leases with an optional ttl, stored outside the transactional
//     keyspace. They back the store-backed lock manager (lib/lockmgr).
//
//   - Error System: Every error returned by a store is a *Error carrying a
//     RetCode. Callers branch on the code (CodeOf) or compare against the
//     sentinel errors with errors.Is, e.g. errors.Is(err, store.ErrConflict).
//
//   - DBFactory: A function type that abstracts the creation of underlying
//     db.KVDB engines for the stores built on them.
//
// Implementations:
//
//	- Local Store (lstore): In-memory, over a db.KVDB engine. Snapshot isolation
//	  with optimistic validation at commit. Backend of "memory".
//
//	- File Store (fstore): Embedded, persistent, over a bbolt file. Write
//	  transactions are serialized by bbolt, so commits never conflict. Backend
//	  of "file://".
//
//	- Distributed Store (dstore): Replicated with Dragonboat RAFT. Same
//	  isolation and validation as lstore, decided by the replicated state
//	  machine. Backend of "raft://".
//
// The conformance suites in lib/store/testing verify that every backend
// satisfies the contract.
package store
