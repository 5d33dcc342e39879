// Package lockmgr provides exclusive, named locks. The kvs layer uses them to
// serialize transactions opened in lock mode.
//
// Two implementations share the ILockManager interface:
//
//   - Local (NewLocalLockManager): One weighted semaphore per key, kept in an
//     xsync.MapOf. Waiters block in AcquireLock until the holder releases the
//     lock or their context is done. Suitable whenever all transactions run
//     in one process (memory and file backends).
//
//   - Store-backed (NewLockManager): Locks are leases of a store.ILockStore.
//     With the distributed store this gives cluster-wide locks decided by
//     consensus.
//
// Implementation Approach (store-backed):
//
//	- Lock Acquisition: SetIfUnset creates the lease only if no unexpired
//	  lease exists, which guarantees that only one requester can create it.
//	  The value is a random owner ID identifying the holder.
//
//	- Lock Verification: SetIfUnset is followed by GetLock to confirm the
//	  lease holds our owner ID.
//
//	- Waiting: AcquireLock repeats the attempt with a doubling pause until it
//	  succeeds or the context is done.
//
//	- Timeouts: A ttl makes leases expire, preventing deadlocks if a client
//	  crashes while holding a lock.
//
//	- Safe Release: DeleteIfEqual removes the lease only if it still carries
//	  the owner ID of the caller.
//
// The store-backed manager keeps no state of its own and can be created any
// number of times on the same store.
package lockmgr
