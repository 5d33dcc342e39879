// Package maple implements an ordered, versioned in-memory key-value database
// (KVDB). It provides a complete implementation of the db.KVDB interface and is
// the storage engine of the in-memory transaction store and of the raft state
// machine.
//
// The package focuses on:
//   - Ordered keys with cheap, consistent snapshots for snapshot isolation
//   - Atomic batch application with optimistic conflict validation
//   - Background collection of tombstones once no reader needs them
//   - Persistent storage with an efficient binary encoding
//
// Key Components:
//
//   - mapleImpl: The central database structure implementing db.KVDB. It keeps
//     the latest entry of every key in a google/btree BTreeG ordered by key and
//     guards the tree with a single RWMutex. Reads take the read lock, Apply and
//     Snapshot take the write lock.
//
//   - Entry: An immutable key, value, version triple plus a tombstone flag. An
//     update never modifies an entry in place but replaces the pointer in the
//     tree, which is what makes copy-on-write snapshots safe.
//
//   - snapshot: A clone of the tree taken under the write lock. BTreeG.Clone is
//     lazy: both trees share all nodes until one of them is written, then only
//     the touched path is copied. Every snapshot pins its version in a
//     util.Watermark so the garbage collector knows the oldest version a reader
//     may still validate against.
//
// Validation:
//
//   - Apply rejects a batch with db.ErrConflict if a key in the read set has an
//     effective version above the version it was read at, or a key in the write
//     set has an effective version above the batch's read version.
//   - Deleting a key leaves a tombstone carrying the delete version, so deletes
//     are detected like any other write.
//   - When a tombstone is collected, the purge watermark is raised to its
//     version. Keys without any entry report the watermark as their effective
//     version. This never misses a conflict, it can only report one that a
//     precise history would not.
//
// Garbage Collection:
//
//   - By default a background goroutine wakes up every GCInterval and removes
//     tombstones up to the lowest version pinned by an open snapshot (or the
//     current version when no snapshot is open), minus the configured Retention.
//   - With InlineGC the goroutine is not started. Tombstones older than
//     Retention versions are collected at the end of Apply instead. This mode is
//     used by the raft state machine, where every replica has to reach the same
//     validation decisions and collection must not depend on timing.
//
// Persistence Format: The database uses a compact binary format with the
// following structure:
//  1. Magic number "MAPLEDB\x00" to identify the file format
//  2. Format version (currently 4)
//  3. Database version at the time of the save
//  4. Number of entries
//  5. For each live entry: key length, key bytes, version, value length, value bytes
//
// Save reads from a snapshot and is consistent. Tombstones are not saved, so
// Load sets the purge watermark to the loaded version.
package maple
