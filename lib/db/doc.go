// Package db provides a standardized interface for ordered, versioned key-value
// database engines. The engines are the storage layer underneath the in-memory
// and the raft backed transaction stores.
//
// The package focuses on:
//   - A unified interface for versioned reads and atomic batch application
//   - Consistent snapshots for snapshot-isolated transactions
//   - Optimistic conflict validation at apply time
//   - Standardized persistence operations and metadata reporting
//
// Key Components:
//
//   - KVDB Interface: The core interface that all engine implementations must satisfy.
//     Reads return the version an entry was written at. Writes are only possible
//     through Apply, which validates a Batch and applies it atomically at a
//     caller-chosen version.
//
//   - Snapshot: An immutable view of one version. Snapshots pin their version so
//     that deleted entries (tombstones) newer than the oldest open snapshot are
//     kept around for conflict validation.
//
//   - Batch: The read set, the write set and the read version of a transaction.
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method.
//
// Note on Versions:
//   - The engine does not generate versions itself. The caller passes the
//     commit version to Apply, which lets the in-memory store use clock
//     timestamps and the raft store use log indices.
//   - Versions must increase strictly. Apply rejects a version that is not
//     newer than the current one.
//
// Note on Validation:
//   - A key's effective version is the version of its latest entry, including
//     tombstones. When no entry is left (the tombstone was already collected)
//     the effective version is the engine's purge watermark, which makes
//     validation conservative but never wrong.
//   - Range reads are not validated. Phantoms are possible.
//
// Related Packages:
//
// The engines/maple package (github.com/ValentinKolb/dQL/lib/db/engines/maple) provides
// a btree based in-memory implementation of the KVDB interface.
//
// The testing package (github.com/ValentinKolb/dQL/lib/db/testing) provides
// a standardized conformance suite for implementations of the KVDB interface.
package db
