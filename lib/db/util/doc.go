// Package util provides utility components for database implementations that
// satisfy the db.KVDB interface.
//
// The package contains:
//   - functions: hashing helpers (FNV-1a with seed) used to derive stable numeric ids
//   - watermark: a min-heap with key-based removal that tracks the oldest version
//     still referenced by an open snapshot
//   - statistics: a SizeHistogram used to estimate the memory footprint of a database
//     without a full scan
package util
