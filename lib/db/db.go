package db

import (
	"errors"
	"io"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple Implementation = "maple"
	ImplBolt  Implementation = "bbolt"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureSnapshot       Feature = 1 << iota // Support for consistent point-in-time snapshots
	FeatureScan                               // Support for ordered range scans
	FeatureConflictCheck                      // Support for optimistic validation in Apply
	FeatureSave                               // Support for Save operations
	FeatureLoad                               // Support for Load operations
	FeatureGarbageCollect                     // Support for tombstone garbage collection
)

func (f Feature) String() string {
	switch f {
	case FeatureSnapshot:
		return "Snapshot"
	case FeatureScan:
		return "Scan"
	case FeatureConflictCheck:
		return "ConflictCheck"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	case FeatureGarbageCollect:
		return "GarbageCollect"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	Keys              int            `json:"keys"`
	Version           uint64         `json:"version"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrConflict is returned by Apply when the read or write set of a batch was
	// modified by a batch committed after the reads were made.
	ErrConflict = errors.New("db: transaction conflict")

	// ErrStaleVersion is returned by Apply when the commit version is not newer
	// than the current version of the database.
	ErrStaleVersion = errors.New("db: commit version is not newer than the database version")
)

// --------------------------------------------------------------------------
// Batches
// --------------------------------------------------------------------------

// Read records that a transaction observed key at Version. For keys that were
// absent the version is the snapshot version the lookup was made against.
type Read struct {
	Key     string
	Version uint64
}

// Write is one buffered mutation of a batch.
type Write struct {
	Key    string
	Value  []byte
	Delete bool
}

// Batch is the unit of atomic application. ReadVersion is the version of the
// snapshot the transaction read from; written keys must not have been changed
// after it.
type Batch struct {
	ReadVersion uint64
	Reads       []Read
	Writes      []Write
}

// Empty reports whether the batch carries no writes.
func (b *Batch) Empty() bool {
	return b == nil || len(b.Writes) == 0
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// Snapshot is an immutable view of the database at a version. A snapshot must
// be released once it is no longer used so that the engine can collect
// tombstones older than it.
type Snapshot interface {
	// Version returns the version of the database the snapshot was taken at.
	Version() uint64

	// Get returns a copy of the value stored for key and the version it was
	// written at.
	Get(key string) (value []byte, version uint64, ok bool)

	// Ascend calls fn for every live key in [start, end) in ascending order until
	// fn returns false. An empty end means no upper bound. The value passed to fn
	// must not be retained or modified.
	Ascend(start, end string, fn func(key string, value []byte, version uint64) bool)

	// Save writes the content of the snapshot in the format accepted by
	// KVDB.Load. Engines without FeatureSave return an error.
	Save(w io.Writer) error

	// Release frees the snapshot. Using a snapshot after release is undefined.
	Release()
}

// KVDB defines an interface for ordered, versioned key-value database
// implementations. Every committed batch advances the database to a new
// version; readers use snapshots to observe a consistent state while writers
// continue.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Read Operations
	// --------------------------------------------------------------------------

	// Get retrieves the latest committed value for an exact key together with the
	// version it was written at. The returned value is a copy.
	Get(key string) (value []byte, version uint64, ok bool)

	// Snapshot returns a consistent view of the current version.
	Snapshot() Snapshot

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Apply validates the batch and, if validation succeeds, atomically applies
	// all of its writes at version. Validation fails with ErrConflict if any read
	// key changed after the version it was read at, or if any written key changed
	// after the batch's ReadVersion. A version that is not greater than the
	// current version fails with ErrStaleVersion.
	Apply(batch *Batch, version uint64) (err error)

	// Version returns the version of the last applied batch.
	Version() uint64

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load restores the database state data provided by an io.Reader.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close closes the database.
	Close() (err error)
}
