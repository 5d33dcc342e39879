package internal

// QueryType defines the possible queries for the state machine.
type QueryType uint8

const (
	QueryTSnapshot  QueryType = iota // Take a snapshot of the local replica.
	QueryTGetLock                    // Retrieve the unexpired lease of a key.
	QueryTGetDBInfo                  // Retrieve metadata about the database underlying the machine.
)

func (q QueryType) String() string {
	switch q {
	case QueryTSnapshot:
		return "Snapshot"
	case QueryTGetLock:
		return "GetLock"
	case QueryTGetDBInfo:
		return "GetDBInfo"
	default:
		return "Unknown"
	}
}

// Query defines the structure for lookup requests (read-only) sent via SyncRead.
// Queries are executed on the local replica and are therefore never serialized.
type Query struct {
	Type  QueryType // The type of Query to perform.
	Key   string    // The key for the Query (empty for some queries).
	NowMs int64     // GetLock: the clock reading used to decide expiry.
}

// QueryResult is the result of a QueryTGetLock operation.
// All other query results are predefined types (db.Snapshot, db.DatabaseInfo).
type QueryResult struct {
	Ok    bool
	Value []byte
}
