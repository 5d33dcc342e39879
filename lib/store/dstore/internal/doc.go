// Package internal provides the communication protocol structures and serialization
// logic for the dstore package.
//
// This package is intended for internal use by the dstore implementation and should
// not be imported directly by external code.
//
// The package consists of two main components:
//
//   - Command System: Defines write operations (Commit, Lock, Unlock) that modify the
//     state of the shard. Commands are serialized and proposed to the RAFT cluster,
//     executed on the state machine of every replica, and produce a result code.
//
//   - Query System: Defines read operations (Snapshot, GetLock, GetDBInfo). Queries are
//     executed locally on the state machine and therefore do not require serialization.
//
// Command Format:
//
//	Commands use a compact binary encoding (big endian) that starts with one
//	byte for the command type. The exact layout of each type is documented on
//	Command.Serialize. Decoding validates every length against the remaining
//	data, so a corrupted entry yields an error instead of a panic.
//
// Thread Safety:
//
//	The types in this package are not thread-safe and should not be shared
//	across goroutines without external synchronization.
package internal
