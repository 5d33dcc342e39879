// Package cmd implements the command-line interface of dQL. Every command
// opens the datastore given by --path (or DQL_PATH), runs and closes it
// again.
//
// The package is organized into several subpackages:
//
//   - sql: Execute queries and print the JSON responses
//   - kv: Raw key-value operations and a performance test
//   - lock: Acquire and release named locks
//   - serve: Keep a replica of a raft cluster running
//   - util: Shared configuration helpers (internal use)
//
// See dql -help for a list of all commands.
package cmd
