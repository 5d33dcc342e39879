// Package common holds the logging setup shared by all packages of dQL.
//
// Every package obtains its logger through dragonboat's logger registry
// (logger.GetLogger(name)), so the raft internals and the database layers
// write through the same factory and use one line format:
//
//	2025/01/02 15:04:05 INFO  | kvs             | message
//
// InitLoggers must run before the first logger is used for the custom
// format to apply; the CLI calls it from its persistent pre-run hook.
package common
