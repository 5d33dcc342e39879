// Package fstore implements an embedded, single-node transaction store on top
// of a bbolt (go.etcd.io/bbolt) file. This is the backend behind the
// "file://" connection string.
//
// All keys live in one bucket. Transactions map one to one onto bbolt
// transactions:
//
//   - Write transactions take bbolt's single writer lock in Begin and keep it
//     until Commit or Cancel. Write transactions are therefore serialized and
//     Commit never reports a conflict. A second writer blocks in Begin.
//
//   - Read-only transactions are bbolt read transactions and see a consistent
//     snapshot of the file. Any number of them may run next to a writer.
//
//   - Writes go directly into the bbolt transaction, which already provides
//     read-your-own-writes. Values handed out by bbolt are only valid inside
//     the transaction and are copied.
//
//   - Scans fetch the range in chunks, each with a new cursor, so that writes
//     between two steps of an iteration are safe.
//
// The memory map is created large enough for typical databases up front.
// bbolt has to remap the file when it grows past the map, which blocks until
// all read transactions are closed. A goroutine that holds a read transaction
// while committing a write transaction would wait on itself.
package fstore
