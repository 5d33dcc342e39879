// Package snaptx implements the transaction shared by the stores that read
// from a db.Snapshot: lstore and dstore. Reads are served from the snapshot
// taken at Begin, writes are buffered in a wbuf.Buffer, and Commit hands the
// read and write sets to the store, which validates and applies them.
package snaptx
