// Package dbs executes statements.
//
// An Executor runs a batch of statements in a single kvs.Transaction, which
// is writeable when at least one statement is. Every statement produces one
// Response. A failing statement does not stop the batch unless the
// executor was created WithStopOnError or the statement is a CANCEL: then
// the transaction is cancelled, the earlier responses are replaced by
// ErrQueryCancelled and the remaining statements report
// ErrQueryNotExecuted. A batch that runs to the end is committed; if the
// commit fails every successful response is replaced by the commit error.
//
// The scope statements see is a frozen ctx.Context. LET and USE derive a
// new frozen child for the statements that follow, so nothing in the scope
// given to Execute is ever changed.
package dbs
