package dbs

import "errors"

var (
	// ErrNsEmpty is returned by statements that need a namespace when none
	// is selected.
	ErrNsEmpty = errors.New("specify a namespace to use")

	// ErrDbEmpty is returned by statements that need a database when none
	// is selected.
	ErrDbEmpty = errors.New("specify a database to use")

	// ErrQueryCancelled replaces the result of every statement that ran
	// before the batch was cancelled.
	ErrQueryCancelled = errors.New("the query was not executed due to a cancelled transaction")

	// ErrQueryNotExecuted is the result of every statement after the one
	// that cancelled the batch.
	ErrQueryNotExecuted = errors.New("the query was not executed due to a failed transaction")

	// ErrCommitFailed wraps the commit error for every statement that
	// succeeded in a batch whose transaction could not be committed.
	ErrCommitFailed = errors.New("the query was not executed due to a failed commit")
)
