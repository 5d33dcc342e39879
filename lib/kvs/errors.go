package kvs

import (
	"errors"

	"github.com/ValentinKolb/dQL/lib/store"
)

var (
	// ErrInvalidPath is returned by New for connection strings with an unknown
	// scheme or a malformed address. It is not retryable.
	ErrInvalidPath = errors.New("kvs: invalid datastore path")

	// ErrTxReadonly is returned by write operations on a read-only transaction.
	ErrTxReadonly = store.NewError(store.RetCReadOnly, "transaction is read-only")

	// ErrTxFinished is returned by every operation on a transaction that was
	// already committed or cancelled.
	ErrTxFinished = store.NewError(store.RetCFinished, "transaction already finished")

	// ErrTxConflict is returned by Commit when the transaction lost against a
	// concurrent commit. The caller may retry the whole transaction.
	ErrTxConflict = store.NewError(store.RetCConflict, "transaction conflict")
)

// IsConflict reports whether err is a commit conflict. Errors of every
// backend carry the same code, so this works regardless of the backend.
func IsConflict(err error) bool {
	return errors.Is(err, ErrTxConflict)
}
