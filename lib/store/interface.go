package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/dQL/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.KVDB

// IStore is the generic interface for a transactional key–value store.
// Every read and write happens inside a transaction opened with Begin.
type IStore interface {
	// Begin opens a new transaction. A transaction opened with write=false
	// rejects all write operations with RetCReadOnly.
	Begin(ctx context.Context, write bool) (tx ITx, err error)
	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo(ctx context.Context) (info db.DatabaseInfo, err error)
	// Close releases all resources held by the store.
	Close() (err error)
}

// ITx is a backend transaction. Implementations are not safe for concurrent
// use: a transaction is owned by exactly one caller.
//
// Every method returns a *Error with code RetCFinished once the transaction
// was committed or cancelled.
type ITx interface {
	// Get returns the value for a key. The boolean return value indicates whether a value for the key was found.
	// The transaction observes its own writes.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Put inserts or updates a key–value pair.
	Put(ctx context.Context, key string, value []byte) (err error)
	// Delete removes a key–value pair. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) (err error)
	// Scan returns an iterator over all keys in the range in ascending order,
	// including the transaction's own writes.
	Scan(ctx context.Context, r Range) (it Iterator, err error)
	// Commit makes all writes of the transaction visible atomically. A
	// concurrent modification of the read or write set fails with RetCConflict.
	Commit(ctx context.Context) (err error)
	// Cancel discards all writes of the transaction.
	Cancel() (err error)
	// Writable reports whether the transaction was opened for writing.
	Writable() bool
}

// Iterator walks the result of a Scan.
//
//	it, err := tx.Scan(ctx, r)
//	...
//	defer it.Close()
//	for it.Next() {
//		use(it.Key(), it.Value())
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator interface {
	// Next advances the iterator and reports whether an entry is available.
	Next() bool
	// Key returns the key of the current entry.
	Key() string
	// Value returns the value of the current entry. The slice is only valid until the next call to Next.
	Value() []byte
	// Err returns the error that stopped the iteration, if any.
	Err() error
	// Close releases the iterator.
	Close() error
}

// ILockStore is implemented by stores that can hold leases for the
// store-backed lock manager. Leases live next to the data but outside of the
// transactional keyspace.
type ILockStore interface {
	// SetIfUnset stores value under key if no unexpired lease exists. A ttl of
	// zero means the lease never expires. No error is returned if the key is held.
	SetIfUnset(ctx context.Context, key string, value []byte, ttl time.Duration) (err error)
	// GetLock returns the value of the unexpired lease stored under key.
	GetLock(ctx context.Context, key string) (value []byte, found bool, err error)
	// DeleteIfEqual removes the lease if its value equals value.
	// It returns true if the lease was removed or did not exist.
	DeleteIfEqual(ctx context.Context, key string, value []byte) (ok bool, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// Is reports whether target is a *Error with the same code. This makes
// errors.Is(err, store.ErrConflict) work for every conflict error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new StoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Errorf creates a new StoreError with a formatted message.
func Errorf(code RetCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// Sentinel errors for errors.Is checks, only the code is compared.
var (
	ErrInternal  = NewError(RetCInternalError, "internal error")
	ErrInvalid   = NewError(RetCInvalidOperation, "invalid operation")
	ErrConflict  = NewError(RetCConflict, "transaction conflict")
	ErrReadOnly  = NewError(RetCReadOnly, "transaction is read-only")
	ErrFinished  = NewError(RetCFinished, "transaction already finished")
	ErrNotFound  = NewError(RetCNotFound, "not found")
	ErrCancelled = NewError(RetCCancelled, "operation cancelled")
)

// CodeOf returns the RetCode carried by err, RetCSuccess for nil and
// RetCInternalError for foreign errors.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RetCInternalError
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCConflict                            // 4: Transaction conflicts with a concurrent commit.
	RetCReadOnly                            // 5: Write operation on a read-only transaction.
	RetCFinished                            // 6: Transaction was already committed or cancelled.
	RetCNotFound                            // 7: Requested entity does not exist.
	RetCCancelled                           // 8: The context of the operation was cancelled.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCConflict:
		return "Conflict"
	case RetCReadOnly:
		return "ReadOnly"
	case RetCFinished:
		return "Finished"
	case RetCNotFound:
		return "NotFound"
	case RetCCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}
