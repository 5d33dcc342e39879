package kvs

import (
	"context"
	"time"

	"github.com/ValentinKolb/dQL/lib/clock"
	"github.com/ValentinKolb/dQL/lib/store"
	"github.com/google/uuid"
)

// Transaction is a backend-independent key-value transaction.
// A transaction is owned by a single caller and must be terminated exactly
// once with Commit or Cancel. Every operation after that fails with
// ErrTxFinished.
type Transaction struct {
	id     uuid.UUID
	ds     *Datastore
	tx     store.ITx
	write  bool
	locked bool
	owner  []byte
	ts     clock.Timestamp
	start  time.Time
	done   bool
}

// ID returns the unique id of the transaction.
func (tx *Transaction) ID() string { return tx.id.String() }

// Writeable reports whether the transaction accepts writes.
func (tx *Transaction) Writeable() bool { return tx.write }

// Locked reports whether the transaction holds the serialization lock.
func (tx *Transaction) Locked() bool { return tx.locked }

// Timestamp returns the clock reading taken when the transaction was opened.
func (tx *Transaction) Timestamp() clock.Timestamp { return tx.ts }

// Closed reports whether the transaction was committed or cancelled.
func (tx *Transaction) Closed() bool { return tx.done }

// finished logs use after termination and returns ErrTxFinished
func (tx *Transaction) finished(op string) error {
	log.Errorf("%s called on finished transaction %s", op, tx.id)
	return ErrTxFinished
}

func (tx *Transaction) checkWrite(op string) error {
	if tx.done {
		return tx.finished(op)
	}
	if !tx.write {
		return ErrTxReadonly
	}
	return nil
}

// Get returns the value of key. The boolean reports whether the key exists.
func (tx *Transaction) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	if tx.done {
		return nil, false, tx.finished("Get")
	}
	return tx.tx.Get(ctx, string(key))
}

// Exists reports whether key exists.
func (tx *Transaction) Exists(ctx context.Context, key []byte) (bool, error) {
	_, ok, err := tx.Get(ctx, key)
	return ok, err
}

// Put sets key to value.
func (tx *Transaction) Put(ctx context.Context, key, value []byte) error {
	if err := tx.checkWrite("Put"); err != nil {
		return err
	}
	return tx.tx.Put(ctx, string(key), value)
}

// Del removes key. Removing a missing key is not an error.
func (tx *Transaction) Del(ctx context.Context, key []byte) error {
	if err := tx.checkWrite("Del"); err != nil {
		return err
	}
	return tx.tx.Delete(ctx, string(key))
}

// Scan returns a lazy iterator over the keys in r in ascending order. The
// iterator observes the writes of the transaction and fails with
// ErrTxFinished once the transaction terminates.
func (tx *Transaction) Scan(ctx context.Context, r store.Range) (*Iterator, error) {
	if tx.done {
		return nil, tx.finished("Scan")
	}
	it, err := tx.tx.Scan(ctx, r)
	if err != nil {
		return nil, err
	}
	return &Iterator{tx: tx, it: it}, nil
}

// Commit makes all writes visible atomically and ends the transaction. A
// conflict with a concurrent transaction is reported as an error for which
// IsConflict returns true. The transaction is finished in any case.
func (tx *Transaction) Commit(ctx context.Context) error {
	if tx.done {
		return tx.finished("Commit")
	}
	tx.done = true
	defer tx.unlock()
	defer observeSince(txDuration, tx.start)

	err := tx.tx.Commit(ctx)
	switch {
	case err == nil:
		txCommitted.Inc()
	case IsConflict(err):
		txConflicts.Inc()
		log.Debugf("transaction %s conflicted: %v", tx.id, err)
	default:
		txFailed.Inc()
		log.Warningf("failed to commit transaction %s: %v", tx.id, err)
	}
	return err
}

// Cancel discards all writes and ends the transaction.
func (tx *Transaction) Cancel() error {
	if tx.done {
		return tx.finished("Cancel")
	}
	tx.done = true
	defer tx.unlock()
	defer observeSince(txDuration, tx.start)

	txCancelled.Inc()
	if err := tx.tx.Cancel(); err != nil {
		log.Warningf("backend failed to cancel transaction %s: %v", tx.id, err)
	}
	return nil
}

// unlock releases the serialization lock if the transaction holds it.
func (tx *Transaction) unlock() {
	if !tx.locked {
		return
	}
	tx.locked = false

	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if ok, err := tx.ds.locks.ReleaseLock(ctx, lockKey, tx.owner); err != nil || !ok {
		log.Errorf("failed to release lock of transaction %s: released=%t err=%v", tx.id, ok, err)
	}
}
