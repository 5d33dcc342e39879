package kvs

import "github.com/ValentinKolb/dQL/lib/store"

// Iterator walks the result of Transaction.Scan.
//
//	it, err := tx.Scan(ctx, store.PrefixRange("user/"))
//	if err != nil { ... }
//	defer it.Close()
//	for it.Next() {
//		use(it.Key(), it.Value())
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator struct {
	tx  *Transaction
	it  store.Iterator
	err error
}

// Next advances to the next entry. It returns false at the end of the range,
// on error, and once the transaction has terminated.
func (i *Iterator) Next() bool {
	if i.err != nil {
		return false
	}
	if i.tx.done {
		i.err = ErrTxFinished
		return false
	}
	return i.it.Next()
}

// Key returns the key of the current entry.
func (i *Iterator) Key() []byte { return []byte(i.it.Key()) }

// Value returns the value of the current entry. It is only valid until the next call to Next.
func (i *Iterator) Value() []byte { return i.it.Value() }

// Err returns the error that stopped the iteration.
func (i *Iterator) Err() error {
	if i.err != nil {
		return i.err
	}
	return i.it.Err()
}

// Close releases the iterator.
func (i *Iterator) Close() error { return i.it.Close() }
