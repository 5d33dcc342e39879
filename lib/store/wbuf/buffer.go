package wbuf

import (
	"github.com/ValentinKolb/dQL/lib/db"
	"github.com/ValentinKolb/dQL/lib/store"
	"github.com/google/btree"
)

const degree = 16

// KV is a key-value pair returned by a fetch function
type KV struct {
	Key   string
	Value []byte
}

type pending struct {
	key     string
	value   []byte
	deleted bool
}

func lessPending(a, b pending) bool { return a.key < b.key }

// Buffer holds the uncommitted writes of one transaction.
//
// Thread-safety: Buffer is not thread-safe, it is owned by its transaction.
type Buffer struct {
	tree *btree.BTreeG[pending]
}

// New returns an empty buffer
func New() *Buffer {
	return &Buffer{tree: btree.NewG[pending](degree, lessPending)}
}

// Put buffers a write of value under key. The value is copied.
func (b *Buffer) Put(key string, value []byte) {
	v := make([]byte, len(value))
	copy(v, value)
	b.tree.ReplaceOrInsert(pending{key: key, value: v})
}

// Delete buffers a delete of key
func (b *Buffer) Delete(key string) {
	b.tree.ReplaceOrInsert(pending{key: key, deleted: true})
}

// Get returns the buffered state of key. ok is false if the key was not
// written by the transaction; deleted is true if the last write was a delete.
func (b *Buffer) Get(key string) (value []byte, deleted bool, ok bool) {
	p, ok := b.tree.Get(pending{key: key})
	if !ok {
		return nil, false, false
	}
	if p.deleted {
		return nil, true, true
	}
	v := make([]byte, len(p.value))
	copy(v, p.value)
	return v, false, true
}

// Len returns the number of buffered writes
func (b *Buffer) Len() int {
	return b.tree.Len()
}

// Writes returns the buffered writes in key order
func (b *Buffer) Writes() []db.Write {
	writes := make([]db.Write, 0, b.tree.Len())
	b.tree.Ascend(func(p pending) bool {
		writes = append(writes, db.Write{Key: p.key, Value: p.value, Delete: p.deleted})
		return true
	})
	return writes
}

// Range returns the buffered writes inside r in key order. The result is a
// copy, later writes to the buffer do not change it.
func (b *Buffer) Range(r store.Range) []db.Write {
	var writes []db.Write
	b.tree.AscendGreaterOrEqual(pending{key: r.Start}, func(p pending) bool {
		if !r.Contains(p.key) {
			return false
		}
		writes = append(writes, db.Write{Key: p.key, Value: p.value, Delete: p.deleted})
		return true
	})
	return writes
}

// Reset drops all buffered writes
func (b *Buffer) Reset() {
	b.tree.Clear(false)
}
