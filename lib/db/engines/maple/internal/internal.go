package internal

import (
	"fmt"
)

// --------------------------------------------------------------------------
// Entry Type (key-value pair with metadata)
// --------------------------------------------------------------------------

// Entry stores a key-value pair with metadata. Entries are never modified
// after they were inserted into a tree, a new version replaces the pointer.
type Entry struct {
	Key     string // Ordering key
	Value   []byte // Value data (nil for tombstones)
	Version uint64 // Version of the batch that wrote this entry
	Deleted bool   // Tombstone marker
}

// Less orders entries by key and is used as the btree comparator
func Less(a, b *Entry) bool {
	return a.Key < b.Key
}

// Probe returns an entry that can be used to look up key in a tree
func Probe(key string) *Entry {
	return &Entry{Key: key}
}

func (e *Entry) String() string {
	if e.Deleted {
		return fmt.Sprintf("Entry{Key: %q, Version: %d, Deleted}", e.Key, e.Version)
	}
	return fmt.Sprintf("Entry{Key: %q, Version: %d, Size: %d}", e.Key, e.Version, len(e.Value))
}

// --------------------------------------------------------------------------
// Tombstone queue
// --------------------------------------------------------------------------

// Tombstone references a deleted entry that still has to be collected
type Tombstone struct {
	Key     string
	Version uint64
}

// TombstoneQueue is a FIFO of tombstones. Batches are applied in version
// order, so the queue is sorted by version without any extra work.
//
// Thread-safety: TombstoneQueue is not thread-safe.
type TombstoneQueue struct {
	items []Tombstone
	head  int
}

// Push appends a tombstone to the end of the queue
func (q *TombstoneQueue) Push(t Tombstone) {
	q.items = append(q.items, t)
}

// Peek returns the oldest tombstone without removing it
func (q *TombstoneQueue) Peek() (Tombstone, bool) {
	if q.head >= len(q.items) {
		return Tombstone{}, false
	}
	return q.items[q.head], true
}

// Pop removes the oldest tombstone
func (q *TombstoneQueue) Pop() {
	if q.head >= len(q.items) {
		return
	}
	q.items[q.head] = Tombstone{}
	q.head++

	// compact once the consumed prefix dominates the slice
	if q.head > 64 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
}

// Len returns the number of queued tombstones
func (q *TombstoneQueue) Len() int {
	return len(q.items) - q.head
}

// Reset drops all queued tombstones
func (q *TombstoneQueue) Reset() {
	q.items = nil
	q.head = 0
}
