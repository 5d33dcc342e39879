package wbuf

import (
	"github.com/ValentinKolb/dQL/lib/db"
	"github.com/ValentinKolb/dQL/lib/store"
)

// --------------------------------------------------------------------------
// Chunked iterator
// --------------------------------------------------------------------------

// FetchFunc returns up to limit entries with keys in [start, end) in
// ascending order. more reports whether entries beyond the returned chunk may
// exist.
type FetchFunc func(start, end string, limit int) (kvs []KV, more bool, err error)

type chunked struct {
	fetch FetchFunc
	end   string
	limit int

	next  string // start key of the next chunk
	chunk []KV
	pos   int
	more  bool
	err   error
	done  bool
}

// Chunked returns an iterator over r that loads entries lazily, limit entries
// at a time.
func Chunked(fetch FetchFunc, r store.Range, limit int) store.Iterator {
	if limit <= 0 {
		limit = 128
	}
	return &chunked{
		fetch: fetch,
		end:   r.End,
		limit: limit,
		next:  r.Start,
		pos:   -1,
		more:  true,
	}
}

func (it *chunked) Next() bool {
	if it.done {
		return false
	}
	it.pos++
	if it.pos < len(it.chunk) {
		return true
	}
	if !it.more {
		it.done = true
		return false
	}

	chunk, more, err := it.fetch(it.next, it.end, it.limit)
	if err != nil {
		it.err = err
		it.done = true
		return false
	}
	it.chunk, it.more, it.pos = chunk, more, 0
	if len(chunk) == 0 {
		it.done = true
		return false
	}
	// the smallest key after the last one of this chunk
	it.next = chunk[len(chunk)-1].Key + "\x00"
	return true
}

func (it *chunked) Key() string {
	if it.pos < 0 || it.pos >= len(it.chunk) {
		return ""
	}
	return it.chunk[it.pos].Key
}

func (it *chunked) Value() []byte {
	if it.pos < 0 || it.pos >= len(it.chunk) {
		return nil
	}
	return it.chunk[it.pos].Value
}

func (it *chunked) Err() error { return it.err }

func (it *chunked) Close() error {
	it.done = true
	it.chunk = nil
	return nil
}

// --------------------------------------------------------------------------
// Merge iterator
// --------------------------------------------------------------------------

type merged struct {
	base    store.Iterator
	overlay []db.Write

	baseOK  bool // base points at a valid entry that was not consumed yet
	started bool
	key     string
	value   []byte
}

// Merge overlays writes (sorted by key) on top of base. Both inputs must cover
// the same range.
func Merge(base store.Iterator, writes []db.Write) store.Iterator {
	return &merged{base: base, overlay: writes}
}

func (it *merged) Next() bool {
	if !it.started {
		it.started = true
		it.baseOK = it.base.Next()
	}

	for {
		if it.base.Err() != nil {
			return false
		}
		hasOverlay := len(it.overlay) > 0
		if !it.baseOK && !hasOverlay {
			return false
		}

		// take the committed entry if it comes first
		if it.baseOK && (!hasOverlay || it.base.Key() < it.overlay[0].Key) {
			it.key, it.value = it.base.Key(), it.base.Value()
			it.baseOK = it.base.Next()
			return true
		}

		w := it.overlay[0]
		it.overlay = it.overlay[1:]

		// the buffered write shadows the committed entry with the same key
		if it.baseOK && it.base.Key() == w.Key {
			it.baseOK = it.base.Next()
		}
		if w.Delete {
			continue
		}
		it.key, it.value = w.Key, w.Value
		return true
	}
}

func (it *merged) Key() string   { return it.key }
func (it *merged) Value() []byte { return it.value }
func (it *merged) Err() error    { return it.base.Err() }
func (it *merged) Close() error  { return it.base.Close() }
