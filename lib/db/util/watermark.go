package util

import (
	"container/heap"
)

// Watermark tracks the versions pinned by open snapshots and reports the
// lowest of them. It combines a binary heap with a map so that snapshots can
// be released by id in O(log n) while the minimum stays available in O(1).
//
// Concurrency: Watermark is not thread-safe, callers must synchronize access.
type Watermark struct {
	pins  pinHeap
	byID  map[uint64]*pin
	total uint64
}

type pin struct {
	id      uint64
	version uint64
	index   int
}

// NewWatermark returns an empty watermark.
func NewWatermark() *Watermark {
	return &Watermark{
		byID: make(map[uint64]*pin),
	}
}

// Pin registers version for the snapshot id. Pinning an id twice moves the
// existing pin.
func (w *Watermark) Pin(id, version uint64) {
	if p, ok := w.byID[id]; ok {
		p.version = version
		heap.Fix(&w.pins, p.index)
		return
	}
	p := &pin{id: id, version: version}
	heap.Push(&w.pins, p)
	w.byID[id] = p
	w.total++
}

// Unpin releases the snapshot id. It returns the version that was pinned and
// whether the id was known.
func (w *Watermark) Unpin(id uint64) (uint64, bool) {
	p, ok := w.byID[id]
	if !ok {
		return 0, false
	}
	heap.Remove(&w.pins, p.index)
	delete(w.byID, id)
	return p.version, true
}

// Low returns the lowest pinned version. The boolean is false when no
// snapshot is open.
func (w *Watermark) Low() (uint64, bool) {
	if len(w.pins) == 0 {
		return 0, false
	}
	return w.pins[0].version, true
}

// Len returns the number of open pins.
func (w *Watermark) Len() int { return len(w.pins) }

// Total returns how many pins were ever registered.
func (w *Watermark) Total() uint64 { return w.total }

// --------------------------------------------------------------------------
// heap.Interface
// --------------------------------------------------------------------------

type pinHeap []*pin

func (h pinHeap) Len() int           { return len(h) }
func (h pinHeap) Less(i, j int) bool { return h[i].version < h[j].version }

func (h pinHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *pinHeap) Push(x interface{}) {
	p := x.(*pin)
	p.index = len(*h)
	*h = append(*h, p)
}

func (h *pinHeap) Pop() interface{} {
	old := *h
	n := len(old)
	p := old[n-1]
	old[n-1] = nil // avoid memory leak
	p.index = -1
	*h = old[:n-1]
	return p
}
