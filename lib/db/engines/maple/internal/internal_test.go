package internal

import (
	"testing"
)

func TestTombstoneQueueOrder(t *testing.T) {
	var q TombstoneQueue
	for i := uint64(1); i <= 200; i++ {
		q.Push(Tombstone{Key: "k", Version: i})
	}
	if q.Len() != 200 {
		t.Fatalf("expected 200 tombstones, got %d", q.Len())
	}
	for i := uint64(1); i <= 200; i++ {
		ts, ok := q.Peek()
		if !ok {
			t.Fatalf("queue empty at %d", i)
		}
		if ts.Version != i {
			t.Fatalf("expected version %d, got %d", i, ts.Version)
		}
		q.Pop()
	}
	if _, ok := q.Peek(); ok {
		t.Error("queue should be empty")
	}
	q.Pop() // no-op on empty queue
	if q.Len() != 0 {
		t.Errorf("expected empty queue, got %d", q.Len())
	}
}

func TestTombstoneQueueInterleaved(t *testing.T) {
	var q TombstoneQueue
	next := uint64(1)
	want := uint64(1)
	for round := 0; round < 50; round++ {
		for i := 0; i < 10; i++ {
			q.Push(Tombstone{Version: next})
			next++
		}
		for i := 0; i < 7; i++ {
			ts, _ := q.Peek()
			if ts.Version != want {
				t.Fatalf("round %d: expected %d, got %d", round, want, ts.Version)
			}
			q.Pop()
			want++
		}
	}
	if q.Len() != 150 {
		t.Errorf("expected 150 remaining tombstones, got %d", q.Len())
	}
}
