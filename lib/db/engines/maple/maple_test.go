package maple

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ValentinKolb/dQL/lib/db"
)

func put(key, value string) db.Write {
	return db.Write{Key: key, Value: []byte(value)}
}

func del(key string) db.Write {
	return db.Write{Key: key, Delete: true}
}

func TestCollectRespectsSnapshots(t *testing.T) {
	m := newMaple(&DBOptions{InlineGC: true}) // no background goroutine
	defer m.Close()

	if err := m.Apply(&db.Batch{Writes: []db.Write{put("a", "1")}}, 1); err != nil {
		t.Fatal(err)
	}

	snap := m.Snapshot()

	if err := m.Apply(&db.Batch{ReadVersion: 1, Writes: []db.Write{del("a")}}, 2); err != nil {
		t.Fatal(err)
	}

	// the snapshot pins version 1, the tombstone at version 2 must survive
	m.mu.Lock()
	removed := m.collect(m.gcHorizon())
	m.mu.Unlock()
	if removed != 0 {
		t.Fatalf("expected tombstone to be kept while snapshot is open, removed %d", removed)
	}

	if v, _, ok := snap.Get("a"); !ok || string(v) != "1" {
		t.Errorf("snapshot should still see the old value, got %q (%v)", v, ok)
	}

	snap.Release()

	m.mu.Lock()
	removed = m.collect(m.gcHorizon())
	purged := m.purged
	m.mu.Unlock()
	if removed != 1 {
		t.Fatalf("expected tombstone to be collected after release, removed %d", removed)
	}
	if purged != 2 {
		t.Errorf("expected purge watermark 2, got %d", purged)
	}
	if m.tree.Len() != 0 {
		t.Errorf("expected empty tree, got %d entries", m.tree.Len())
	}
}

func TestPurgedKeysStillConflict(t *testing.T) {
	m := newMaple(&DBOptions{InlineGC: true})
	defer m.Close()

	_ = m.Apply(&db.Batch{Writes: []db.Write{put("a", "1")}}, 1)
	_ = m.Apply(&db.Batch{ReadVersion: 1, Writes: []db.Write{del("a")}}, 2)

	m.mu.Lock()
	m.collect(m.version)
	m.mu.Unlock()

	// a writer that read before the delete must not overwrite it blindly
	err := m.Apply(&db.Batch{ReadVersion: 1, Writes: []db.Write{put("a", "x")}}, 3)
	if !errors.Is(err, db.ErrConflict) {
		t.Fatalf("expected conflict for key purged after the read version, got %v", err)
	}

	// a writer that read after the delete can create the key again
	if err := m.Apply(&db.Batch{ReadVersion: 2, Writes: []db.Write{put("a", "y")}}, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRewriteAfterDeleteKeepsEntry(t *testing.T) {
	m := newMaple(&DBOptions{InlineGC: true})
	defer m.Close()

	_ = m.Apply(&db.Batch{Writes: []db.Write{put("a", "1")}}, 1)
	_ = m.Apply(&db.Batch{ReadVersion: 1, Writes: []db.Write{del("a")}}, 2)
	_ = m.Apply(&db.Batch{ReadVersion: 2, Writes: []db.Write{put("a", "2")}}, 3)

	m.mu.Lock()
	removed := m.collect(m.version)
	m.mu.Unlock()

	if removed != 0 {
		t.Errorf("the rewritten entry must not be collected, removed %d", removed)
	}
	if v, version, ok := m.Get("a"); !ok || !bytes.Equal(v, []byte("2")) || version != 3 {
		t.Errorf("unexpected entry %q@%d (%v)", v, version, ok)
	}
}

func TestInlineRetention(t *testing.T) {
	m := newMaple(&DBOptions{InlineGC: true, Retention: 2})
	defer m.Close()

	_ = m.Apply(&db.Batch{Writes: []db.Write{put("a", "1")}}, 1)
	_ = m.Apply(&db.Batch{ReadVersion: 1, Writes: []db.Write{del("a")}}, 2)
	_ = m.Apply(&db.Batch{ReadVersion: 2, Writes: []db.Write{put("b", "1")}}, 3)

	if m.tombstones.Len() != 1 {
		t.Fatalf("tombstone should be retained for two versions, queue has %d", m.tombstones.Len())
	}

	_ = m.Apply(&db.Batch{ReadVersion: 3, Writes: []db.Write{put("c", "1")}}, 4)

	if m.tombstones.Len() != 0 {
		t.Fatalf("tombstone should be collected at version 4, queue has %d", m.tombstones.Len())
	}
	if m.purged != 2 {
		t.Errorf("expected purge watermark 2, got %d", m.purged)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	m := newMaple(nil)
	defer m.Close()

	if err := m.Load(bytes.NewReader([]byte("NOTMAPLE"))); err == nil {
		t.Error("expected error for invalid magic number")
	}
}
