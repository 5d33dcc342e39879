package testing

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dQL/lib/store"
)

// StoreFactory is a function that creates a new, empty store
type StoreFactory func() store.IStore

// Capabilities describes behavior that differs between correct implementations
type Capabilities struct {
	// OptimisticConflicts is set for stores that allow concurrent write
	// transactions and detect conflicts at commit. Stores that serialize write
	// transactions at Begin leave it unset.
	OptimisticConflicts bool
}

// RunIStoreTests runs a comprehensive test suite for an IStore implementation.
func RunIStoreTests(t *testing.T, name string, factory StoreFactory, caps Capabilities) {
	t.Run(name, func(t *testing.T) {
		t.Run("PutGetCommit", func(t *testing.T) {
			testPutGetCommit(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("ReadOnly", func(t *testing.T) {
			testReadOnly(t, factory())
		})

		t.Run("Finished", func(t *testing.T) {
			testFinished(t, factory())
		})

		t.Run("Cancel", func(t *testing.T) {
			testCancel(t, factory())
		})

		t.Run("SnapshotIsolation", func(t *testing.T) {
			testSnapshotIsolation(t, factory())
		})

		t.Run("Scan", func(t *testing.T) {
			testScan(t, factory())
		})

		t.Run("ScanLarge", func(t *testing.T) {
			testScanLarge(t, factory())
		})

		t.Run("ContextCancelled", func(t *testing.T) {
			testContextCancelled(t, factory())
		})

		t.Run("ConcurrentIncrements", func(t *testing.T) {
			testConcurrentIncrements(t, factory())
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory())
		})

		if caps.OptimisticConflicts {
			t.Run("ReadWriteConflict", func(t *testing.T) {
				testReadWriteConflict(t, factory())
			})

			t.Run("WriteWriteConflict", func(t *testing.T) {
				testWriteWriteConflict(t, factory())
			})
		}
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func begin(t *testing.T, s store.IStore, write bool) store.ITx {
	t.Helper()
	tx, err := s.Begin(context.Background(), write)
	if err != nil {
		t.Fatalf("Begin(write=%v) failed: %v", write, err)
	}
	return tx
}

func commitKV(t *testing.T, s store.IStore, kv map[string]string) {
	t.Helper()
	ctx := context.Background()
	tx := begin(t, s, true)
	for k, v := range kv {
		if err := tx.Put(ctx, k, []byte(v)); err != nil {
			t.Fatalf("Put(%s) failed: %v", k, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
}

func readKey(t *testing.T, s store.IStore, key string) (string, bool) {
	t.Helper()
	ctx := context.Background()
	tx := begin(t, s, false)
	defer tx.Cancel()
	value, ok, err := tx.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get(%s) failed: %v", key, err)
	}
	return string(value), ok
}

func scanAll(t *testing.T, tx store.ITx, r store.Range) string {
	t.Helper()
	it, err := tx.Scan(context.Background(), r)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	defer it.Close()

	var parts []string
	for it.Next() {
		parts = append(parts, it.Key()+"="+string(it.Value()))
	}
	if err := it.Err(); err != nil {
		t.Fatalf("Iterator failed: %v", err)
	}
	return strings.Join(parts, ",")
}

func expectCode(t *testing.T, err error, code store.RetCode, op string) {
	t.Helper()
	if got := store.CodeOf(err); got != code {
		t.Errorf("%s: expected code %s, got %s (%v)", op, code, got, err)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGetCommit(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	tx := begin(t, s, true)
	if !tx.Writable() {
		t.Errorf("Write transaction should be writable")
	}
	if err := tx.Put(ctx, "key", []byte("value")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// read your own writes
	value, ok, err := tx.Get(ctx, "key")
	if err != nil || !ok || string(value) != "value" {
		t.Errorf("Expected own write to be visible, got %q %v %v", value, ok, err)
	}

	// not visible to others before commit
	if _, ok := readKey(t, s, "key"); ok {
		t.Errorf("Uncommitted write must not be visible to other transactions")
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if value, ok := readKey(t, s, "key"); !ok || value != "value" {
		t.Errorf("Expected committed value, got %q %v", value, ok)
	}

	// the value passed to Put is copied
	buf := []byte("mutable")
	tx = begin(t, s, true)
	_ = tx.Put(ctx, "copy", buf)
	buf[0] = 'X'
	_ = tx.Commit(ctx)
	if value, _ := readKey(t, s, "copy"); value != "mutable" {
		t.Errorf("Put must copy the value, got %q", value)
	}

	// missing keys
	if _, ok := readKey(t, s, "missing"); ok {
		t.Errorf("Missing key should not be found")
	}
}

func testDelete(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	commitKV(t, s, map[string]string{"a": "1", "b": "2"})

	tx := begin(t, s, true)
	if err := tx.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := tx.Delete(ctx, "missing"); err != nil {
		t.Errorf("Deleting a missing key should not fail: %v", err)
	}
	if _, ok, _ := tx.Get(ctx, "a"); ok {
		t.Errorf("Own delete should hide the key")
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if _, ok := readKey(t, s, "a"); ok {
		t.Errorf("Deleted key should not be found")
	}
	if value, ok := readKey(t, s, "b"); !ok || value != "2" {
		t.Errorf("Other keys must survive, got %q %v", value, ok)
	}

	// delete then put in the same transaction
	tx = begin(t, s, true)
	_ = tx.Delete(ctx, "b")
	_ = tx.Put(ctx, "b", []byte("3"))
	_ = tx.Commit(ctx)
	if value, _ := readKey(t, s, "b"); value != "3" {
		t.Errorf("Expected last write to win, got %q", value)
	}
}

func testReadOnly(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()
	commitKV(t, s, map[string]string{"a": "1"})

	tx := begin(t, s, false)
	if tx.Writable() {
		t.Errorf("Read-only transaction should not be writable")
	}
	expectCode(t, tx.Put(ctx, "a", []byte("2")), store.RetCReadOnly, "Put")
	expectCode(t, tx.Delete(ctx, "a"), store.RetCReadOnly, "Delete")

	if value, ok, err := tx.Get(ctx, "a"); err != nil || !ok || string(value) != "1" {
		t.Errorf("Reads should still work, got %q %v %v", value, ok, err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Errorf("Committing a read-only transaction should succeed: %v", err)
	}
	if value, _ := readKey(t, s, "a"); value != "1" {
		t.Errorf("Read-only transaction must not change data, got %q", value)
	}
}

func testFinished(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	for _, finish := range []string{"commit", "cancel"} {
		tx := begin(t, s, true)
		if finish == "commit" {
			_ = tx.Commit(ctx)
		} else {
			_ = tx.Cancel()
		}

		_, _, err := tx.Get(ctx, "a")
		expectCode(t, err, store.RetCFinished, finish+"/Get")
		expectCode(t, tx.Put(ctx, "a", nil), store.RetCFinished, finish+"/Put")
		expectCode(t, tx.Delete(ctx, "a"), store.RetCFinished, finish+"/Delete")
		_, err = tx.Scan(ctx, store.Range{})
		expectCode(t, err, store.RetCFinished, finish+"/Scan")
		expectCode(t, tx.Commit(ctx), store.RetCFinished, finish+"/Commit")
		expectCode(t, tx.Cancel(), store.RetCFinished, finish+"/Cancel")
	}
}

func testCancel(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()
	commitKV(t, s, map[string]string{"a": "1"})

	tx := begin(t, s, true)
	_ = tx.Put(ctx, "a", []byte("2"))
	_ = tx.Put(ctx, "b", []byte("2"))
	_ = tx.Delete(ctx, "a")
	if err := tx.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	if value, ok := readKey(t, s, "a"); !ok || value != "1" {
		t.Errorf("Cancel must discard writes, got %q %v", value, ok)
	}
	if _, ok := readKey(t, s, "b"); ok {
		t.Errorf("Cancel must discard inserts")
	}
}

func testSnapshotIsolation(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()
	commitKV(t, s, map[string]string{"a": "1"})

	reader := begin(t, s, false)
	defer reader.Cancel()

	// make sure the reader is established before the write
	if value, _, _ := reader.Get(ctx, "a"); string(value) != "1" {
		t.Fatalf("Unexpected initial value %q", value)
	}

	commitKV(t, s, map[string]string{"a": "2", "b": "2"})

	if value, _, _ := reader.Get(ctx, "a"); string(value) != "1" {
		t.Errorf("Reader should keep seeing its snapshot, got %q", value)
	}
	if _, ok, _ := reader.Get(ctx, "b"); ok {
		t.Errorf("Reader must not see keys committed after it started")
	}
	if got := scanAll(t, reader, store.Range{}); got != "a=1" {
		t.Errorf("Reader scan should see its snapshot, got %s", got)
	}
}

func testScan(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()
	commitKV(t, s, map[string]string{"a": "1", "b": "2", "c": "3", "d": "4", "e": "5"})

	tx := begin(t, s, true)
	defer tx.Cancel()

	if got := scanAll(t, tx, store.Range{}); got != "a=1,b=2,c=3,d=4,e=5" {
		t.Errorf("Full scan: got %s", got)
	}
	if got := scanAll(t, tx, store.Range{Start: "b", End: "d"}); got != "b=2,c=3" {
		t.Errorf("Range scan: got %s", got)
	}
	if got := scanAll(t, tx, store.PrefixRange("c")); got != "c=3" {
		t.Errorf("Prefix scan: got %s", got)
	}

	_ = tx.Put(ctx, "bb", []byte("22"))
	_ = tx.Put(ctx, "c", []byte("33"))
	_ = tx.Delete(ctx, "d")

	if got := scanAll(t, tx, store.Range{}); got != "a=1,b=2,bb=22,c=33,e=5" {
		t.Errorf("Scan with own writes: got %s", got)
	}
	if got := scanAll(t, tx, store.Range{Start: "bb", End: "e"}); got != "bb=22,c=33" {
		t.Errorf("Range scan with own writes: got %s", got)
	}
}

func testScanLarge(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	const n = 1000
	kv := make(map[string]string, n)
	for i := 0; i < n; i++ {
		kv[fmt.Sprintf("key-%04d", i)] = fmt.Sprintf("%d", i)
	}
	commitKV(t, s, kv)

	tx := begin(t, s, false)
	defer tx.Cancel()

	it, err := tx.Scan(ctx, store.PrefixRange("key-"))
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	defer it.Close()

	count := 0
	prev := ""
	for it.Next() {
		if it.Key() <= prev {
			t.Fatalf("Keys out of order: %s after %s", it.Key(), prev)
		}
		prev = it.Key()
		count++
	}
	if err := it.Err(); err != nil {
		t.Fatalf("Iterator failed: %v", err)
	}
	if count != n {
		t.Errorf("Expected %d keys, got %d", n, count)
	}
}

func testContextCancelled(t *testing.T, s store.IStore) {
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Begin(ctx, true); err == nil {
		t.Errorf("Begin with a cancelled context should fail")
	} else {
		expectCode(t, err, store.RetCCancelled, "Begin")
	}
}

func testConcurrentIncrements(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()
	commitKV(t, s, map[string]string{"counter": "0"})

	const (
		workers   = 4
		perWorker = 25
	)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; {
				tx, err := s.Begin(ctx, true)
				if err != nil {
					t.Errorf("Begin failed: %v", err)
					return
				}
				value, _, err := tx.Get(ctx, "counter")
				if err != nil {
					t.Errorf("Get failed: %v", err)
					_ = tx.Cancel()
					return
				}
				var n int
				fmt.Sscanf(string(value), "%d", &n)
				_ = tx.Put(ctx, "counter", []byte(fmt.Sprintf("%d", n+1)))

				err = tx.Commit(ctx)
				switch store.CodeOf(err) {
				case store.RetCSuccess:
					i++
				case store.RetCConflict:
					time.Sleep(time.Millisecond)
				default:
					t.Errorf("Commit failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if value, _ := readKey(t, s, "counter"); value != fmt.Sprintf("%d", workers*perWorker) {
		t.Errorf("Expected counter %d, got %s (lost updates)", workers*perWorker, value)
	}
}

func testInfo(t *testing.T, s store.IStore) {
	defer s.Close()
	commitKV(t, s, map[string]string{"a": "1", "b": "2"})

	info, err := s.GetDBInfo(context.Background())
	if err != nil {
		t.Fatalf("GetDBInfo failed: %v", err)
	}
	if info.DbType == "" {
		t.Errorf("Expected a database type in the info")
	}
}

func testReadWriteConflict(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()
	commitKV(t, s, map[string]string{"a": "1"})

	tx1 := begin(t, s, true)
	tx2 := begin(t, s, true)

	_, _, _ = tx1.Get(ctx, "a")
	_ = tx1.Put(ctx, "b", []byte("from tx1"))

	_ = tx2.Put(ctx, "a", []byte("from tx2"))
	if err := tx2.Commit(ctx); err != nil {
		t.Fatalf("tx2 commit failed: %v", err)
	}

	err := tx1.Commit(ctx)
	expectCode(t, err, store.RetCConflict, "tx1 commit")

	if _, ok := readKey(t, s, "b"); ok {
		t.Errorf("Writes of a conflicting transaction must not be visible")
	}

	// absent keys read by a transaction are validated as well
	tx3 := begin(t, s, true)
	_, _, _ = tx3.Get(ctx, "new")
	_ = tx3.Put(ctx, "other", []byte("x"))
	commitKV(t, s, map[string]string{"new": "1"})
	expectCode(t, tx3.Commit(ctx), store.RetCConflict, "tx3 commit")
}

func testWriteWriteConflict(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	tx1 := begin(t, s, true)
	tx2 := begin(t, s, true)

	_ = tx1.Put(ctx, "k", []byte("1"))
	_ = tx2.Put(ctx, "k", []byte("2"))

	if err := tx1.Commit(ctx); err != nil {
		t.Fatalf("tx1 commit failed: %v", err)
	}
	expectCode(t, tx2.Commit(ctx), store.RetCConflict, "tx2 commit")

	if value, _ := readKey(t, s, "k"); value != "1" {
		t.Errorf("Expected first committer to win, got %q", value)
	}

	// disjoint write sets do not conflict
	tx3 := begin(t, s, true)
	tx4 := begin(t, s, true)
	_ = tx3.Put(ctx, "x", []byte("1"))
	_ = tx4.Put(ctx, "y", []byte("1"))
	if err := tx3.Commit(ctx); err != nil {
		t.Errorf("tx3 commit failed: %v", err)
	}
	if err := tx4.Commit(ctx); err != nil {
		t.Errorf("Disjoint writers must not conflict: %v", err)
	}
}

// --------------------------------------------------------------------------
// Lock store tests
// --------------------------------------------------------------------------

// LockStoreFactory creates a new, empty lock store
type LockStoreFactory func() store.ILockStore

// RunILockStoreTests runs the lease test suite. advance moves the store's
// notion of time forward by the given number of milliseconds.
func RunILockStoreTests(t *testing.T, name string, factory LockStoreFactory, advance func(ms int64)) {
	t.Run(name, func(t *testing.T) {
		ctx := context.Background()
		newLockStore := func(t *testing.T) store.ILockStore {
			ls := factory()
			if c, ok := ls.(io.Closer); ok {
				t.Cleanup(func() { _ = c.Close() })
			}
			return ls
		}

		t.Run("SetIfUnset", func(t *testing.T) {
			ls := newLockStore(t)
			if err := ls.SetIfUnset(ctx, "lock", []byte("owner-1"), 0); err != nil {
				t.Fatalf("SetIfUnset failed: %v", err)
			}
			if err := ls.SetIfUnset(ctx, "lock", []byte("owner-2"), 0); err != nil {
				t.Fatalf("SetIfUnset on held lock should not fail: %v", err)
			}
			value, ok, err := ls.GetLock(ctx, "lock")
			if err != nil || !ok || !bytes.Equal(value, []byte("owner-1")) {
				t.Errorf("Expected owner-1 to hold the lock, got %q %v %v", value, ok, err)
			}
		})

		t.Run("DeleteIfEqual", func(t *testing.T) {
			ls := newLockStore(t)
			_ = ls.SetIfUnset(ctx, "lock", []byte("owner-1"), 0)

			ok, err := ls.DeleteIfEqual(ctx, "lock", []byte("owner-2"))
			if err != nil || ok {
				t.Errorf("Foreign owner must not release the lock, got %v %v", ok, err)
			}
			if _, held, _ := ls.GetLock(ctx, "lock"); !held {
				t.Errorf("Lock should still be held")
			}

			ok, err = ls.DeleteIfEqual(ctx, "lock", []byte("owner-1"))
			if err != nil || !ok {
				t.Errorf("Owner should release the lock, got %v %v", ok, err)
			}
			if _, held, _ := ls.GetLock(ctx, "lock"); held {
				t.Errorf("Lock should be released")
			}

			ok, err = ls.DeleteIfEqual(ctx, "missing", []byte("owner-1"))
			if err != nil || !ok {
				t.Errorf("Releasing a missing lock should report true, got %v %v", ok, err)
			}
		})

		t.Run("Expiry", func(t *testing.T) {
			ls := newLockStore(t)
			_ = ls.SetIfUnset(ctx, "lock", []byte("owner-1"), 50*time.Millisecond)

			advance(49)
			if _, held, _ := ls.GetLock(ctx, "lock"); !held {
				t.Errorf("Lock should be held before its ttl")
			}

			advance(1)
			if _, held, _ := ls.GetLock(ctx, "lock"); held {
				t.Errorf("Lock should have expired")
			}

			// an expired lease can be taken over
			_ = ls.SetIfUnset(ctx, "lock", []byte("owner-2"), 0)
			if value, _, _ := ls.GetLock(ctx, "lock"); !bytes.Equal(value, []byte("owner-2")) {
				t.Errorf("Expected owner-2 to take over the expired lock, got %q", value)
			}
		})
	})
}
