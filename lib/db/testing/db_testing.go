package testing

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dQL/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Apply&Get", func(t *testing.T) {
			testApplyGet(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("StaleVersion", func(t *testing.T) {
			testStaleVersion(t, factory())
		})

		t.Run("Snapshot", func(t *testing.T) {
			testSnapshot(t, factory())
		})

		t.Run("Ascend", func(t *testing.T) {
			testAscend(t, factory())
		})

		t.Run("ReadConflict", func(t *testing.T) {
			testReadConflict(t, factory())
		})

		t.Run("WriteConflict", func(t *testing.T) {
			testWriteConflict(t, factory())
		})

		t.Run("AtomicBatch", func(t *testing.T) {
			testAtomicBatch(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("ConcurrentApply", func(t *testing.T) {
			testConcurrentApply(t, factory())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

// set applies a single write at the next version and returns that version
func set(t testing.TB, database db.KVDB, key string, value []byte) uint64 {
	version := database.Version() + 1
	err := database.Apply(&db.Batch{
		ReadVersion: version - 1,
		Writes:      []db.Write{{Key: key, Value: value}},
	}, version)
	if err != nil {
		t.Fatalf("Apply(set %s) failed: %v", key, err)
	}
	return version
}

// remove applies a single delete at the next version and returns that version
func remove(t testing.TB, database db.KVDB, key string) uint64 {
	version := database.Version() + 1
	err := database.Apply(&db.Batch{
		ReadVersion: version - 1,
		Writes:      []db.Write{{Key: key, Delete: true}},
	}, version)
	if err != nil {
		t.Fatalf("Apply(delete %s) failed: %v", key, err)
	}
	return version
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testApplyGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	v1 := set(t, database, testKey, testValue1)

	result, version, exists := database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Apply", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}
	if version != v1 {
		t.Errorf("Expected version %d, got %d", v1, version)
	}

	v2 := set(t, database, testKey, testValue2)

	result, version, _ = database.Get(testKey)
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}
	if version != v2 || database.Version() != v2 {
		t.Errorf("Expected version %d, got entry %d and database %d", v2, version, database.Version())
	}

	if _, _, exists = database.Get("nonexistent-key"); exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	retrievedValue, _, _ := database.Get(testKey)
	retrievedValue[0] = 'X'

	originalValue, _, _ := database.Get(testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	// the database must not keep a reference to the written slice
	input := []byte("mutable")
	set(t, database, "mutable-key", input)
	input[0] = 'X'
	if stored, _, _ := database.Get("mutable-key"); !bytes.Equal(stored, []byte("mutable")) {
		t.Errorf("Apply should copy values, got %s", stored)
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	testKey := "delete-test-key"
	set(t, database, testKey, []byte("delete-test-value"))

	if _, _, exists := database.Get(testKey); !exists {
		t.Errorf("Expected key %s to exist after Apply", testKey)
	}

	remove(t, database, testKey)

	if _, _, exists := database.Get(testKey); exists {
		t.Errorf("Expected key %s to not exist after delete", testKey)
	}

	// deleting a missing key is not an error
	remove(t, database, "nonexistent-key")

	// the key can be written again
	set(t, database, testKey, []byte("again"))
	if value, _, exists := database.Get(testKey); !exists || string(value) != "again" {
		t.Errorf("Expected key %s to be writable after delete, got %s", testKey, value)
	}
}

func testStaleVersion(t *testing.T, database db.KVDB) {
	defer database.Close()

	set(t, database, "a", []byte("1"))
	current := database.Version()

	err := database.Apply(&db.Batch{ReadVersion: current, Writes: []db.Write{{Key: "a", Value: []byte("2")}}}, current)
	if !errors.Is(err, db.ErrStaleVersion) {
		t.Errorf("Expected ErrStaleVersion for equal version, got %v", err)
	}

	if value, _, _ := database.Get("a"); string(value) != "1" {
		t.Errorf("Rejected batch must not be applied, got %s", value)
	}

	// an empty batch still advances the version
	if err := database.Apply(&db.Batch{ReadVersion: current}, current+10); err != nil {
		t.Fatalf("Apply(empty) failed: %v", err)
	}
	if database.Version() != current+10 {
		t.Errorf("Expected version %d, got %d", current+10, database.Version())
	}
}

func testSnapshot(t *testing.T, database db.KVDB) {
	defer database.Close()
	requireFeature(t, database, db.FeatureSnapshot)

	set(t, database, "a", []byte("1"))
	set(t, database, "b", []byte("1"))

	snap := database.Snapshot()
	defer snap.Release()

	if snap.Version() != database.Version() {
		t.Errorf("Expected snapshot version %d, got %d", database.Version(), snap.Version())
	}

	set(t, database, "a", []byte("2"))
	remove(t, database, "b")
	set(t, database, "c", []byte("1"))

	if value, _, ok := snap.Get("a"); !ok || string(value) != "1" {
		t.Errorf("Snapshot should see old value of a, got %s (%v)", value, ok)
	}
	if _, _, ok := snap.Get("b"); !ok {
		t.Errorf("Snapshot should still see deleted key b")
	}
	if _, _, ok := snap.Get("c"); ok {
		t.Errorf("Snapshot must not see key c written after it")
	}

	if value, _, _ := database.Get("a"); string(value) != "2" {
		t.Errorf("Database should see new value of a, got %s", value)
	}

	// releasing twice is harmless
	snap.Release()
}

func testAscend(t *testing.T, database db.KVDB) {
	defer database.Close()
	requireFeature(t, database, db.FeatureScan)

	for _, k := range []string{"b", "d", "a", "c", "e"} {
		set(t, database, k, []byte("v-"+k))
	}
	remove(t, database, "c")

	snap := database.Snapshot()
	defer snap.Release()

	collect := func(start, end string, limit int) string {
		var keys []string
		snap.Ascend(start, end, func(key string, value []byte, _ uint64) bool {
			if string(value) != "v-"+key {
				t.Errorf("Unexpected value %s for key %s", value, key)
			}
			keys = append(keys, key)
			return limit <= 0 || len(keys) < limit
		})
		return fmt.Sprint(keys)
	}

	if got := collect("", "", 0); got != "[a b d e]" {
		t.Errorf("Full scan: expected [a b d e], got %s", got)
	}
	if got := collect("b", "e", 0); got != "[b d]" {
		t.Errorf("Range scan [b,e): expected [b d], got %s", got)
	}
	if got := collect("bb", "", 0); got != "[d e]" {
		t.Errorf("Scan from bb: expected [d e], got %s", got)
	}
	if got := collect("", "", 2); got != "[a b]" {
		t.Errorf("Stopped scan: expected [a b], got %s", got)
	}
	if got := collect("x", "", 0); got != "[]" {
		t.Errorf("Scan past the end: expected [], got %s", got)
	}
}

func testReadConflict(t *testing.T, database db.KVDB) {
	defer database.Close()
	requireFeature(t, database, db.FeatureConflictCheck)

	set(t, database, "a", []byte("1"))
	_, readAt, _ := database.Get("a")
	snapVersion := database.Version()

	// concurrent writer changes a
	set(t, database, "a", []byte("2"))

	err := database.Apply(&db.Batch{
		ReadVersion: snapVersion,
		Reads:       []db.Read{{Key: "a", Version: readAt}},
		Writes:      []db.Write{{Key: "b", Value: []byte("x")}},
	}, database.Version()+1)
	if !errors.Is(err, db.ErrConflict) {
		t.Errorf("Expected ErrConflict for stale read, got %v", err)
	}
	if _, _, ok := database.Get("b"); ok {
		t.Errorf("Conflicting batch must not be applied")
	}

	// reading an absent key that is created later conflicts as well
	snapVersion = database.Version()
	set(t, database, "new", []byte("1"))
	err = database.Apply(&db.Batch{
		ReadVersion: snapVersion,
		Reads:       []db.Read{{Key: "new", Version: snapVersion}},
		Writes:      []db.Write{{Key: "b", Value: []byte("x")}},
	}, database.Version()+1)
	if !errors.Is(err, db.ErrConflict) {
		t.Errorf("Expected ErrConflict for phantom point read, got %v", err)
	}

	// an unchanged read set passes
	_, readAt, _ = database.Get("a")
	err = database.Apply(&db.Batch{
		ReadVersion: database.Version(),
		Reads:       []db.Read{{Key: "a", Version: readAt}},
		Writes:      []db.Write{{Key: "b", Value: []byte("x")}},
	}, database.Version()+1)
	if err != nil {
		t.Errorf("Expected unchanged read set to pass, got %v", err)
	}
}

func testWriteConflict(t *testing.T, database db.KVDB) {
	defer database.Close()
	requireFeature(t, database, db.FeatureConflictCheck)

	set(t, database, "a", []byte("1"))
	readVersion := database.Version()

	// two blind writers start from the same version, the second one loses
	err := database.Apply(&db.Batch{ReadVersion: readVersion, Writes: []db.Write{{Key: "a", Value: []byte("first")}}}, readVersion+1)
	if err != nil {
		t.Fatalf("First writer failed: %v", err)
	}
	err = database.Apply(&db.Batch{ReadVersion: readVersion, Writes: []db.Write{{Key: "a", Value: []byte("second")}}}, readVersion+2)
	if !errors.Is(err, db.ErrConflict) {
		t.Errorf("Expected ErrConflict for second writer, got %v", err)
	}

	// deletes are writes too
	readVersion = database.Version()
	remove(t, database, "a")
	err = database.Apply(&db.Batch{ReadVersion: readVersion, Writes: []db.Write{{Key: "a", Value: []byte("resurrect")}}}, database.Version()+1)
	if !errors.Is(err, db.ErrConflict) {
		t.Errorf("Expected ErrConflict after concurrent delete, got %v", err)
	}

	// disjoint writers do not conflict
	readVersion = database.Version()
	if err := database.Apply(&db.Batch{ReadVersion: readVersion, Writes: []db.Write{{Key: "x", Value: []byte("1")}}}, readVersion+1); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if err := database.Apply(&db.Batch{ReadVersion: readVersion, Writes: []db.Write{{Key: "y", Value: []byte("1")}}}, readVersion+2); err != nil {
		t.Errorf("Disjoint writers must not conflict, got %v", err)
	}
}

func testAtomicBatch(t *testing.T, database db.KVDB) {
	defer database.Close()

	set(t, database, "guard", []byte("1"))
	readVersion := database.Version() - 1 // guard changed after this version

	err := database.Apply(&db.Batch{
		ReadVersion: readVersion,
		Writes: []db.Write{
			{Key: "a", Value: []byte("1")},
			{Key: "b", Value: []byte("1")},
			{Key: "guard", Value: []byte("2")},
		},
	}, database.Version()+1)
	if !errors.Is(err, db.ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}

	for _, k := range []string{"a", "b"} {
		if _, _, ok := database.Get(k); ok {
			t.Errorf("Key %s of a rejected batch must not be visible", k)
		}
	}

	version := database.Version() + 1
	err = database.Apply(&db.Batch{
		ReadVersion: database.Version(),
		Writes: []db.Write{
			{Key: "a", Value: []byte("1")},
			{Key: "b", Value: []byte("1")},
			{Key: "guard", Delete: true},
		},
	}, version)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	for _, k := range []string{"a", "b"} {
		if _, v, ok := database.Get(k); !ok || v != version {
			t.Errorf("Key %s should be written at version %d, got %d (%v)", k, version, v, ok)
		}
	}
	if _, _, ok := database.Get("guard"); ok {
		t.Errorf("Key guard should be deleted")
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory()
	defer database.Close()
	requireFeature(t, database, db.FeatureSave|db.FeatureLoad)

	testData := map[string][]byte{
		"key1": []byte("value1"),
		"key2": []byte("value2"),
		"key3": []byte("value3"),
		"":     []byte("empty key"),
		"key4": {},
	}
	for k, v := range testData {
		set(t, database, k, v)
	}
	set(t, database, "deleted", []byte("x"))
	remove(t, database, "deleted")
	savedVersion := database.Version()

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Failed to save database: %v", err)
	}

	newDB := factory()
	defer newDB.Close()

	if err := newDB.Load(&buf); err != nil {
		t.Fatalf("Failed to load database: %v", err)
	}

	if newDB.Version() != savedVersion {
		t.Errorf("Expected version %d after load, got %d", savedVersion, newDB.Version())
	}

	for k, expected := range testData {
		value, _, exists := newDB.Get(k)
		if !exists {
			t.Errorf("Key %q should exist after load", k)
			continue
		}
		if !bytes.Equal(value, expected) {
			t.Errorf("Value mismatch for key %q after load: expected %s, got %s", k, expected, value)
		}
	}

	if _, _, exists := newDB.Get("deleted"); exists {
		t.Errorf("Deleted key should not exist after load")
	}

	// keys absent after a load count as changed at the loaded version
	err := newDB.Apply(&db.Batch{ReadVersion: savedVersion - 1, Writes: []db.Write{{Key: "deleted", Value: []byte("y")}}}, savedVersion+1)
	if !errors.Is(err, db.ErrConflict) {
		t.Errorf("Expected ErrConflict for a read version before the load, got %v", err)
	}
}

func testConcurrentApply(t *testing.T, database db.KVDB) {
	defer database.Close()

	const (
		workers   = 8
		perWorker = 200
	)

	var (
		wg        sync.WaitGroup
		committed atomic.Int64
		next      atomic.Uint64
	)

	// every worker increments the same counter with read-validate-write
	// batches, conflicting batches are retried
	set(t, database, "counter", []byte{0, 0})
	next.Store(database.Version())

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; {
				snap := database.Snapshot()
				value, version, _ := snap.Get("counter")
				readVersion := snap.Version()
				snap.Release()

				n := int(value[0])<<8 | int(value[1])
				n++
				err := database.Apply(&db.Batch{
					ReadVersion: readVersion,
					Reads:       []db.Read{{Key: "counter", Version: version}},
					Writes:      []db.Write{{Key: "counter", Value: []byte{byte(n >> 8), byte(n)}}},
				}, next.Add(1))

				switch {
				case err == nil:
					committed.Add(1)
					i++
				case errors.Is(err, db.ErrConflict), errors.Is(err, db.ErrStaleVersion):
					// retry
				default:
					t.Errorf("Unexpected error: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	value, _, _ := database.Get("counter")
	n := int(value[0])<<8 | int(value[1])
	if n != workers*perWorker || committed.Load() != workers*perWorker {
		t.Errorf("Expected counter %d, got %d (%d commits)", workers*perWorker, n, committed.Load())
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	// empty key and empty value
	set(t, database, "", []byte("empty-key"))
	if value, _, ok := database.Get(""); !ok || string(value) != "empty-key" {
		t.Errorf("Empty key not stored correctly, got %s (%v)", value, ok)
	}
	set(t, database, "empty-value", []byte{})
	if value, _, ok := database.Get("empty-value"); !ok || len(value) != 0 {
		t.Errorf("Empty value not stored correctly, got %v (%v)", value, ok)
	}

	// binary keys
	binKey := string([]byte{0, 1, 2, 255, 0})
	set(t, database, binKey, []byte("binary"))
	if _, _, ok := database.Get(binKey); !ok {
		t.Errorf("Binary key not found")
	}

	// large value
	large := bytes.Repeat([]byte("x"), 1<<20)
	set(t, database, "large", large)
	if value, _, _ := database.Get("large"); !bytes.Equal(value, large) {
		t.Errorf("Large value not stored correctly")
	}

	// nil batch only advances the version
	version := database.Version() + 1
	if err := database.Apply(nil, version); err != nil {
		t.Errorf("Apply(nil) failed: %v", err)
	}
	if database.Version() != version {
		t.Errorf("Expected version %d, got %d", version, database.Version())
	}

	info := database.GetInfo()
	if info.Keys != 4 {
		t.Errorf("Expected 4 keys in info, got %d", info.Keys)
	}
	if info.Version != version {
		t.Errorf("Expected version %d in info, got %d", version, info.Version)
	}
}
