package testing

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dQL/lib/db"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Apply", func(b *testing.B) {
		benchmarkApply(b, factory())
	})

	b.Run("ApplyExisting", func(b *testing.B) {
		benchmarkApplyExisting(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("Snapshot", func(b *testing.B) {
		benchmarkSnapshot(b, factory())
	})

	b.Run("Ascend", func(b *testing.B) {
		benchmarkAscend(b, factory())
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func fill(b *testing.B, database db.KVDB, n int) {
	batch := &db.Batch{}
	for i := 0; i < n; i++ {
		batch.Writes = append(batch.Writes, db.Write{
			Key:   fmt.Sprintf("key-%08d", i),
			Value: []byte(fmt.Sprintf("value-%d", i)),
		})
	}
	if err := database.Apply(batch, database.Version()+1); err != nil {
		b.Fatal(err)
	}
}

// Benchmark for blind single-key batches on new keys
func benchmarkApply(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	var version atomic.Uint64
	value := []byte("value")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			v := version.Add(1)
			_ = database.Apply(&db.Batch{
				ReadVersion: v - 1,
				Writes:      []db.Write{{Key: fmt.Sprintf("key-%d", v), Value: value}},
			}, v)
		}
	})
}

// Benchmark for updates of a small set of existing keys
func benchmarkApplyExisting(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})
	fill(b, database, 1000)

	value := []byte("updated")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v := database.Version() + 1
		_ = database.Apply(&db.Batch{
			ReadVersion: v - 1,
			Writes:      []db.Write{{Key: fmt.Sprintf("key-%08d", i%1000), Value: value}},
		}, v)
	}
}

// Benchmark for point reads
func benchmarkGet(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})
	fill(b, database, 10000)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			database.Get(fmt.Sprintf("key-%08d", i%10000))
			i++
		}
	})
}

// Benchmark for taking and releasing snapshots
func benchmarkSnapshot(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})
	requireFeature(b, database, db.FeatureSnapshot)
	fill(b, database, 10000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.Snapshot().Release()
	}
}

// Benchmark for scanning 100 keys
func benchmarkAscend(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})
	requireFeature(b, database, db.FeatureScan)
	fill(b, database, 10000)

	snap := database.Snapshot()
	defer snap.Release()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		n := 0
		start := fmt.Sprintf("key-%08d", (i*100)%9900)
		snap.Ascend(start, "", func(string, []byte, uint64) bool {
			n++
			return n < 100
		})
	}
}

// Benchmark for Save and Load operations
func benchmarkSaveLoad(b *testing.B, factory DBFactory) {
	database := factory()
	b.Cleanup(func() {
		database.Close()
	})
	requireFeature(b, database, db.FeatureSave|db.FeatureLoad)
	fill(b, database, 10000)

	var buf bytes.Buffer
	b.Run("Save", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf.Reset()
			if err := database.Save(&buf); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Load", func(b *testing.B) {
		target := factory()
		defer target.Close()
		data := buf.Bytes()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if err := target.Load(bytes.NewReader(data)); err != nil {
				b.Fatal(err)
			}
		}
	})
}
