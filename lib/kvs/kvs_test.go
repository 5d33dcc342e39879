package kvs

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dQL/lib/clock"
	"github.com/ValentinKolb/dQL/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openBackends(t *testing.T) map[string]*Datastore {
	t.Helper()
	mem, err := New("memory")
	require.NoError(t, err)
	file, err := New("file://" + filepath.Join(t.TempDir(), "data", "dql.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = mem.Close()
		_ = file.Close()
	})
	return map[string]*Datastore{"memory": mem, "file": file}
}

func TestNewInvalidPath(t *testing.T) {
	for _, path := range []string{"", "foo://bar", "memory:/", "file://", "raft://", "raft://host:1?rtt=x"} {
		_, err := New(path)
		assert.ErrorIs(t, err, ErrInvalidPath, path)
	}
}

func TestNewMemory(t *testing.T) {
	for _, path := range []string{"memory", "memory://"} {
		ds, err := New(path)
		require.NoError(t, err)
		assert.Equal(t, BackendMemory, ds.Backend())
		assert.Equal(t, path, ds.Path())
		require.NoError(t, ds.Close())
		require.NoError(t, ds.Close(), "Close is idempotent")
	}
}

func TestTransaction(t *testing.T) {
	for name, ds := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			tx, err := ds.Transaction(ctx, true, false)
			require.NoError(t, err)
			assert.True(t, tx.Writeable())
			assert.False(t, tx.Locked())
			assert.NotEmpty(t, tx.ID())

			require.NoError(t, tx.Put(ctx, []byte("a"), []byte("1")))
			require.NoError(t, tx.Put(ctx, []byte("b"), []byte("2")))
			require.NoError(t, tx.Put(ctx, []byte("c"), []byte("3")))
			require.NoError(t, tx.Del(ctx, []byte("c")))

			value, ok, err := tx.Get(ctx, []byte("a"))
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []byte("1"), value)

			require.NoError(t, tx.Commit(ctx))
			assert.True(t, tx.Closed())

			ro, err := ds.Transaction(ctx, false, false)
			require.NoError(t, err)
			defer ro.Cancel()

			ok, err = ro.Exists(ctx, []byte("b"))
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = ro.Exists(ctx, []byte("c"))
			require.NoError(t, err)
			assert.False(t, ok)

			it, err := ro.Scan(ctx, store.Range{})
			require.NoError(t, err)
			var keys []string
			for it.Next() {
				keys = append(keys, string(it.Key()))
			}
			require.NoError(t, it.Err())
			require.NoError(t, it.Close())
			assert.Equal(t, []string{"a", "b"}, keys)
		})
	}
}

func TestReadOnlyTransaction(t *testing.T) {
	for name, ds := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			tx, err := ds.Transaction(ctx, false, false)
			require.NoError(t, err)
			defer tx.Cancel()

			assert.ErrorIs(t, tx.Put(ctx, []byte("a"), []byte("1")), ErrTxReadonly)
			assert.ErrorIs(t, tx.Del(ctx, []byte("a")), ErrTxReadonly)
			assert.Equal(t, store.RetCReadOnly, store.CodeOf(tx.Put(ctx, []byte("a"), nil)))
		})
	}
}

func TestFinishedTransaction(t *testing.T) {
	for name, ds := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			tx, err := ds.Transaction(ctx, true, false)
			require.NoError(t, err)
			require.NoError(t, tx.Put(ctx, []byte("a"), []byte("1")))
			it, err := tx.Scan(ctx, store.Range{})
			require.NoError(t, err)
			require.NoError(t, tx.Commit(ctx))

			assert.False(t, it.Next(), "iterator must fail after commit")
			assert.ErrorIs(t, it.Err(), ErrTxFinished)

			_, _, err = tx.Get(ctx, []byte("a"))
			assert.ErrorIs(t, err, ErrTxFinished)
			assert.ErrorIs(t, tx.Put(ctx, []byte("a"), nil), ErrTxFinished)
			assert.ErrorIs(t, tx.Del(ctx, []byte("a")), ErrTxFinished)
			_, err = tx.Scan(ctx, store.Range{})
			assert.ErrorIs(t, err, ErrTxFinished)
			assert.ErrorIs(t, tx.Commit(ctx), ErrTxFinished)
			assert.ErrorIs(t, tx.Cancel(), ErrTxFinished)

			tx, err = ds.Transaction(ctx, true, false)
			require.NoError(t, err)
			require.NoError(t, tx.Put(ctx, []byte("b"), []byte("2")))
			require.NoError(t, tx.Cancel())
			assert.ErrorIs(t, tx.Cancel(), ErrTxFinished)

			check, err := ds.Transaction(ctx, false, false)
			require.NoError(t, err)
			defer check.Cancel()
			ok, err := check.Exists(ctx, []byte("b"))
			require.NoError(t, err)
			assert.False(t, ok, "cancelled writes must be discarded")
		})
	}
}

func TestConflict(t *testing.T) {
	ds, err := New("memory")
	require.NoError(t, err)
	defer ds.Close()
	ctx := context.Background()

	tx1, err := ds.Transaction(ctx, true, false)
	require.NoError(t, err)
	tx2, err := ds.Transaction(ctx, true, false)
	require.NoError(t, err)

	_, _, err = tx1.Get(ctx, []byte("counter"))
	require.NoError(t, err)
	_, _, err = tx2.Get(ctx, []byte("counter"))
	require.NoError(t, err)

	require.NoError(t, tx1.Put(ctx, []byte("counter"), []byte("1")))
	require.NoError(t, tx2.Put(ctx, []byte("counter"), []byte("1")))

	conflicts := txConflicts.Get()
	require.NoError(t, tx1.Commit(ctx))
	err = tx2.Commit(ctx)
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.False(t, IsConflict(errors.New("other")))
	assert.Equal(t, conflicts+1, txConflicts.Get())
}

func TestLockSerializesTransactions(t *testing.T) {
	for name, ds := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first, err := ds.Transaction(ctx, true, true)
			require.NoError(t, err)
			assert.True(t, first.Locked())

			var (
				wg     sync.WaitGroup
				mu     sync.Mutex
				events []string
				seen   []byte
			)
			wg.Add(1)
			go func() {
				defer wg.Done()
				second, err := ds.Transaction(ctx, true, true)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				events = append(events, "second started")
				mu.Unlock()
				seen, _, _ = second.Get(ctx, []byte("owner"))
				assert.NoError(t, second.Put(ctx, []byte("owner"), []byte("second")))
				assert.NoError(t, second.Commit(ctx))
			}()

			time.Sleep(50 * time.Millisecond)
			require.NoError(t, first.Put(ctx, []byte("owner"), []byte("first")))
			mu.Lock()
			events = append(events, "first committing")
			mu.Unlock()
			require.NoError(t, first.Commit(ctx))
			assert.False(t, first.Locked(), "lock is released on commit")

			wg.Wait()
			assert.Equal(t, []string{"first committing", "second started"}, events)
			assert.Equal(t, []byte("first"), seen, "second transaction must see the first one's write")
		})
	}
}

func TestLockHonoursContext(t *testing.T) {
	ds, err := New("memory")
	require.NoError(t, err)
	defer ds.Close()

	holder, err := ds.Transaction(context.Background(), true, true)
	require.NoError(t, err)
	defer holder.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = ds.Transaction(ctx, true, true)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// unlocked transactions are not affected by the lock
	tx, err := ds.Transaction(context.Background(), false, false)
	require.NoError(t, err)
	require.NoError(t, tx.Cancel())
}

func TestTimestampFromClock(t *testing.T) {
	clk := clock.NewIncFakeClock(1000, time.Millisecond)
	ds, err := New("memory", WithClock(clk))
	require.NoError(t, err)
	defer ds.Close()
	ctx := context.Background()

	tx1, err := ds.Transaction(ctx, false, false)
	require.NoError(t, err)
	defer tx1.Cancel()
	tx2, err := ds.Transaction(ctx, false, false)
	require.NoError(t, err)
	defer tx2.Cancel()

	assert.Greater(t, uint64(tx2.Timestamp()), uint64(tx1.Timestamp()))
	assert.Greater(t, uint64(tx1.Timestamp()), uint64(1000))
}
