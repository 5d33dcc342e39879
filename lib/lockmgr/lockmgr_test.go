package lockmgr

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dQL/lib/clock"
	"github.com/ValentinKolb/dQL/lib/db"
	"github.com/ValentinKolb/dQL/lib/db/engines/maple"
	"github.com/ValentinKolb/dQL/lib/store/lstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoreManager(clk clock.Clock, ttl time.Duration) ILockManager {
	s := lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }, clk)
	return NewLockManager(s, ttl)
}

func managers() map[string]func() ILockManager {
	return map[string]func() ILockManager{
		"Local": NewLocalLockManager,
		"Store": func() ILockManager { return newStoreManager(clock.NewSystemClock(), 0) },
	}
}

func TestLockManagers(t *testing.T) {
	for name, factory := range managers() {
		t.Run(name, func(t *testing.T) {
			t.Run("AcquireRelease", func(t *testing.T) {
				lm := factory()
				ctx := context.Background()

				owner, err := lm.AcquireLock(ctx, "txn")
				require.NoError(t, err)
				require.NotEmpty(t, owner)

				ok, other, err := lm.TryAcquireLock(ctx, "txn")
				require.NoError(t, err)
				assert.False(t, ok)
				assert.Nil(t, other)

				ok, err = lm.ReleaseLock(ctx, "txn", []byte("someone else"))
				require.NoError(t, err)
				assert.False(t, ok, "foreign owner must not release")

				ok, err = lm.ReleaseLock(ctx, "txn", owner)
				require.NoError(t, err)
				assert.True(t, ok)

				ok, owner, err = lm.TryAcquireLock(ctx, "txn")
				require.NoError(t, err)
				assert.True(t, ok)
				assert.NotEmpty(t, owner)
			})

			t.Run("ReleaseUnknown", func(t *testing.T) {
				ok, err := factory().ReleaseLock(context.Background(), "missing", []byte("x"))
				require.NoError(t, err)
				assert.True(t, ok)
			})

			t.Run("IndependentKeys", func(t *testing.T) {
				lm := factory()
				ctx := context.Background()
				_, err := lm.AcquireLock(ctx, "a")
				require.NoError(t, err)
				ok, _, err := lm.TryAcquireLock(ctx, "b")
				require.NoError(t, err)
				assert.True(t, ok)
			})

			t.Run("ContextCancelled", func(t *testing.T) {
				lm := factory()
				_, err := lm.AcquireLock(context.Background(), "txn")
				require.NoError(t, err)

				ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
				defer cancel()
				_, err = lm.AcquireLock(ctx, "txn")
				assert.ErrorIs(t, err, context.DeadlineExceeded)
			})

			t.Run("MutualExclusion", func(t *testing.T) {
				lm := factory()
				ctx := context.Background()

				var (
					inside     atomic.Int32
					violations atomic.Int32
					wg         sync.WaitGroup
				)
				for w := 0; w < 8; w++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						for i := 0; i < 10; i++ {
							owner, err := lm.AcquireLock(ctx, "txn")
							if !assert.NoError(t, err) {
								return
							}
							if inside.Add(1) > 1 {
								violations.Add(1)
							}
							time.Sleep(100 * time.Microsecond)
							inside.Add(-1)
							ok, err := lm.ReleaseLock(ctx, "txn", owner)
							assert.NoError(t, err)
							assert.True(t, ok)
						}
					}()
				}
				wg.Wait()
				assert.Zero(t, violations.Load(), "two holders at the same time")
			})
		})
	}
}

func TestStoreLockExpires(t *testing.T) {
	clk := clock.NewFakeClock(1000)
	lm := newStoreManager(clk, 50*time.Millisecond)
	ctx := context.Background()

	_, err := lm.AcquireLock(ctx, "txn")
	require.NoError(t, err)

	ok, _, err := lm.TryAcquireLock(ctx, "txn")
	require.NoError(t, err)
	assert.False(t, ok)

	clk.Set(1050)
	ok, _, err = lm.TryAcquireLock(ctx, "txn")
	require.NoError(t, err)
	assert.True(t, ok, "expired lock should be taken over")
}

func TestLocalLockWakesWaiter(t *testing.T) {
	lm := NewLocalLockManager()
	ctx := context.Background()

	owner, err := lm.AcquireLock(ctx, "txn")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		if _, err := lm.AcquireLock(ctx, "txn"); err == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("waiter acquired a held lock")
	case <-time.After(20 * time.Millisecond):
	}

	_, err = lm.ReleaseLock(ctx, "txn", owner)
	require.NoError(t, err)

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken")
	}
}
