package lstore

import (
	"context"
	"testing"

	"github.com/ValentinKolb/dQL/lib/clock"
	"github.com/ValentinKolb/dQL/lib/db"
	"github.com/ValentinKolb/dQL/lib/db/engines/maple"
	"github.com/ValentinKolb/dQL/lib/store"
	storetesting "github.com/ValentinKolb/dQL/lib/store/testing"
)

func TestLocalStore(t *testing.T) {
	storetesting.RunIStoreTests(t, "LocalStore", func() store.IStore {
		return NewLocalStore(func() db.KVDB {
			return maple.NewMapleDB(nil)
		}, clock.NewSystemClock())
	}, storetesting.Capabilities{OptimisticConflicts: true})
}

func TestLocalStoreFakeClock(t *testing.T) {
	// a fixed clock exercises the version fallback
	storetesting.RunIStoreTests(t, "LocalStore(fake clock)", func() store.IStore {
		return NewLocalStore(func() db.KVDB {
			return maple.NewMapleDB(nil)
		}, clock.NewFakeClock(1000))
	}, storetesting.Capabilities{OptimisticConflicts: true})
}

func TestLocalStoreLeases(t *testing.T) {
	clk := clock.NewFakeClock(1000)
	storetesting.RunILockStoreTests(t, "LocalStore", func() store.ILockStore {
		return NewLocalStore(func() db.KVDB {
			return maple.NewMapleDB(nil)
		}, clk)
	}, func(d int64) {
		clk.Set(clk.Now() + clock.Timestamp(d))
	})
}

func TestCommitVersionsFollowClock(t *testing.T) {
	clk := clock.NewFakeClock(5000)
	s := NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }, clk)
	defer s.Close()

	ctx := context.Background()
	tx, err := s.Begin(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	_ = tx.Put(ctx, "a", []byte("1"))
	if err := tx.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	if _, v, _ := s.db.Get("a"); v != 5000 {
		t.Errorf("expected version 5000 from the clock, got %d", v)
	}

	tx, _ = s.Begin(ctx, true)
	_ = tx.Put(ctx, "b", []byte("1"))
	_ = tx.Commit(ctx)
	if _, v, _ := s.db.Get("b"); v != 5001 {
		t.Errorf("expected fallback version 5001, got %d", v)
	}
}
