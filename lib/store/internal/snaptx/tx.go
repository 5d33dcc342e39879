package snaptx

import (
	"context"

	"github.com/ValentinKolb/dQL/lib/db"
	"github.com/ValentinKolb/dQL/lib/store"
	"github.com/ValentinKolb/dQL/lib/store/wbuf"
)

// scanChunk is the number of entries copied out of a snapshot at once
const scanChunk = 256

// CommitFunc applies the batch of a write transaction. It is only called for
// batches with at least one write.
type CommitFunc func(ctx context.Context, batch *db.Batch) error

// Tx is a store.ITx reading from a db.Snapshot. Writes are buffered and
// handed to the CommitFunc together with the read set at commit.
type Tx struct {
	snap   db.Snapshot
	write  bool
	buf    *wbuf.Buffer
	reads  map[string]uint64 // key -> version observed
	commit CommitFunc
	done   bool
}

// New creates a transaction over snap. The transaction owns the snapshot and
// releases it when it terminates.
func New(snap db.Snapshot, write bool, commit CommitFunc) *Tx {
	tx := &Tx{
		snap:   snap,
		write:  write,
		commit: commit,
	}
	if write {
		tx.buf = wbuf.New()
		tx.reads = make(map[string]uint64)
	}
	return tx
}

func (tx *Tx) check(ctx context.Context, write bool) error {
	if tx.done {
		return store.ErrFinished
	}
	if write && !tx.write {
		return store.ErrReadOnly
	}
	return store.CheckContext(ctx)
}

func (tx *Tx) Writable() bool { return tx.write }

func (tx *Tx) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := tx.check(ctx, false); err != nil {
		return nil, false, err
	}

	if tx.write {
		if value, deleted, ok := tx.buf.Get(key); ok {
			return value, !deleted, nil
		}
	}

	value, version, ok := tx.snap.Get(key)
	if tx.write {
		if !ok {
			version = tx.snap.Version()
		}
		tx.reads[key] = version
	}
	return value, ok, nil
}

func (tx *Tx) Put(ctx context.Context, key string, value []byte) error {
	if err := tx.check(ctx, true); err != nil {
		return err
	}
	tx.buf.Put(key, value)
	return nil
}

func (tx *Tx) Delete(ctx context.Context, key string) error {
	if err := tx.check(ctx, true); err != nil {
		return err
	}
	tx.buf.Delete(key)
	return nil
}

func (tx *Tx) Scan(ctx context.Context, r store.Range) (store.Iterator, error) {
	if err := tx.check(ctx, false); err != nil {
		return nil, err
	}

	snap := tx.snap
	fetch := func(start, end string, limit int) ([]wbuf.KV, bool, error) {
		if tx.done {
			return nil, false, store.ErrFinished
		}
		var (
			out  []wbuf.KV
			more bool
		)
		snap.Ascend(start, end, func(key string, value []byte, _ uint64) bool {
			if len(out) == limit {
				more = true
				return false
			}
			out = append(out, wbuf.KV{Key: key, Value: append([]byte(nil), value...)})
			return true
		})
		return out, more, nil
	}

	it := wbuf.Chunked(fetch, r, scanChunk)
	if tx.write {
		it = wbuf.Merge(it, tx.buf.Range(r))
	}
	return it, nil
}

// Batch returns the batch the transaction would commit.
func (tx *Tx) Batch() *db.Batch {
	batch := &db.Batch{ReadVersion: tx.snap.Version()}
	if !tx.write {
		return batch
	}
	batch.Writes = tx.buf.Writes()
	batch.Reads = make([]db.Read, 0, len(tx.reads))
	for key, version := range tx.reads {
		batch.Reads = append(batch.Reads, db.Read{Key: key, Version: version})
	}
	return batch
}

func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return store.ErrFinished
	}
	tx.done = true
	defer tx.snap.Release()

	if !tx.write || tx.buf.Len() == 0 {
		return nil
	}
	if err := store.CheckContext(ctx); err != nil {
		return err
	}
	return tx.commit(ctx, tx.Batch())
}

func (tx *Tx) Cancel() error {
	if tx.done {
		return store.ErrFinished
	}
	tx.done = true
	tx.snap.Release()
	if tx.buf != nil {
		tx.buf.Reset()
	}
	return nil
}
