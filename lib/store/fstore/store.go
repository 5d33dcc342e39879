package fstore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ValentinKolb/dQL/lib/db"
	"github.com/ValentinKolb/dQL/lib/store"
	"github.com/ValentinKolb/dQL/lib/store/wbuf"
	bolt "go.etcd.io/bbolt"
)

const (
	scanChunk = 256
	// defaultMmapSize avoids remapping the file while read transactions are open
	defaultMmapSize = 32 << 20
)

var dataBucket = []byte("data")

// Options configures the file store
type Options struct {
	// Timeout is the time to wait for the file lock held by another process
	Timeout time.Duration
	// NoSync skips fsync after each commit. Only useful for tests.
	NoSync bool
	// InitialMmapSize is the initial size of the memory map in bytes
	InitialMmapSize int
}

// DefaultOptions returns the default file store options
func DefaultOptions() *Options {
	return &Options{
		Timeout:         time.Second,
		InitialMmapSize: defaultMmapSize,
	}
}

// Store is a single-node transaction store persisted in a bbolt file.
type Store struct {
	db   *bolt.DB
	path string
}

// Open opens (or creates) the store file at path. Missing parent directories
// are created.
func Open(path string, opts *Options) (*Store, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if path == "" {
		return nil, fmt.Errorf("fstore: empty path")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("fstore: mkdir %s: %w", filepath.Dir(path), err)
	}

	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout:         opts.Timeout,
		NoSync:          opts.NoSync,
		InitialMmapSize: opts.InitialMmapSize,
	})
	if err != nil {
		return nil, fmt.Errorf("fstore: open %s: %w", path, err)
	}

	err = bdb.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(dataBucket)
		return err
	})
	if err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("fstore: creating bucket: %w", err)
	}

	return &Store{db: bdb, path: path}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *Store) Begin(ctx context.Context, write bool) (store.ITx, error) {
	if err := store.CheckContext(ctx); err != nil {
		return nil, err
	}
	btx, err := s.db.Begin(write)
	if err != nil {
		return nil, store.Errorf(store.RetCInternalError, "begin: %v", err)
	}
	return &txImpl{btx: btx, bucket: btx.Bucket(dataBucket), write: write}, nil
}

func (s *Store) GetDBInfo(context.Context) (db.DatabaseInfo, error) {
	var info db.DatabaseInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		stats := tx.Bucket(dataBucket).Stats()
		info = db.DatabaseInfo{
			SizeBytes: int(tx.Size()),
			Keys:      stats.KeyN,
			Version:   uint64(tx.ID()),
			DbType:    db.ImplBolt,
			Metadata: &struct {
				Path       string `json:"path"`
				Depth      int    `json:"depth"`
				LeafPages  int    `json:"leaf_pages"`
				BranchPage int    `json:"branch_pages"`
			}{
				Path:       s.path,
				Depth:      stats.Depth,
				LeafPages:  stats.LeafPageN,
				BranchPage: stats.BranchPageN,
			},
		}
		return nil
	})
	if err != nil {
		return db.DatabaseInfo{}, store.Errorf(store.RetCInternalError, "info: %v", err)
	}
	return info, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// --------------------------------------------------------------------------
// Transaction
// --------------------------------------------------------------------------

type txImpl struct {
	btx    *bolt.Tx
	bucket *bolt.Bucket
	write  bool
	done   bool
}

func (tx *txImpl) check(ctx context.Context, write bool) error {
	if tx.done {
		return store.ErrFinished
	}
	if write && !tx.write {
		return store.ErrReadOnly
	}
	return store.CheckContext(ctx)
}

func (tx *txImpl) Writable() bool { return tx.write }

func (tx *txImpl) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := tx.check(ctx, false); err != nil {
		return nil, false, err
	}
	v := tx.bucket.Get([]byte(key))
	if v == nil {
		return nil, false, nil
	}
	// bbolt values are only valid for the life of the transaction
	return bytes.Clone(v), true, nil
}

func (tx *txImpl) Put(ctx context.Context, key string, value []byte) error {
	if err := tx.check(ctx, true); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}
	if err := tx.bucket.Put([]byte(key), bytes.Clone(value)); err != nil {
		return store.Errorf(store.RetCInvalidOperation, "put %q: %v", key, err)
	}
	return nil
}

func (tx *txImpl) Delete(ctx context.Context, key string) error {
	if err := tx.check(ctx, true); err != nil {
		return err
	}
	if err := tx.bucket.Delete([]byte(key)); err != nil {
		return store.Errorf(store.RetCInvalidOperation, "delete %q: %v", key, err)
	}
	return nil
}

// Scan reads the range in chunks with a fresh cursor per chunk, so writes of
// the transaction between two calls to Next never invalidate a cursor.
func (tx *txImpl) Scan(ctx context.Context, r store.Range) (store.Iterator, error) {
	if err := tx.check(ctx, false); err != nil {
		return nil, err
	}

	fetch := func(start, end string, limit int) ([]wbuf.KV, bool, error) {
		if tx.done {
			return nil, false, store.ErrFinished
		}
		var out []wbuf.KV
		c := tx.bucket.Cursor()
		for k, v := c.Seek([]byte(start)); k != nil; k, v = c.Next() {
			if end != "" && string(k) >= end {
				return out, false, nil
			}
			if len(out) == limit {
				return out, true, nil
			}
			out = append(out, wbuf.KV{Key: string(k), Value: bytes.Clone(v)})
		}
		return out, false, nil
	}
	return wbuf.Chunked(fetch, r, scanChunk), nil
}

func (tx *txImpl) Commit(ctx context.Context) error {
	if tx.done {
		return store.ErrFinished
	}
	tx.done = true

	if !tx.write {
		return tx.rollback()
	}
	if err := store.CheckContext(ctx); err != nil {
		_ = tx.btx.Rollback()
		return err
	}
	if err := tx.btx.Commit(); err != nil {
		return store.Errorf(store.RetCInternalError, "commit: %v", err)
	}
	return nil
}

func (tx *txImpl) Cancel() error {
	if tx.done {
		return store.ErrFinished
	}
	tx.done = true
	return tx.rollback()
}

func (tx *txImpl) rollback() error {
	if err := tx.btx.Rollback(); err != nil {
		return store.Errorf(store.RetCInternalError, "rollback: %v", err)
	}
	return nil
}
