package maple

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dQL/lib/db"
	"github.com/ValentinKolb/dQL/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/dQL/lib/db/util"
	"github.com/google/btree"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for database behavior and structure
const (
	magicNum          = "MAPLEDB\x00"          // File format identifier
	mapleVersion      = 4                      // Database version
	defaultGCInterval = 100 * time.Millisecond // Default interval between GC runs
	btreeDegree       = 32                     // Fan-out of the ordered tree
	samplesForInfo    = 100                    // Entries sampled by GetInfo
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements an ordered, versioned in-memory database
type mapleImpl struct {
	mu         sync.RWMutex                    // Guards all fields below
	tree       *btree.BTreeG[*internal.Entry] // Latest version of every key (including tombstones)
	version    uint64                          // Version of the last applied batch
	purged     uint64                          // Highest version of a collected tombstone
	live       int                             // Number of non-deleted entries
	tombstones internal.TombstoneQueue         // Tombstones in version order

	// snapshots
	snapMu    sync.Mutex
	snapshots *util.Watermark
	nextSnap  uint64

	// garbage collection
	retention   uint64
	inlineGC    bool
	gcInterval  time.Duration
	gcIsRunning atomic.Bool
	gcStop      chan struct{}
	gcDone      chan struct{}
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	// GCInterval is the time between background GC runs (0 = use default).
	GCInterval time.Duration

	// Retention is the number of versions a tombstone is kept after it was
	// written. Larger values avoid conflicts for writers that read from old
	// versions without holding a snapshot.
	Retention uint64

	// InlineGC disables the background collector and collects tombstones
	// during Apply instead. Collection then only depends on the applied
	// versions and never on wall time or open snapshots, which keeps replicas
	// of a replicated state machine identical.
	InlineGC bool
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		GCInterval: defaultGCInterval,
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
func NewMapleDB(opts *DBOptions) db.KVDB {
	return newMaple(opts)
}

func newMaple(opts *DBOptions) *mapleImpl {
	if opts == nil {
		opts = DefaultOptions()
	}
	interval := opts.GCInterval
	if interval <= 0 {
		interval = defaultGCInterval
	}

	maple := &mapleImpl{
		tree:       btree.NewG[*internal.Entry](btreeDegree, internal.Less),
		snapshots:  util.NewWatermark(),
		retention:  opts.Retention,
		inlineGC:   opts.InlineGC,
		gcInterval: interval,
	}

	if !maple.inlineGC {
		maple.startGC()
	}

	return maple
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves the latest value for a key.
// The returned value is a copy of the stored data and therefore safe to use and modify.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(key string) ([]byte, uint64, bool) {
	maple.mu.RLock()
	e, ok := maple.tree.Get(internal.Probe(key))
	maple.mu.RUnlock()

	return copyEntry(e, ok)
}

// Version returns the version of the last applied batch
func (maple *mapleImpl) Version() uint64 {
	maple.mu.RLock()
	defer maple.mu.RUnlock()
	return maple.version
}

// Snapshot returns an immutable view of the current version. The tree is
// cloned copy-on-write, so taking a snapshot is O(1) and writes after it only
// copy the nodes they touch.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Snapshot() db.Snapshot {
	// Clone must not run concurrently with writes or other clones
	maple.mu.Lock()
	defer maple.mu.Unlock()

	maple.snapMu.Lock()
	maple.nextSnap++
	id := maple.nextSnap
	maple.snapshots.Pin(id, maple.version)
	maple.snapMu.Unlock()

	return &snapshot{
		maple:   maple,
		id:      id,
		version: maple.version,
		tree:    maple.tree.Clone(),
	}
}

// release unpins a snapshot
func (maple *mapleImpl) release(id uint64) {
	maple.snapMu.Lock()
	defer maple.snapMu.Unlock()
	maple.snapshots.Unpin(id)
}

// effectiveVersion returns the version a key was last changed at. Must be
// called with mu held.
func (maple *mapleImpl) effectiveVersion(key string) uint64 {
	if e, ok := maple.tree.Get(internal.Probe(key)); ok {
		return e.Version
	}
	return maple.purged
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Apply validates the batch and applies all of its writes at version.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
// Batches are applied one at a time.
func (maple *mapleImpl) Apply(batch *db.Batch, version uint64) error {
	maple.mu.Lock()
	defer maple.mu.Unlock()

	if version <= maple.version {
		return fmt.Errorf("%w: %d <= %d", db.ErrStaleVersion, version, maple.version)
	}
	if batch == nil {
		maple.version = version
		return nil
	}

	// validate read set
	for _, r := range batch.Reads {
		if v := maple.effectiveVersion(r.Key); v > r.Version {
			return fmt.Errorf("%w: key %q was read at version %d but changed at %d", db.ErrConflict, r.Key, r.Version, v)
		}
	}

	// validate write set
	for _, w := range batch.Writes {
		if v := maple.effectiveVersion(w.Key); v > batch.ReadVersion {
			return fmt.Errorf("%w: key %q changed at version %d after read version %d", db.ErrConflict, w.Key, v, batch.ReadVersion)
		}
	}

	// apply
	for _, w := range batch.Writes {
		entry := &internal.Entry{
			Key:     w.Key,
			Version: version,
			Deleted: w.Delete,
		}
		if !w.Delete {
			// Copy value to prevent memory corruption
			entry.Value = make([]byte, len(w.Value))
			copy(entry.Value, w.Value)
		}

		old, replaced := maple.tree.ReplaceOrInsert(entry)
		wasLive := replaced && !old.Deleted

		switch {
		case w.Delete && wasLive:
			maple.live--
		case !w.Delete && !wasLive:
			maple.live++
		}

		if w.Delete {
			maple.tombstones.Push(internal.Tombstone{Key: w.Key, Version: version})
		}
	}

	maple.version = version

	if maple.inlineGC && version > maple.retention {
		maple.collect(version - maple.retention)
	}

	return nil
}

// --------------------------------------------------------------------------
// Garbage Collection
// --------------------------------------------------------------------------

// collect removes tombstones with a version at or below horizon. Must be
// called with mu held.
//
// A tombstone is only removed if it is still the latest entry for its key. A
// key that was written again after the delete keeps its newer entry.
func (maple *mapleImpl) collect(horizon uint64) (removed int) {
	for {
		ts, ok := maple.tombstones.Peek()
		if !ok || ts.Version > horizon {
			return removed
		}
		maple.tombstones.Pop()

		if e, ok := maple.tree.Get(internal.Probe(ts.Key)); ok && e.Deleted && e.Version == ts.Version {
			maple.tree.Delete(e)
			removed++
		}

		if ts.Version > maple.purged {
			maple.purged = ts.Version
		}
	}
}

// gcHorizon returns the highest version whose tombstones are no longer
// needed. Must be called with mu held.
func (maple *mapleImpl) gcHorizon() uint64 {
	horizon := maple.version
	if maple.retention >= horizon {
		return 0
	}
	horizon -= maple.retention

	maple.snapMu.Lock()
	low, pinned := maple.snapshots.Low()
	maple.snapMu.Unlock()

	if pinned && low < horizon {
		horizon = low
	}
	return horizon
}

// startGC starts the garbage collector
// if the GC is already running, this function does nothing
func (maple *mapleImpl) startGC() {
	if maple.gcIsRunning.CompareAndSwap(false, true) {
		maple.gcStop = make(chan struct{})
		maple.gcDone = make(chan struct{})
		go maple.garbageCollector(maple.gcStop, maple.gcDone)
	}
}

// stopGC stops the garbage collector and waits until it has exited.
// if the GC is not running, this function does nothing.
func (maple *mapleImpl) stopGC() {
	if maple.gcIsRunning.CompareAndSwap(true, false) {
		close(maple.gcStop)
		<-maple.gcDone
	}
}

// garbageCollector is the main garbage collection loop
// WARNING: this method should never be called directly! to enable GC, use startGC() and stopGC()
func (maple *mapleImpl) garbageCollector(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(maple.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		// skip the write lock if there is nothing to collect
		maple.mu.RLock()
		pending := maple.tombstones.Len()
		maple.mu.RUnlock()
		if pending == 0 {
			continue
		}

		maple.mu.Lock()
		maple.collect(maple.gcHorizon())
		maple.mu.Unlock()
	}
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save persists the live entries of the database to the writer.
// Writes are allowed during Save because the entries are read from a snapshot.
func (maple *mapleImpl) Save(w io.Writer) error {
	snap := maple.Snapshot()
	defer snap.Release()
	return snap.Save(w)
}

// Save writes the live entries visible in the snapshot.
func (s *snapshot) Save(w io.Writer) error {
	// Use a buffered writer for better performance
	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	// Write file header
	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}

	// Write maple version
	if err := binary.Write(bw, binary.LittleEndian, uint8(mapleVersion)); err != nil {
		return err
	}

	// Write database version
	if err := binary.Write(bw, binary.LittleEndian, s.version); err != nil {
		return err
	}

	// Write live entries count
	var count uint64
	s.tree.Ascend(func(e *internal.Entry) bool {
		if !e.Deleted {
			count++
		}
		return true
	})
	if err := binary.Write(bw, binary.LittleEndian, count); err != nil {
		return err
	}

	// Write entries
	var err error
	s.tree.Ascend(func(e *internal.Entry) bool {
		if e.Deleted {
			return true
		}
		err = writeEntry(bw, e)
		return err == nil
	})
	if err != nil {
		return err
	}

	// Flush buffer to ensure all data is written
	return bw.Flush()
}

func writeEntry(w io.Writer, e *internal.Entry) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(e.Key))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, e.Key); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, e.Version); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(e.Value))); err != nil {
		return err
	}
	_, err := w.Write(e.Value)
	return err
}

// Load restores a database from the reader. The current content is replaced.
// Tombstones are not part of the saved state, so every key that is absent
// after the load is treated as changed at the loaded version.
//
// Thread-safety: This function must not be called concurrently with Apply.
func (maple *mapleImpl) Load(r io.Reader) error {

	// stop gc during load
	if !maple.inlineGC {
		maple.stopGC()
		defer maple.startGC()
	}

	// Use a buffered reader for better performance
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	// Read and verify magic number
	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}

	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	// Read and verify version
	var formatVersion uint8
	if err := binary.Read(br, binary.LittleEndian, &formatVersion); err != nil {
		return err
	}

	if int(formatVersion) != mapleVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", formatVersion, mapleVersion)
	}

	var version uint64
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}

	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	tree := btree.NewG[*internal.Entry](btreeDegree, internal.Less)
	for i := uint64(0); i < count; i++ {
		e, err := readEntry(br)
		if err != nil {
			return err
		}
		if e.Version > version {
			return fmt.Errorf("invalid file: entry %q has version %d above database version %d", e.Key, e.Version, version)
		}
		tree.ReplaceOrInsert(e)
	}

	maple.mu.Lock()
	defer maple.mu.Unlock()

	maple.tree = tree
	maple.version = version
	maple.purged = version
	maple.live = tree.Len()
	maple.tombstones.Reset()

	return nil
}

func readEntry(r io.Reader) (*internal.Entry, error) {
	var keyLen uint32
	if err := binary.Read(r, binary.LittleEndian, &keyLen); err != nil {
		return nil, err
	}
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}

	var version uint64
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, err
	}

	var valueLen uint32
	if err := binary.Read(r, binary.LittleEndian, &valueLen); err != nil {
		return nil, err
	}
	value := make([]byte, valueLen)
	if _, err := io.ReadFull(r, value); err != nil {
		return nil, err
	}

	return &internal.Entry{Key: string(key), Value: value, Version: version}, nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	maple.mu.RLock()
	version := maple.version
	purged := maple.purged
	live := maple.live
	total := maple.tree.Len()
	pending := maple.tombstones.Len()

	// create a size histogram for the info
	histogram := util.NewSizeHistogram()
	samples := 0
	maple.tree.Ascend(func(e *internal.Entry) bool {
		if !e.Deleted {
			histogram.AddSample(len(e.Key) + len(e.Value))
			samples++
		}
		return samples < samplesForInfo
	})
	maple.mu.RUnlock()

	maple.snapMu.Lock()
	openSnapshots := maple.snapshots.Len()
	maple.snapMu.Unlock()

	// calculate size
	entryOverhead := 32 // version, deleted flag and slice headers
	medianSize := histogram.MedianEstimate() + entryOverhead
	avgSize := histogram.AverageSize() + entryOverhead

	// weighted estimate (60% median, 40% average)
	sizeBytes := (medianSize*60 + avgSize*40) / 100 * live

	// Metadata for this specific database implementation
	meta := &struct {
		PurgedVersion     uint64 `json:"purged_version"`
		Tombstones        int    `json:"tombstones"`
		PendingTombstones int    `json:"pending_tombstones"`
		OpenSnapshots     int    `json:"open_snapshots"`
		Info              string `json:"info"`
	}{
		PurgedVersion:     purged,
		Tombstones:        total - live,
		PendingTombstones: pending,
		OpenSnapshots:     openSnapshots,
		Info:              "SizeBytes is an estimate based on sampled entries.",
	}

	return db.DatabaseInfo{
		SizeBytes: sizeBytes,
		Keys:      live,
		Version:   version,
		DbType:    db.ImplMaple,
		SupportedFeatures: []db.Feature{
			db.FeatureSnapshot, db.FeatureScan, db.FeatureConflictCheck,
			db.FeatureSave, db.FeatureLoad, db.FeatureGarbageCollect,
		},
		Metadata: meta,
	}
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureSnapshot |
		db.FeatureScan |
		db.FeatureConflictCheck |
		db.FeatureSave |
		db.FeatureLoad |
		db.FeatureGarbageCollect
	return supportedFeatures&feature == feature
}

// Close stops the garbage collector
func (maple *mapleImpl) Close() error {
	maple.stopGC()
	return nil
}

// --------------------------------------------------------------------------
// Snapshot
// --------------------------------------------------------------------------

type snapshot struct {
	maple    *mapleImpl
	id       uint64
	version  uint64
	tree     *btree.BTreeG[*internal.Entry]
	released atomic.Bool
}

func (s *snapshot) Version() uint64 { return s.version }

func (s *snapshot) Get(key string) ([]byte, uint64, bool) {
	e, ok := s.tree.Get(internal.Probe(key))
	return copyEntry(e, ok)
}

func (s *snapshot) Ascend(start, end string, fn func(key string, value []byte, version uint64) bool) {
	s.tree.AscendGreaterOrEqual(internal.Probe(start), func(e *internal.Entry) bool {
		if end != "" && e.Key >= end {
			return false
		}
		if e.Deleted {
			return true
		}
		return fn(e.Key, e.Value, e.Version)
	})
}

func (s *snapshot) Release() {
	if s.released.CompareAndSwap(false, true) {
		s.maple.release(s.id)
	}
}

// copyEntry converts a tree lookup into the (value, version, ok) triple of
// the read API
func copyEntry(e *internal.Entry, ok bool) ([]byte, uint64, bool) {
	if !ok || e.Deleted {
		return nil, 0, false
	}
	data := make([]byte, len(e.Value))
	copy(data, e.Value)
	return data, e.Version, true
}
