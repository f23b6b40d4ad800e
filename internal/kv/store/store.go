// Package store implements the storage layer (spec component C5) that
// binds the tree (C3) and the append log (C4) into a single durable
// key/value engine: every write goes to the log first, the tree only
// ever holds an offset into it, and recovery on Open replays whatever
// the last snapshot didn't cover. The shape -- a WAL-like append
// structure paired with an in-memory index, discovered and recovered on
// open -- mirrors internal/storage/lsm's Engine/Collection pairing, one
// level down (a single index+log pair instead of a directory of named
// collections).
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/alexvdb/alexvdb/internal/kv/log"
	"github.com/alexvdb/alexvdb/internal/kv/tree"
)

const logFileName = "data.log"
const snapshotFileName = "tree.alx1"
const manifestFileName = "MANIFEST"

// ErrClosed is returned by every Store method once Close has run.
var ErrClosed = errors.New("store: closed")

// ErrKeyNotFound is a sentinel available to callers that want to
// distinguish "not found" from other errors without relying on a
// (nil, false, nil) return; Get itself never returns this error, it
// returns ok=false instead, matching the package's "not found is not
// an error" convention.
var ErrKeyNotFound = errors.New("store: key not found")

// Config controls the tree's shape. See internal/kv/tree for defaults.
type Config struct {
	LeafCapacity              int
	GapRatio                  float64
	Fanout                    int
	CompactTombstoneThreshold float64
}

// DefaultCompactTombstoneThreshold is the tombstone ratio Stats-driven
// callers should compare against when deciding whether to call
// Compact.
const DefaultCompactTombstoneThreshold = 0.3

func (c Config) treeOptions() []tree.Option {
	var opts []tree.Option
	if c.LeafCapacity > 0 {
		opts = append(opts, tree.WithLeafCapacity(c.LeafCapacity))
	}
	if c.GapRatio > 0 {
		opts = append(opts, tree.WithGapRatio(c.GapRatio))
	}
	if c.Fanout > 0 {
		opts = append(opts, tree.WithFanout(c.Fanout))
	}
	return opts
}

// Store is a single embedded key/value engine rooted at one directory.
// Safe for concurrent Get/Range from many goroutines; Insert/Delete/
// Compact/Flush/Close must not overlap each other or any Get/Range (the
// single-writer discipline spec.md's concurrency model requires).
type Store struct {
	mu     sync.RWMutex
	dir    string
	cfg    Config
	log    *log.Log
	tree   *tree.Tree
	closed bool
}

// Open opens (creating if necessary) a store rooted at dir: the log
// file, an optional tree snapshot, and a manifest recording how much of
// the log that snapshot covers. If no snapshot exists, the entire log
// is replayed to rebuild the tree from scratch.
func Open(dir string, cfg Config) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
	}

	l, err := log.Open(filepath.Join(dir, logFileName))
	if err != nil && !errors.Is(err, log.ErrCorrupted) {
		return nil, fmt.Errorf("store: open log: %w", err)
	}
	// A corrupted tail has already been truncated by log.Open; the
	// store proceeds with whatever prefix survived.

	snapshotPath := filepath.Join(dir, snapshotFileName)
	var tr *tree.Tree
	coveredTail := uint64(0)

	if _, statErr := os.Stat(snapshotPath); statErr == nil {
		tr, err = tree.Load(snapshotPath)
		if err != nil {
			return nil, fmt.Errorf("store: load snapshot: %w", err)
		}
		coveredTail = readManifest(filepath.Join(dir, manifestFileName))
	} else {
		tr = tree.New(cfg.treeOptions()...)
	}

	replayErr := l.ReplayFrom(coveredTail, func(offset uint64, rec log.Record) error {
		if rec.Tombstone {
			tr.Delete(rec.Key)
		} else {
			tr.Insert(rec.Key, offset)
		}
		return nil
	})
	if replayErr != nil {
		return nil, fmt.Errorf("store: replay log: %w", replayErr)
	}

	return &Store{dir: dir, cfg: cfg, log: l, tree: tr}, nil
}

// Insert writes (key, value) durably and makes it immediately visible
// to Get. A nil value is rejected -- use Delete to remove a key.
func (s *Store) Insert(key int64, value []byte) error {
	if value == nil {
		return fmt.Errorf("store: Insert requires a non-nil value for key %d, use Delete to remove", key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	offset, err := s.log.Append(key, value)
	if err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	if err := s.log.Sync(); err != nil {
		return fmt.Errorf("store: sync: %w", err)
	}
	s.tree.Insert(key, offset)
	return nil
}

// Pair is a single key/value input to InsertBatch.
type Pair struct {
	Key   int64
	Value []byte
}

// InsertBatch writes every pair with a single fsync at the end instead
// of one per key, for bulk-load throughput. When the same key appears
// more than once in a batch with byte-identical values (a common
// pattern in retried or overlapping bulk loads), only the first
// occurrence's record is appended; later occurrences reuse that
// record's offset instead of writing a redundant duplicate -- since
// the final tree entry for that key would resolve to the same record
// either way, recovery is unaffected: that offset's log record already
// carries exactly the key and value being deduplicated against.
func (s *Store) InsertBatch(pairs []Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	type seenEntry struct {
		hash   uint64
		offset uint64
	}
	seen := make(map[int64]seenEntry, len(pairs)) // key -> last appended (content hash, offset)
	offsets := make([]uint64, len(pairs))
	for i, p := range pairs {
		if p.Value == nil {
			return fmt.Errorf("store: InsertBatch requires non-nil values, pair %d (key %d) was nil", i, p.Key)
		}

		h := xxhash.Sum64(p.Value)
		if prior, ok := seen[p.Key]; ok && prior.hash == h {
			offsets[i] = prior.offset
			continue
		}

		off, err := s.log.Append(p.Key, p.Value)
		if err != nil {
			return fmt.Errorf("store: append pair %d: %w", i, err)
		}
		offsets[i] = off
		seen[p.Key] = seenEntry{hash: h, offset: off}
	}
	if err := s.log.Sync(); err != nil {
		return fmt.Errorf("store: sync: %w", err)
	}
	for i, p := range pairs {
		s.tree.Insert(p.Key, offsets[i])
	}
	return nil
}

// Get returns the value for key. ok is false if key is absent or was
// deleted -- that is not treated as an error.
func (s *Store) Get(key int64) (value []byte, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, ErrClosed
	}

	offset, found := s.tree.Get(key)
	if !found {
		return nil, false, nil
	}
	rec, err := s.log.Read(offset)
	if err != nil {
		return nil, false, fmt.Errorf("store: read log record for key %d: %w", key, err)
	}
	if rec.Tombstone {
		return nil, false, nil
	}
	return append([]byte(nil), rec.Value...), true, nil
}

// RangeEntry is a single live (key, value) pair returned by Range, which
// returns them in ascending key order.
type RangeEntry struct {
	Key   int64
	Value []byte
}

// Range scans [lo, hi] and returns the live entries within it.
func (s *Store) Range(lo, hi int64) ([]RangeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	leafEntries := s.tree.Range(lo, hi, nil)
	out := make([]RangeEntry, 0, len(leafEntries))
	for _, e := range leafEntries {
		if e.Tombstone {
			continue
		}
		rec, err := s.log.Read(e.Offset)
		if err != nil {
			return nil, fmt.Errorf("store: read log record for key %d: %w", e.Key, err)
		}
		if rec.Tombstone {
			continue
		}
		out = append(out, RangeEntry{Key: e.Key, Value: append([]byte(nil), rec.Value...)})
	}
	return out, nil
}

// Delete removes key. Returns false if key was already absent.
// Durably logs the delete (as a tombstone record keyed by key alone,
// independent of the live record's offset) before tombstoning the
// tree's in-memory entry, so recovery replays the delete correctly
// even though the tombstone record's own offset is never referenced by
// the tree.
func (s *Store) Delete(key int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}

	if !s.tree.Delete(key) {
		return false, nil
	}
	if _, err := s.log.Append(key, nil); err != nil {
		return false, fmt.Errorf("store: append tombstone: %w", err)
	}
	if err := s.log.Sync(); err != nil {
		return false, fmt.Errorf("store: sync: %w", err)
	}
	return true, nil
}

// Stats reports the tree's current shape, used to decide whether
// Compact is worthwhile.
func (s *Store) Stats() tree.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Stats()
}

// Compact rebuilds the tree's leaves and inner nodes from its live
// entries, reclaiming tombstone and post-split fragmentation overhead.
// The log itself is untouched -- offsets already recorded in the
// rebuilt tree continue to point at the same log records.
func (s *Store) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.tree.Compact()
	return nil
}

// Flush syncs the log and writes a fresh tree snapshot plus a manifest
// recording the log tail it covers, so a future Open can skip replaying
// everything written before this point.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	if s.closed {
		return ErrClosed
	}
	if err := s.log.Sync(); err != nil {
		return fmt.Errorf("store: sync log: %w", err)
	}
	tail := uint64(s.log.Tail())
	if err := s.tree.Save(filepath.Join(s.dir, snapshotFileName)); err != nil {
		return fmt.Errorf("store: save snapshot: %w", err)
	}
	if err := writeManifest(filepath.Join(s.dir, manifestFileName), tail); err != nil {
		return fmt.Errorf("store: write manifest: %w", err)
	}
	return nil
}

// Close flushes and releases the store's log file. Safe to call more
// than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	flushErr := s.flushLocked()
	closeErr := s.log.Close()
	s.closed = true
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
