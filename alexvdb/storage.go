package alexvdb

import (
	"fmt"

	"github.com/alexvdb/alexvdb/internal/kv/store"
	"github.com/alexvdb/alexvdb/internal/obs"
)

// Storage is the public facade over the learned-index key/value engine
// (spec components C1-C5): an in-memory ALEX tree addressing values
// held in a durable, mmap-backed append log. It is independent of
// Database/Collection, which layer the HNSW vector core on top of the
// same observability and options conventions.
type Storage struct {
	inner   *store.Store
	metrics *obs.KVMetrics
}

// StorageConfig controls the shape of a newly opened Storage.
type StorageConfig struct {
	LeafCapacity              int
	GapRatio                  float64
	Fanout                    int
	CompactTombstoneThreshold float64
	MetricsEnabled            bool
}

// StorageOption configures a StorageConfig, mirroring the database-wide
// functional-options pattern Option/CollectionOption already use.
type StorageOption func(*StorageConfig) error

// WithLeafCapacity sets the gapped-array slot count new leaves are
// built with.
func WithLeafCapacity(n int) StorageOption {
	return func(c *StorageConfig) error {
		if n <= 0 {
			return fmt.Errorf("leaf capacity must be positive, got %d", n)
		}
		c.LeafCapacity = n
		return nil
	}
}

// WithGapRatio sets the fraction of empty slots a freshly built leaf
// reserves for future inserts.
func WithGapRatio(r float64) StorageOption {
	return func(c *StorageConfig) error {
		if r <= 0 || r >= 1 {
			return fmt.Errorf("gap ratio must be in (0, 1), got %v", r)
		}
		c.GapRatio = r
		return nil
	}
}

// WithFanout sets the maximum number of children an inner tree node may
// hold before splitting.
func WithFanout(n int) StorageOption {
	return func(c *StorageConfig) error {
		if n < 2 {
			return fmt.Errorf("fanout must be at least 2, got %d", n)
		}
		c.Fanout = n
		return nil
	}
}

// WithCompactTombstoneThreshold sets the tombstone-to-key-count ratio
// Stats().ShouldCompact-style callers use to decide when a Compact pass
// is worth running.
func WithCompactTombstoneThreshold(r float64) StorageOption {
	return func(c *StorageConfig) error {
		if r <= 0 || r > 1 {
			return fmt.Errorf("compact tombstone threshold must be in (0, 1], got %v", r)
		}
		c.CompactTombstoneThreshold = r
		return nil
	}
}

// WithStorageMetrics enables Prometheus metrics for the learned-index
// engine, mirroring Database's WithMetrics option.
func WithStorageMetrics(enabled bool) StorageOption {
	return func(c *StorageConfig) error {
		c.MetricsEnabled = enabled
		return nil
	}
}

// OpenStorage opens (creating if necessary) a key/value store rooted
// at dir, recovering its tree from the last snapshot plus whatever the
// append log holds beyond it.
func OpenStorage(dir string, opts ...StorageOption) (*Storage, error) {
	cfg := StorageConfig{CompactTombstoneThreshold: store.DefaultCompactTombstoneThreshold}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, fmt.Errorf("failed to apply storage option: %w", err)
		}
	}

	inner, err := store.Open(dir, store.Config{
		LeafCapacity:              cfg.LeafCapacity,
		GapRatio:                  cfg.GapRatio,
		Fanout:                    cfg.Fanout,
		CompactTombstoneThreshold: cfg.CompactTombstoneThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	var metrics *obs.KVMetrics
	if cfg.MetricsEnabled {
		metrics = obs.NewKVMetrics()
	}
	return &Storage{inner: inner, metrics: metrics}, nil
}

// Insert durably writes (key, value). A nil value is rejected; callers
// that want to remove a key must use Delete.
func (s *Storage) Insert(key int64, value []byte) error {
	if err := s.inner.Insert(key, value); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageOperationFailed, err)
	}
	if s.metrics != nil {
		s.metrics.Inserts.Inc()
	}
	return nil
}

// StoragePair is a single key/value input to InsertBatch.
type StoragePair = store.Pair

// InsertBatch writes every pair with a single fsync, for bulk-load
// throughput.
func (s *Storage) InsertBatch(pairs []StoragePair) error {
	if err := s.inner.InsertBatch(pairs); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageOperationFailed, err)
	}
	if s.metrics != nil {
		s.metrics.Inserts.Add(float64(len(pairs)))
	}
	return nil
}

// Get returns the value for key. ok is false (with a nil error) if key
// is absent or was deleted -- that is not treated as an error.
func (s *Storage) Get(key int64) ([]byte, bool, error) {
	if s.metrics != nil {
		s.metrics.Gets.Inc()
	}
	value, ok, err := s.inner.Get(key)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrStorageOperationFailed, err)
	}
	return value, ok, nil
}

// StorageEntry is a single live (key, value) pair returned by Range.
type StorageEntry = store.RangeEntry

// Range returns every live entry with key in [lo, hi], in ascending key
// order.
func (s *Storage) Range(lo, hi int64) ([]StorageEntry, error) {
	entries, err := s.inner.Range(lo, hi)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageOperationFailed, err)
	}
	return entries, nil
}

// Delete removes key. Returns false if key was already absent.
func (s *Storage) Delete(key int64) (bool, error) {
	deleted, err := s.inner.Delete(key)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageOperationFailed, err)
	}
	if deleted && s.metrics != nil {
		s.metrics.Deletes.Inc()
	}
	return deleted, nil
}

// StorageStats summarizes the engine's current shape.
type StorageStats struct {
	KeyCount       int
	TombstoneCount int
	LeafCount      int
	Height         int
}

// Stats reports the tree's current shape.
func (s *Storage) Stats() StorageStats {
	st := s.inner.Stats()
	return StorageStats{
		KeyCount:       st.KeyCount,
		TombstoneCount: st.TombstoneCount,
		LeafCount:      st.LeafCount,
		Height:         st.Height,
	}
}

// ShouldCompact reports whether the tombstone fraction has grown large
// enough, relative to threshold, that a Compact pass is worth its cost.
func (s StorageStats) ShouldCompact(threshold float64) bool {
	if s.KeyCount == 0 {
		return false
	}
	return float64(s.TombstoneCount)/float64(s.KeyCount) >= threshold
}

// Compact rebuilds the tree's leaves and inner nodes from its live
// entries, reclaiming tombstone and fragmentation overhead. The
// underlying append log is untouched.
func (s *Storage) Compact() error {
	if err := s.inner.Compact(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageOperationFailed, err)
	}
	if s.metrics != nil {
		s.metrics.Compactions.Inc()
	}
	return nil
}

// Flush syncs the log and writes a fresh tree snapshot, so a future
// OpenStorage can skip replaying everything written before this point.
func (s *Storage) Flush() error {
	if err := s.inner.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageOperationFailed, err)
	}
	return nil
}

// Close flushes and releases the store's resources. Safe to call more
// than once.
func (s *Storage) Close() error {
	if err := s.inner.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageOperationFailed, err)
	}
	return nil
}
