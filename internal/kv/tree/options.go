package tree

// DefaultLeafCapacity is the gapped-array slot count a leaf is given
// when no explicit capacity is configured.
const DefaultLeafCapacity = 256

// DefaultFanout bounds how many children an inner node may hold before
// it splits.
const DefaultFanout = 32

// DefaultGapRatio is the fraction of a leaf's slots left empty on
// build, shared with internal/kv/leaf's own default.
const DefaultGapRatio = 0.25

// DefaultCompactTombstoneThreshold is the tombstone-to-key-count ratio
// at which Stats.ShouldCompact recommends a compaction pass.
const DefaultCompactTombstoneThreshold = 0.3

type config struct {
	leafCapacity int
	gapRatio     float64
	fanout       int
}

func defaultConfig() config {
	return config{
		leafCapacity: DefaultLeafCapacity,
		gapRatio:     DefaultGapRatio,
		fanout:       DefaultFanout,
	}
}

// Option configures a Tree at construction (New or BulkBuild).
type Option func(*config)

// WithLeafCapacity sets the gapped-array slot count new leaves are
// built with.
func WithLeafCapacity(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.leafCapacity = n
		}
	}
}

// WithGapRatio sets the fraction of empty slots a freshly built leaf
// reserves.
func WithGapRatio(r float64) Option {
	return func(c *config) {
		if r > 0 && r < 1 {
			c.gapRatio = r
		}
	}
}

// WithFanout sets the maximum number of children an inner node may hold
// before splitting.
func WithFanout(n int) Option {
	return func(c *config) {
		if n >= 2 {
			c.fanout = n
		}
	}
}
