package lsm

import "github.com/sirupsen/logrus"

// Defaults for the enumerated configuration knobs.
const (
	DefaultMemTableSizeThreshold = 64 * 1024
	DefaultBloomFilterSize       = 1024
	DefaultBloomHashCount        = 7
	DefaultMaxLevels             = 5
	DefaultSizeRatio             = 4
	DefaultSparseIndexInterval   = 16
	DefaultDataDir               = "./data"
	DefaultTombstone             = "__TOMBSTONE__"
)

// Options configures an engine instance. Zero-valued fields are replaced by
// their defaults when the engine opens.
type Options struct {
	// DataDir is the root directory holding wal.log and the *.sst files.
	DataDir string
	// MemTableSizeThreshold is the byte-size trigger for auto-flush.
	MemTableSizeThreshold int
	// BloomFilterSize is the bit-array size of each SSTable's embedded filter.
	BloomFilterSize uint32
	// BloomHashCount is the number of hash functions per Bloom filter.
	BloomHashCount uint8
	// MaxLevels is the number of compaction levels, 0..MaxLevels-1.
	MaxLevels int
	// SizeRatio is the per-level table count that triggers compaction
	// into the next level.
	SizeRatio int
	// SparseIndexInterval controls how often a data record gets a sparse
	// index entry in an SSTable.
	SparseIndexInterval int
	// Tombstone is the sentinel value marking a logical deletion.
	Tombstone string
	// Logger receives warnings for recoverable conditions. Defaults to
	// logrus.StandardLogger() when nil.
	Logger *logrus.Logger
}

// DefaultOptions returns an Options populated with every default.
func DefaultOptions() Options {
	return Options{
		DataDir:               DefaultDataDir,
		MemTableSizeThreshold: DefaultMemTableSizeThreshold,
		BloomFilterSize:       DefaultBloomFilterSize,
		BloomHashCount:        DefaultBloomHashCount,
		MaxLevels:             DefaultMaxLevels,
		SizeRatio:             DefaultSizeRatio,
		SparseIndexInterval:   DefaultSparseIndexInterval,
		Tombstone:             DefaultTombstone,
	}
}

// withDefaults returns a copy of o with every zero-valued field replaced by
// its default.
func (o Options) withDefaults() Options {
	out := o
	if out.DataDir == "" {
		out.DataDir = DefaultDataDir
	}
	if out.MemTableSizeThreshold <= 0 {
		out.MemTableSizeThreshold = DefaultMemTableSizeThreshold
	}
	if out.BloomFilterSize == 0 {
		out.BloomFilterSize = DefaultBloomFilterSize
	}
	if out.BloomHashCount == 0 {
		out.BloomHashCount = DefaultBloomHashCount
	}
	if out.MaxLevels <= 0 {
		out.MaxLevels = DefaultMaxLevels
	}
	if out.SizeRatio <= 0 {
		out.SizeRatio = DefaultSizeRatio
	}
	if out.SparseIndexInterval <= 0 {
		out.SparseIndexInterval = DefaultSparseIndexInterval
	}
	if out.Tombstone == "" {
		out.Tombstone = DefaultTombstone
	}
	if out.Logger == nil {
		out.Logger = logrus.StandardLogger()
	}
	return out
}
