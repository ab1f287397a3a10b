package badgerstore

import "time"

// Config tunes the embedded Badger database.
type Config struct {
	// Dir is the data directory. Required unless InMemory is set.
	Dir string

	// InMemory keeps all data in memory. Used by tests.
	InMemory bool

	// GCInterval is the interval between value log GC runs.
	// Default: 10m
	GCInterval time.Duration

	// GCThreshold is the discard ratio that triggers a value log rewrite.
	// Default: 0.5
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 64MB
	CacheSize int64

	// MemTableSize is the memtable size in bytes. One transaction holds at
	// most 15% of it; larger flushes are committed in parts.
	// Default: 64MB
	MemTableSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 256MB
	ValueLogFileSize int64

	// SyncWrites fsyncs every commit. Address books are flushed in
	// batches, so the cost is paid once per sweep.
	// Default: true
	SyncWrites bool
}

// DefaultConfig returns the default configuration for dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:              dir,
		GCInterval:       10 * time.Minute,
		GCThreshold:      0.5,
		CacheSize:        64 << 20,
		MemTableSize:     64 << 20,
		ValueLogFileSize: 256 << 20,
		SyncWrites:       true,
	}
}
