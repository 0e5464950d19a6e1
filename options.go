package coldb

import (
	"log/slog"
	"time"

	"github.com/hupe1980/coldb/blobstore"
	"github.com/hupe1980/coldb/internal/persist"
)

// Compression selects the codec of persisted files.
type Compression = persist.Compression

const (
	CompressionNone   = persist.CompressionNone
	CompressionZstd   = persist.CompressionZstd
	CompressionLZ4    = persist.CompressionLZ4
	CompressionSnappy = persist.CompressionSnappy
	CompressionGzip   = persist.CompressionGzip
)

// ParseCompression resolves a codec name such as "zstd".
func ParseCompression(name string) (Compression, error) { return persist.ParseCompression(name) }

type options struct {
	metricsCollector  MetricsCollector
	logger            *Logger
	store             blobstore.BlobStore
	compression       Compression
	memoryLimit       int64
	backgroundWorkers int64
	ioLimit           int64
	growIncrement     int
	growTimeout       *time.Duration
	eagerLoad         bool
	flushConcurrency  int
}

// Option configures Open.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &coldb.BasicMetricsCollector{}
//	db, _ := coldb.Open(ctx, coldb.WithMetricsCollector(metrics))
//	// ... use db ...
//	stats := metrics.GetStats()
//	fmt.Printf("Inserts: %d, changesets: %d\n", stats.InsertCount, stats.ChangesetCount)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := coldb.NewJSONLogger(slog.LevelInfo)
//	db, _ := coldb.Open(ctx, coldb.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithBlobStore persists containers to store. Without a blob store the
// database is memory-only and Flush returns ErrNotPersistent.
func WithBlobStore(store blobstore.BlobStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithDirectory persists containers to a local directory.
// Shorthand for WithBlobStore(blobstore.NewLocalStore(dir)).
func WithDirectory(dir string) Option {
	return func(o *options) {
		o.store = blobstore.NewLocalStore(dir)
	}
}

// WithCompression sets the codec used when flushing. Loads read the codec
// recorded in each file.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithMemoryLimit caps the bytes of column, key and validity storage
// across all containers. Growth beyond the limit fails with
// ErrMemoryLimitExceeded. 0 means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithBackgroundWorkers bounds the lazy column loads running at once.
// Defaults to 4.
func WithBackgroundWorkers(n int) Option {
	return func(o *options) {
		o.backgroundWorkers = int64(n)
	}
}

// WithIOLimit caps flush and load throughput in bytes per second.
// 0 means unlimited.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithGrowIncrement sets the slot granularity containers grow by.
func WithGrowIncrement(n int) Option {
	return func(o *options) {
		o.growIncrement = n
	}
}

// WithGrowTimeout bounds one attempt to take a column's growth lock before
// a writer moves on to the next column.
func WithGrowTimeout(d time.Duration) Option {
	return func(o *options) {
		o.growTimeout = &d
	}
}

// WithEagerLoad loads every persisted column in the background as soon as
// its container is opened, instead of on first use.
func WithEagerLoad(eager bool) Option {
	return func(o *options) {
		o.eagerLoad = eager
	}
}

// WithFlushConcurrency bounds the column files written at once per container.
func WithFlushConcurrency(n int) Option {
	return func(o *options) {
		o.flushConcurrency = n
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		compression:      CompressionZstd,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
