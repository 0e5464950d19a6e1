package engine

import (
	"log/slog"
	"time"

	"github.com/hupe1980/coldb/internal/persist"
	"github.com/hupe1980/coldb/internal/resource"
)

const (
	// DefaultGrowIncrement is the slot granularity storage grows by.
	DefaultGrowIncrement = 10_000
	// DefaultGrowTimeout bounds one attempt to take a column's growth lock.
	DefaultGrowTimeout = 5 * time.Millisecond
	// DefaultFlushConcurrency bounds the column files written at once.
	DefaultFlushConcurrency = 8
)

type options struct {
	logger           *slog.Logger
	rc               *resource.Controller
	metrics          MetricsObserver
	dir              *persist.Dir
	growIncrement    int
	growTimeout      time.Duration
	flushConcurrency int
	eagerLoad        bool
}

func defaultOptions() options {
	return options{
		logger:           slog.New(slog.DiscardHandler),
		metrics:          NoopMetricsObserver{},
		growIncrement:    DefaultGrowIncrement,
		growTimeout:      DefaultGrowTimeout,
		flushConcurrency: DefaultFlushConcurrency,
	}
}

// Option configures a Container.
type Option func(*options)

// WithLogger sets the logger. A nil logger discards.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithResourceController charges column memory, background loads and file
// IO against rc.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) { o.rc = rc }
}

// WithMetricsObserver sets the metrics observer.
func WithMetricsObserver(m MetricsObserver) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithDir sets the directory the container flushes to and loads from.
func WithDir(d *persist.Dir) Option {
	return func(o *options) { o.dir = d }
}

// WithGrowIncrement sets the slot granularity of storage growth.
func WithGrowIncrement(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.growIncrement = n
		}
	}
}

// WithGrowTimeout bounds one attempt to take a column's growth lock.
func WithGrowTimeout(d time.Duration) Option {
	return func(o *options) { o.growTimeout = d }
}

// WithFlushConcurrency bounds the column files written concurrently.
func WithFlushConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.flushConcurrency = n
		}
	}
}

// WithEagerLoad schedules every persisted column for loading as soon as
// the container is loaded.
func WithEagerLoad(eager bool) Option {
	return func(o *options) { o.eagerLoad = eager }
}
