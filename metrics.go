package coldb

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"github.com/hupe1980/coldb/internal/engine"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordInsert is called for each inserted or revived document.
	RecordInsert()

	// RecordUpdate is called for each updated document.
	RecordUpdate()

	// RecordDelete is called for each tombstoned document.
	RecordDelete()

	// RecordChangeset is called when a changeset is applied or discarded.
	// mutated is the number of rows it changed.
	RecordChangeset(mutated int, duration time.Duration)

	// RecordSortRebuild is called after a sort index was rebuilt.
	RecordSortRebuild(duration time.Duration)

	// RecordGrowth is called when a container's committed capacity increases.
	RecordGrowth(capacity int)

	// RecordFlush is called after a container flush, err is nil if successful.
	RecordFlush(duration time.Duration, err error)

	// RecordLoad is called after a container or column load, err is nil if successful.
	RecordLoad(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert()                      {}
func (NoopMetricsCollector) RecordUpdate()                      {}
func (NoopMetricsCollector) RecordDelete()                      {}
func (NoopMetricsCollector) RecordChangeset(int, time.Duration) {}
func (NoopMetricsCollector) RecordSortRebuild(time.Duration)    {}
func (NoopMetricsCollector) RecordGrowth(int)                   {}
func (NoopMetricsCollector) RecordFlush(time.Duration, error)   {}
func (NoopMetricsCollector) RecordLoad(time.Duration, error)    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	InsertCount      atomic.Int64
	UpdateCount      atomic.Int64
	DeleteCount      atomic.Int64
	ChangesetCount   atomic.Int64
	ChangesetRows    atomic.Int64
	ChangesetNanos   atomic.Int64
	SortRebuildCount atomic.Int64
	SortRebuildNanos atomic.Int64
	GrowthCount      atomic.Int64
	MaxCapacity      atomic.Int64
	FlushCount       atomic.Int64
	FlushErrors      atomic.Int64
	LoadCount        atomic.Int64
	LoadErrors       atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert() { b.InsertCount.Add(1) }

// RecordUpdate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUpdate() { b.UpdateCount.Add(1) }

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete() { b.DeleteCount.Add(1) }

// RecordChangeset implements MetricsCollector.
func (b *BasicMetricsCollector) RecordChangeset(mutated int, duration time.Duration) {
	b.ChangesetCount.Add(1)
	b.ChangesetRows.Add(int64(mutated))
	b.ChangesetNanos.Add(duration.Nanoseconds())
}

// RecordSortRebuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSortRebuild(duration time.Duration) {
	b.SortRebuildCount.Add(1)
	b.SortRebuildNanos.Add(duration.Nanoseconds())
}

// RecordGrowth implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGrowth(capacity int) {
	b.GrowthCount.Add(1)
	for {
		cur := b.MaxCapacity.Load()
		if int64(capacity) <= cur || b.MaxCapacity.CompareAndSwap(cur, int64(capacity)) {
			return
		}
	}
}

// RecordFlush implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFlush(_ time.Duration, err error) {
	b.FlushCount.Add(1)
	if err != nil {
		b.FlushErrors.Add(1)
	}
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(_ time.Duration, err error) {
	b.LoadCount.Add(1)
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InsertCount:         b.InsertCount.Load(),
		UpdateCount:         b.UpdateCount.Load(),
		DeleteCount:         b.DeleteCount.Load(),
		ChangesetCount:      b.ChangesetCount.Load(),
		ChangesetRows:       b.ChangesetRows.Load(),
		ChangesetAvgNanos:   avg(b.ChangesetNanos.Load(), b.ChangesetCount.Load()),
		SortRebuildCount:    b.SortRebuildCount.Load(),
		SortRebuildAvgNanos: avg(b.SortRebuildNanos.Load(), b.SortRebuildCount.Load()),
		GrowthCount:         b.GrowthCount.Load(),
		MaxCapacity:         b.MaxCapacity.Load(),
		FlushCount:          b.FlushCount.Load(),
		FlushErrors:         b.FlushErrors.Load(),
		LoadCount:           b.LoadCount.Load(),
		LoadErrors:          b.LoadErrors.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InsertCount         int64
	UpdateCount         int64
	DeleteCount         int64
	ChangesetCount      int64
	ChangesetRows       int64
	ChangesetAvgNanos   int64
	SortRebuildCount    int64
	SortRebuildAvgNanos int64
	GrowthCount         int64
	MaxCapacity         int64
	FlushCount          int64
	FlushErrors         int64
	LoadCount           int64
	LoadErrors          int64
}

// VictoriaMetricsCollector records metrics into a VictoriaMetrics set
// that can be exposed in Prometheus text format.
type VictoriaMetricsCollector struct {
	set *metrics.Set

	inserts       *metrics.Counter
	updates       *metrics.Counter
	deletes       *metrics.Counter
	changesets    *metrics.Counter
	changesetRows *metrics.Counter
	changesetDur  *metrics.Histogram
	sortRebuilds  *metrics.Histogram
	growths       *metrics.Counter
	flushes       *metrics.Histogram
	flushErrors   *metrics.Counter
	loads         *metrics.Histogram
	loadErrors    *metrics.Counter

	capacity atomic.Int64
}

// NewVictoriaMetricsCollector creates a collector whose metric names start
// with prefix, e.g. "coldb".
func NewVictoriaMetricsCollector(prefix string) *VictoriaMetricsCollector {
	s := metrics.NewSet()
	name := func(n string) string { return prefix + "_" + n }
	v := &VictoriaMetricsCollector{
		set:           s,
		inserts:       s.NewCounter(name("inserts_total")),
		updates:       s.NewCounter(name("updates_total")),
		deletes:       s.NewCounter(name("deletes_total")),
		changesets:    s.NewCounter(name("changesets_total")),
		changesetRows: s.NewCounter(name("changeset_rows_total")),
		changesetDur:  s.NewHistogram(name("changeset_duration_seconds")),
		sortRebuilds:  s.NewHistogram(name("sort_rebuild_duration_seconds")),
		growths:       s.NewCounter(name("growths_total")),
		flushes:       s.NewHistogram(name("flush_duration_seconds")),
		flushErrors:   s.NewCounter(name("flush_errors_total")),
		loads:         s.NewHistogram(name("load_duration_seconds")),
		loadErrors:    s.NewCounter(name("load_errors_total")),
	}
	s.NewGauge(name("capacity_max"), func() float64 {
		return float64(v.capacity.Load())
	})
	return v
}

// RecordInsert implements MetricsCollector.
func (v *VictoriaMetricsCollector) RecordInsert() { v.inserts.Inc() }

// RecordUpdate implements MetricsCollector.
func (v *VictoriaMetricsCollector) RecordUpdate() { v.updates.Inc() }

// RecordDelete implements MetricsCollector.
func (v *VictoriaMetricsCollector) RecordDelete() { v.deletes.Inc() }

// RecordChangeset implements MetricsCollector.
func (v *VictoriaMetricsCollector) RecordChangeset(mutated int, duration time.Duration) {
	v.changesets.Inc()
	v.changesetRows.Add(mutated)
	v.changesetDur.Update(duration.Seconds())
}

// RecordSortRebuild implements MetricsCollector.
func (v *VictoriaMetricsCollector) RecordSortRebuild(duration time.Duration) {
	v.sortRebuilds.Update(duration.Seconds())
}

// RecordGrowth implements MetricsCollector.
func (v *VictoriaMetricsCollector) RecordGrowth(capacity int) {
	v.growths.Inc()
	for {
		cur := v.capacity.Load()
		if int64(capacity) <= cur || v.capacity.CompareAndSwap(cur, int64(capacity)) {
			return
		}
	}
}

// RecordFlush implements MetricsCollector.
func (v *VictoriaMetricsCollector) RecordFlush(duration time.Duration, err error) {
	v.flushes.Update(duration.Seconds())
	if err != nil {
		v.flushErrors.Inc()
	}
}

// RecordLoad implements MetricsCollector.
func (v *VictoriaMetricsCollector) RecordLoad(duration time.Duration, err error) {
	v.loads.Update(duration.Seconds())
	if err != nil {
		v.loadErrors.Inc()
	}
}

// WritePrometheus writes the collected metrics in Prometheus text format.
func (v *VictoriaMetricsCollector) WritePrometheus(w io.Writer) {
	v.set.WritePrometheus(w)
}

// Counter returns the current value of a counter by its short name, e.g.
// "inserts_total". Unknown names return 0.
func (v *VictoriaMetricsCollector) Counter(name string) uint64 {
	switch name {
	case "inserts_total":
		return v.inserts.Get()
	case "updates_total":
		return v.updates.Get()
	case "deletes_total":
		return v.deletes.Get()
	case "changesets_total":
		return v.changesets.Get()
	case "changeset_rows_total":
		return v.changesetRows.Get()
	case "growths_total":
		return v.growths.Get()
	case "flush_errors_total":
		return v.flushErrors.Get()
	case "load_errors_total":
		return v.loadErrors.Get()
	default:
		return 0
	}
}

// observer adapts a MetricsCollector to engine.MetricsObserver.
type observer struct {
	mc MetricsCollector
}

var _ engine.MetricsObserver = observer{}

func (o observer) OnInsert() { o.mc.RecordInsert() }
func (o observer) OnUpdate() { o.mc.RecordUpdate() }
func (o observer) OnDelete() { o.mc.RecordDelete() }

func (o observer) OnChangeset(mutated int, d time.Duration) {
	o.mc.RecordChangeset(mutated, d)
}

func (o observer) OnSortRebuild(field, slots int, d time.Duration) {
	o.mc.RecordSortRebuild(d)
}

func (o observer) OnGrowth(capacity int) { o.mc.RecordGrowth(capacity) }

func (o observer) OnFlush(d time.Duration, _ int, err error) { o.mc.RecordFlush(d, err) }

func (o observer) OnLoad(d time.Duration, _ int, err error) { o.mc.RecordLoad(d, err) }
