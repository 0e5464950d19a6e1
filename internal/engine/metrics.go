package engine

import "time"

// MetricsObserver observes container events.
type MetricsObserver interface {
	// OnInsert is called for every inserted document, including revivals.
	OnInsert()
	// OnUpdate is called for every updated document.
	OnUpdate()
	// OnDelete is called for every tombstoned document.
	OnDelete()
	// OnChangeset is called when a changeset is applied or discarded.
	OnChangeset(mutated int, duration time.Duration)
	// OnSortRebuild is called after a sort index was rebuilt.
	OnSortRebuild(field, slots int, duration time.Duration)
	// OnGrowth is called when the committed capacity increases.
	OnGrowth(capacity int)
	// OnFlush is called when a flush completes.
	OnFlush(duration time.Duration, slots int, err error)
	// OnLoad is called when a container or column load completes.
	OnLoad(duration time.Duration, slots int, err error)
}

// NoopMetricsObserver is a no-op implementation of MetricsObserver.
type NoopMetricsObserver struct{}

func (NoopMetricsObserver) OnInsert()                             {}
func (NoopMetricsObserver) OnUpdate()                             {}
func (NoopMetricsObserver) OnDelete()                             {}
func (NoopMetricsObserver) OnChangeset(int, time.Duration)        {}
func (NoopMetricsObserver) OnSortRebuild(int, int, time.Duration) {}
func (NoopMetricsObserver) OnGrowth(int)                          {}
func (NoopMetricsObserver) OnFlush(time.Duration, int, error)     {}
func (NoopMetricsObserver) OnLoad(time.Duration, int, error)      {}
