// Package sortindex maintains lazily built per-field orderings of the live
// slots of a container.
//
// Each field owns one Index. An Index holds an immutable Snapshot (the
// permutation) tagged with the epoch it was built at; invalidation bumps
// the epoch, and the next Get rebuilds. Rebuilding takes the container's
// structure lock in write mode, so it never races with changesets, plus
// the index's own mutex so concurrent demand builds it once.
package sortindex

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/coldb/internal/bitset"
	"github.com/hupe1980/coldb/internal/column"
	"github.com/hupe1980/coldb/internal/rwlock"
)

// Source exposes the container state an index is built from.
type Source interface {
	SlotCount() int
	Validity() *bitset.BitVector
	// Column returns the resident column for a field ordinal, waiting for a
	// pending load.
	Column(field int) (column.Store, error)
}

// Snapshot is an immutable ordering of the live slots.
type Snapshot struct {
	// Slots lists live slots, non-null values in ascending order first,
	// then slots whose value is null.
	Slots []int
	// NonNull is the length of the non-null prefix of Slots.
	NonNull int
	Epoch   uint64
}

// Ascending iterates Slots in order. Nulls come last.
func (s *Snapshot) Ascending() []int { return s.Slots }

// Descending returns the non-null prefix reversed, followed by the nulls.
func (s *Snapshot) Descending() []int {
	out := make([]int, 0, len(s.Slots))
	for i := s.NonNull - 1; i >= 0; i-- {
		out = append(out, s.Slots[i])
	}
	return append(out, s.Slots[s.NonNull:]...)
}

// Index is the sort index of one field.
type Index struct {
	mu    sync.Mutex
	snap  atomic.Pointer[Snapshot]
	epoch atomic.Uint64
}

func (x *Index) current() *Snapshot {
	s := x.snap.Load()
	if s == nil || s.Epoch != x.epoch.Load() {
		return nil
	}
	return s
}

// RebuildFunc observes a finished rebuild.
type RebuildFunc func(field, slots int, elapsed time.Duration)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for rebuild events.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithRebuildHook registers a callback invoked after every rebuild.
func WithRebuildHook(fn RebuildFunc) Option {
	return func(m *Manager) { m.onRebuild = fn }
}

// Manager owns the sort indexes of one container.
type Manager struct {
	lock      *rwlock.Lock
	src       Source
	indexes   []*Index
	logger    *slog.Logger
	onRebuild RebuildFunc
}

// NewManager creates a manager with one invalid index per field.
func NewManager(lock *rwlock.Lock, src Source, fields int, opts ...Option) *Manager {
	m := &Manager{
		lock:    lock,
		src:     src,
		indexes: make([]*Index, fields),
		logger:  slog.New(slog.DiscardHandler),
	}
	for i := range m.indexes {
		m.indexes[i] = &Index{}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a valid snapshot for field, rebuilding it if needed.
//
// A rebuild takes the structure lock in write mode; calling Get while the
// goroutine holds only the read mode panics. Enumerators therefore fetch
// the snapshot before taking their read lock.
func (m *Manager) Get(field int) (*Snapshot, error) {
	if field < 0 || field >= len(m.indexes) {
		return nil, fmt.Errorf("sortindex: field %d out of range", field)
	}
	idx := m.indexes[field]
	if s := idx.current(); s != nil {
		return s, nil
	}

	release := m.lock.Lock()
	defer release()
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if s := idx.current(); s != nil {
		return s, nil
	}
	return m.rebuild(field, idx)
}

func (m *Manager) rebuild(field int, idx *Index) (*Snapshot, error) {
	start := time.Now()
	epoch := idx.epoch.Load()

	col, err := m.src.Column(field)
	if err != nil {
		return nil, err
	}
	valid := m.src.Validity()
	count := m.src.SlotCount()

	live := valid.Count(count)
	slots := make([]int, 0, live)
	nulls := make([]int, 0)
	for slot := valid.NextSet(0, count); slot >= 0; slot = valid.NextSet(slot+1, count) {
		if col.IsNull(slot) {
			nulls = append(nulls, slot)
			continue
		}
		slots = append(slots, slot)
	}
	slices.SortStableFunc(slots, col.Compare)
	nonNull := len(slots)
	slots = append(slots, nulls...)

	s := &Snapshot{Slots: slots, NonNull: nonNull, Epoch: epoch}
	idx.snap.Store(s)

	elapsed := time.Since(start)
	m.logger.Debug("sort index rebuilt", "field", field, "slots", len(slots), "nulls", len(nulls), "duration", elapsed)
	if m.onRebuild != nil {
		m.onRebuild(field, len(slots), elapsed)
	}
	return s, nil
}

// Invalidate marks the index of field stale.
func (m *Manager) Invalidate(field int) {
	if field >= 0 && field < len(m.indexes) {
		m.indexes[field].epoch.Add(1)
	}
}

// InvalidateAll marks every index stale.
func (m *Manager) InvalidateAll() {
	for _, idx := range m.indexes {
		idx.epoch.Add(1)
	}
}

// IsValid reports whether field has a current snapshot.
func (m *Manager) IsValid(field int) bool {
	if field < 0 || field >= len(m.indexes) {
		return false
	}
	return m.indexes[field].current() != nil
}

// ValidCount returns the number of fields with a current snapshot.
func (m *Manager) ValidCount() int {
	n := 0
	for _, idx := range m.indexes {
		if idx.current() != nil {
			n++
		}
	}
	return n
}
