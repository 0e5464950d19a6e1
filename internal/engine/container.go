package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/coldb/internal/arena"
	"github.com/hupe1980/coldb/internal/bitset"
	"github.com/hupe1980/coldb/internal/column"
	"github.com/hupe1980/coldb/internal/gate"
	"github.com/hupe1980/coldb/internal/keyindex"
	"github.com/hupe1980/coldb/internal/rwlock"
	"github.com/hupe1980/coldb/internal/sortindex"
	"github.com/hupe1980/coldb/model"
)

const rowStripes = 64

// columnState is one field's column plus its lazy load state.
type columnState struct {
	field model.Field
	store column.Store

	mu sync.Mutex
	// pending is set while persisted data exists that no load has picked up.
	pending bool
	// done is closed when a started load finishes.
	done chan struct{}
	err  error
}

func (cs *columnState) resident() bool {
	cs.mu.Lock()
	pending, done := cs.pending, cs.done
	cs.mu.Unlock()
	if pending {
		return false
	}
	if done == nil {
		return true
	}
	select {
	case <-done:
		return cs.err == nil
	default:
		return false
	}
}

// storage is everything compaction replaces at once.
type storage struct {
	arena    *arena.Arena
	keys     *keyindex.Index
	validity *bitset.BitVector
	columns  []*columnState
}

func newStorage(schema *model.Schema, a *arena.Arena) (*storage, error) {
	st := &storage{
		arena:    a,
		keys:     keyindex.New(a),
		validity: bitset.New(0),
		columns:  make([]*columnState, len(schema.Fields)),
	}
	for i, f := range schema.Fields {
		store, err := column.New(f.Type, a)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		st.columns[i] = &columnState{field: f, store: store}
	}
	return st, nil
}

// Container holds the documents of one document type.
type Container struct {
	schema *model.Schema
	opts   options
	logger *slog.Logger

	lock     *rwlock.Lock
	state    atomic.Pointer[storage]
	nextSlot atomic.Int64
	capacity atomic.Int64
	retired  atomic.Int64
	stripes  [rowStripes]sync.Mutex
	sorts    *sortindex.Manager

	broken atomic.Pointer[brokenError]
	closed atomic.Bool

	// persisted is the slot count of the directory the container was loaded from.
	persisted int
}

// New creates an empty container for schema.
func New(schema *model.Schema, opts ...Option) (*Container, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := &Container{
		schema: schema,
		opts:   o,
		logger: o.logger.With("document_type", schema.Name),
		lock:   rwlock.New(),
	}
	st, err := newStorage(schema, c.newArena())
	if err != nil {
		return nil, err
	}
	c.state.Store(st)
	c.sorts = sortindex.NewManager(c.lock, sortSource{c}, len(schema.Fields),
		sortindex.WithLogger(c.logger),
		sortindex.WithRebuildHook(func(field, slots int, elapsed time.Duration) {
			c.opts.metrics.OnSortRebuild(field, slots, elapsed)
		}),
	)
	return c, nil
}

func (c *Container) newArena() *arena.Arena {
	if c.opts.rc != nil {
		return arena.New(arena.WithMemoryAcquirer(c.opts.rc))
	}
	return arena.New()
}

// Name returns the document type.
func (c *Container) Name() string { return c.schema.Name }

// Schema returns the schema the container was created with.
func (c *Container) Schema() *model.Schema { return c.schema }

func (c *Container) check() error {
	if b := c.broken.Load(); b != nil {
		return b
	}
	if c.closed.Load() {
		return ErrClosed
	}
	return nil
}

// fail trips the broken state. The first cause wins.
func (c *Container) fail(op string, err error) error {
	b := &brokenError{op: op, cause: err}
	if c.broken.CompareAndSwap(nil, b) {
		c.logger.Error("container broken", "op", op, "error", err)
	}
	return c.broken.Load()
}

// Err returns the error that broke the container, or nil.
func (c *Container) Err() error {
	if b := c.broken.Load(); b != nil {
		return b
	}
	return nil
}

func (c *Container) stripe(slot int) *sync.Mutex { return &c.stripes[slot%rowStripes] }

// limit is the exclusive bound of slots that may hold a document.
func (c *Container) limit() int {
	return int(min(c.nextSlot.Load(), c.capacity.Load()))
}

// SlotCount returns the number of slots handed out, including tombstones
// and retired slots.
func (c *Container) SlotCount() int { return int(c.nextSlot.Load()) }

// Capacity returns the committed capacity.
func (c *Container) Capacity() int { return int(c.capacity.Load()) }

// Count returns the number of live documents.
func (c *Container) Count() int {
	return c.state.Load().validity.Count(c.limit())
}

// expandStorage grows every structure to hold target slots. The caller
// holds the structure lock in any mode.
func (c *Container) expandStorage(st *storage, target int) error {
	if target <= int(c.capacity.Load()) {
		return nil
	}
	inc := c.opts.growIncrement
	rounded := (target + inc - 1) / inc * inc

	for {
		if int(c.capacity.Load()) >= target {
			return nil
		}
		grown := 0
		for _, cs := range st.columns {
			ok, err := cs.store.TryEnsureCapacity(rounded, c.opts.growTimeout)
			if err != nil {
				return err
			}
			if ok {
				grown++
			}
		}
		if grown == len(st.columns) {
			break
		}
		if grown*2 < len(st.columns) {
			runtime.Gosched()
		}
	}

	if _, err := st.keys.TryEnsureCapacity(rounded, gate.Infinite); err != nil {
		return err
	}
	if _, err := st.validity.TryEnsureCapacity(rounded, gate.Infinite); err != nil {
		return err
	}

	for {
		cur := c.capacity.Load()
		if cur >= int64(rounded) {
			return nil
		}
		if c.capacity.CompareAndSwap(cur, int64(rounded)) {
			c.opts.metrics.OnGrowth(rounded)
			c.logger.Debug("storage grown", "capacity", rounded)
			return nil
		}
	}
}

// TryAddDocument returns the slot of key, allocating one if the key is new.
//
// An existing key is not an error: a tombstoned slot is revived with all
// fields null, a live slot is returned as is. When two callers race on the
// same new key, one slot wins and the other is retired for good.
func (c *Container) TryAddDocument(key []byte) (int, error) {
	if err := c.check(); err != nil {
		return -1, err
	}
	if err := model.ValidateKey(key); err != nil {
		return -1, err
	}
	// A revival clears every column, so none may still be loading.
	if err := c.requireAll(context.Background()); err != nil {
		return -1, err
	}
	release := c.lock.RLock()
	defer release()
	slot, created, err := c.addDocument(c.state.Load(), key, nil)
	if err != nil {
		return -1, err
	}
	if created {
		c.sorts.InvalidateAll()
		c.opts.metrics.OnInsert()
	}
	return slot, nil
}

// addDocument implements TryAddDocument. fill runs under the row stripe
// before the slot becomes valid. created reports whether the slot was not
// live before.
func (c *Container) addDocument(st *storage, key []byte, fill func(slot int)) (slot int, created bool, err error) {
	slot, ok := st.keys.TryGet(key)
	if !ok {
		reserved := int(c.nextSlot.Add(1) - 1)
		if err := c.expandStorage(st, reserved+1); err != nil {
			c.retired.Add(1)
			return -1, false, fmt.Errorf("engine: grow to slot %d: %w", reserved, err)
		}
		k := string(key)
		st.keys.SetKey(reserved, k)
		if st.keys.TryInsert(k, reserved) {
			slot = reserved
		} else {
			st.keys.SetKey(reserved, "")
			c.retired.Add(1)
			slot, _ = st.keys.TryGet(key)
		}
	}

	mu := c.stripe(slot)
	mu.Lock()
	defer mu.Unlock()

	live := st.validity.SafeGet(slot)
	if !live {
		for _, cs := range st.columns {
			cs.store.Clear(slot)
		}
	}
	if fill != nil {
		fill(slot)
	}
	st.validity.SafeSet(slot)
	return slot, !live, nil
}

// Delete tombstones the document with key. It reports whether a live
// document was removed.
func (c *Container) Delete(ctx context.Context, key []byte) (bool, error) {
	if err := c.check(); err != nil {
		return false, err
	}
	if err := model.ValidateKey(key); err != nil {
		return false, err
	}
	if err := c.requireAll(ctx); err != nil {
		return false, err
	}
	release := c.lock.RLock()
	defer release()

	if !c.deleteDocument(c.state.Load(), key) {
		return false, nil
	}
	c.sorts.InvalidateAll()
	c.opts.metrics.OnDelete()
	return true, nil
}

func (c *Container) deleteDocument(st *storage, key []byte) bool {
	slot, ok := st.keys.TryGet(key)
	if !ok {
		return false
	}
	mu := c.stripe(slot)
	mu.Lock()
	defer mu.Unlock()
	if !st.validity.SafeClear(slot) {
		return false
	}
	for _, cs := range st.columns {
		cs.store.Clear(slot)
	}
	return true
}

// Lookup returns the slot of a live document.
func (c *Container) Lookup(key []byte) (int, bool) {
	st := c.state.Load()
	slot, ok := st.keys.TryGet(key)
	if !ok || !st.validity.SafeGet(slot) {
		return -1, false
	}
	return slot, true
}

// IsValid reports whether slot holds a live document.
func (c *Container) IsValid(slot int) bool {
	return slot >= 0 && slot < c.limit() && c.state.Load().validity.SafeGet(slot)
}

// ReadRow copies the key and the fields selected by row.Fields of slot
// into row. It reports false if the slot holds no live document.
func (c *Container) ReadRow(ctx context.Context, slot int, row *model.RowBuffer) (bool, error) {
	if err := c.check(); err != nil {
		return false, err
	}
	if err := c.checkRow(row); err != nil {
		return false, err
	}
	release := c.lock.RLock()
	defer release()
	return c.readRow(ctx, c.state.Load(), slot, row)
}

func (c *Container) readRow(ctx context.Context, st *storage, slot int, row *model.RowBuffer) (bool, error) {
	if slot < 0 || slot >= c.limit() {
		return false, nil
	}
	for _, f := range row.Fields {
		if _, err := c.waitColumn(ctx, st, f); err != nil {
			return false, err
		}
	}

	mu := c.stripe(slot)
	mu.Lock()
	defer mu.Unlock()

	if !st.validity.SafeGet(slot) {
		return false, nil
	}
	row.Key = append(row.Key[:0], st.keys.Key(slot)...)
	for _, f := range row.Fields {
		col := st.columns[f].store
		if col.IsNull(slot) {
			row.SetNull(f)
			continue
		}
		col.AssignToRow(slot, row, f)
	}
	return true, nil
}

// checkRow rejects row buffers built for another schema.
func (c *Container) checkRow(row *model.RowBuffer) error {
	if row == nil {
		return fmt.Errorf("%w: nil row buffer", ErrInvalidArgument)
	}
	n := len(c.schema.Fields)
	if len(row.Nulls) != n || len(row.Fixed8) != n || len(row.Fixed16) != n || len(row.Chars) != n || len(row.Bytes) != n {
		return fmt.Errorf("%w: row buffer does not match schema %s", ErrInvalidArgument, c.schema.Name)
	}
	for _, f := range row.Fields {
		if err := c.ordinal(f); err != nil {
			return err
		}
	}
	return nil
}

func (c *Container) ordinal(field int) error {
	if field < 0 || field >= len(c.schema.Fields) {
		return fmt.Errorf("%w: ordinal %d", ErrUnknownField, field)
	}
	return nil
}

// RequireColumn returns the column of a field ordinal, waiting for its
// load if one is pending or in flight.
func (c *Container) RequireColumn(ctx context.Context, field int) (column.Store, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	if err := c.ordinal(field); err != nil {
		return nil, err
	}
	return c.waitColumn(ctx, c.state.Load(), field)
}

// ColumnByID is RequireColumn addressed by field ID.
func (c *Container) ColumnByID(ctx context.Context, id uint32) (column.Store, error) {
	ord, ok := c.schema.Ordinal(id)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownField, id)
	}
	return c.RequireColumn(ctx, ord)
}

// BeginLoadColumn schedules the load of a persisted column. It is a no-op
// for resident columns and loads already in flight.
func (c *Container) BeginLoadColumn(field int) error {
	if err := c.check(); err != nil {
		return err
	}
	if err := c.ordinal(field); err != nil {
		return err
	}
	c.beginLoad(c.state.Load(), field)
	return nil
}

// IsResident reports whether a column's values are in memory.
func (c *Container) IsResident(field int) bool {
	if c.ordinal(field) != nil {
		return false
	}
	return c.state.Load().columns[field].resident()
}

func (c *Container) beginLoad(st *storage, field int) {
	cs := st.columns[field]
	cs.mu.Lock()
	if !cs.pending {
		cs.mu.Unlock()
		return
	}
	cs.pending = false
	done := make(chan struct{})
	cs.done = done
	cs.mu.Unlock()

	go func() {
		defer close(done)
		ctx := context.Background()
		if err := c.opts.rc.AcquireBackground(ctx); err != nil {
			cs.err = err
			return
		}
		defer c.opts.rc.ReleaseBackground()

		start := time.Now()
		err := c.loadColumn(ctx, cs)
		c.opts.metrics.OnLoad(time.Since(start), c.persisted, err)
		if err != nil {
			cs.err = c.fail("load column "+cs.field.Name, err)
			return
		}
		c.logger.Debug("column loaded", "field", cs.field.Name, "duration", time.Since(start))
	}()
}

func (c *Container) waitColumn(ctx context.Context, st *storage, field int) (column.Store, error) {
	c.beginLoad(st, field)
	cs := st.columns[field]
	cs.mu.Lock()
	done := cs.done
	cs.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if cs.err != nil {
			return nil, cs.err
		}
	}
	return cs.store, nil
}

// requireAll starts every pending load and waits for all of them.
// Writers call it because revival and deletion touch every column.
func (c *Container) requireAll(ctx context.Context) error {
	st := c.state.Load()
	for i := range st.columns {
		c.beginLoad(st, i)
	}
	for i := range st.columns {
		if _, err := c.waitColumn(ctx, st, i); err != nil {
			return err
		}
	}
	return nil
}

// SortIndex returns the current ordering of field, rebuilding it if it
// was invalidated. It must not be called while the goroutine holds the
// structure lock in read mode, e.g. from inside an enumeration or an open
// changeset.
func (c *Container) SortIndex(ctx context.Context, field int) (*sortindex.Snapshot, error) {
	if _, err := c.RequireColumn(ctx, field); err != nil {
		return nil, err
	}
	return c.sorts.Get(field)
}

// SortIndexValid reports whether field has a current sort index.
func (c *Container) SortIndexValid(field int) bool { return c.sorts.IsValid(field) }

// Stats is a point-in-time summary of a container.
type Stats struct {
	DocumentType     string
	Slots            int
	Live             int
	Capacity         int
	Retired          int
	Fields           int
	ResidentColumns  int
	ValidSortIndexes int
	ArenaBytes       uint64
	Broken           bool
}

// Stats returns current counters.
func (c *Container) Stats() Stats {
	st := c.state.Load()
	s := Stats{
		DocumentType:     c.schema.Name,
		Slots:            c.SlotCount(),
		Live:             c.Count(),
		Capacity:         c.Capacity(),
		Retired:          int(c.retired.Load()),
		Fields:           len(st.columns),
		ValidSortIndexes: c.sorts.ValidCount(),
		ArenaBytes:       st.arena.Stats().BytesReserved,
		Broken:           c.broken.Load() != nil,
	}
	for _, cs := range st.columns {
		if cs.resident() {
			s.ResidentColumns++
		}
	}
	return s
}

// Close waits for in-flight column loads and releases the container's
// memory. Close is idempotent.
func (c *Container) Close() error {
	if c.closed.Load() {
		return nil
	}
	st := c.state.Load()
	for _, cs := range st.columns {
		cs.mu.Lock()
		cs.pending = false
		done := cs.done
		cs.mu.Unlock()
		if done != nil {
			<-done
		}
	}

	release := c.lock.Lock()
	defer release()
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.state.Load().arena.Free()
	return nil
}

// sortSource adapts a container to sortindex.Source.
type sortSource struct{ c *Container }

func (s sortSource) SlotCount() int { return s.c.limit() }

func (s sortSource) Validity() *bitset.BitVector { return s.c.state.Load().validity }

func (s sortSource) Column(field int) (column.Store, error) {
	return s.c.waitColumn(context.Background(), s.c.state.Load(), field)
}
