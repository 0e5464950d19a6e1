package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/coldb/internal/column"
	"github.com/hupe1980/coldb/model"
)

// Changeset stages a group of inserts, updates and deletes against one
// container.
//
// A changeset holds the structure lock in read mode from CreateChangeset
// until Apply or Discard. Each AddChange writes through to the columns
// immediately; Discard releases the lock but does not undo those writes.
//
// A Changeset is not safe for concurrent use. The goroutine that created it
// must not request a sort index before closing it.
type Changeset struct {
	c       *Container
	st      *storage
	row     *model.RowBuffer
	bulk    bool
	columns []column.Store
	release func()
	start   time.Time

	mutated int
	// structural is set when the set of live slots changed.
	structural bool
	// touched is set when values of row.Fields were written.
	touched bool
	closed  bool
}

// CreateChangeset opens a changeset that reads staged values from row.
// row.Fields selects the fields every change writes and must not change
// while the changeset is open.
func (c *Container) CreateChangeset(ctx context.Context, row *model.RowBuffer, bulk bool) (*Changeset, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	if err := c.checkRow(row); err != nil {
		return nil, err
	}
	if err := c.requireAll(ctx); err != nil {
		return nil, err
	}

	release := c.lock.RLock()
	if err := c.check(); err != nil {
		release()
		return nil, err
	}
	st := c.state.Load()
	cols := make([]column.Store, len(row.Fields))
	for i, f := range row.Fields {
		cols[i] = st.columns[f].store
	}
	return &Changeset{
		c:       c,
		st:      st,
		row:     row,
		bulk:    bulk,
		columns: cols,
		release: release,
		start:   time.Now(),
	}, nil
}

// Reserve grows storage ahead of n new documents. Only bulk changesets
// reserve.
func (cs *Changeset) Reserve(n int) error {
	if cs.closed {
		return ErrChangesetClosed
	}
	if !cs.bulk {
		return fmt.Errorf("%w: reserve on a non-bulk changeset", ErrInvalidArgument)
	}
	if n < 0 {
		return fmt.Errorf("%w: reserve %d", ErrInvalidArgument, n)
	}
	return cs.c.expandStorage(cs.st, cs.c.SlotCount()+n)
}

// AddChange applies the staged row according to row.Change.
//
// Inserting an existing key updates it; updating or deleting a missing
// key does nothing and is not counted.
func (cs *Changeset) AddChange() error {
	if cs.closed {
		return ErrChangesetClosed
	}
	c := cs.c
	if err := c.check(); err != nil {
		return err
	}
	row := cs.row
	if err := model.ValidateKey(row.Key); err != nil {
		return err
	}

	switch row.Change {
	case model.ChangeInsert:
		_, created, err := c.addDocument(cs.st, row.Key, cs.fill)
		if err != nil {
			return err
		}
		cs.mutated++
		cs.touched = true
		if created {
			cs.structural = true
		}
		c.opts.metrics.OnInsert()
	case model.ChangeUpdate:
		if !cs.update() {
			return nil
		}
		cs.mutated++
		cs.touched = true
		c.opts.metrics.OnUpdate()
	case model.ChangeDelete:
		if !c.deleteDocument(cs.st, row.Key) {
			return nil
		}
		cs.mutated++
		cs.structural = true
		c.opts.metrics.OnDelete()
	default:
		return fmt.Errorf("%w: change type %s", ErrInvalidArgument, row.Change)
	}
	return nil
}

func (cs *Changeset) update() bool {
	slot, ok := cs.st.keys.TryGet(cs.row.Key)
	if !ok {
		return false
	}
	mu := cs.c.stripe(slot)
	mu.Lock()
	defer mu.Unlock()
	if !cs.st.validity.SafeGet(slot) {
		return false
	}
	cs.fill(slot)
	return true
}

// fill copies the staged fields into slot. The row stripe is held.
func (cs *Changeset) fill(slot int) {
	for i, f := range cs.row.Fields {
		col := cs.columns[i]
		if cs.row.IsNull(f) {
			col.Clear(slot)
			continue
		}
		col.AssignFromRow(slot, cs.row, f)
	}
}

// Mutated returns the number of rows changed so far.
func (cs *Changeset) Mutated() int { return cs.mutated }

// Apply closes the changeset and returns the number of mutated rows.
func (cs *Changeset) Apply() (int, error) {
	if cs.closed {
		return 0, ErrChangesetClosed
	}
	cs.finish("applied")
	return cs.mutated, nil
}

// Discard closes the changeset. Changes already added stay in place.
func (cs *Changeset) Discard() error {
	if cs.closed {
		return ErrChangesetClosed
	}
	cs.finish("discarded")
	return nil
}

func (cs *Changeset) finish(outcome string) {
	cs.closed = true
	c := cs.c
	switch {
	case cs.structural:
		c.sorts.InvalidateAll()
	case cs.touched:
		for _, f := range cs.row.Fields {
			c.sorts.Invalidate(f)
		}
	}
	cs.release()

	elapsed := time.Since(cs.start)
	c.opts.metrics.OnChangeset(cs.mutated, elapsed)
	c.logger.Debug("changeset "+outcome, "mutated", cs.mutated, "bulk", cs.bulk, "duration", elapsed)
}
