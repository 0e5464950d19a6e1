package engine

import (
	"context"
	"iter"

	"github.com/RoaringBitmap/roaring/v2"
)

// Scan yields the slots of live documents in slot order.
//
// The structure lock is held in read mode while the iteration runs; the
// loop body may read rows and open changesets, but must not request a sort
// index. The context is checked between rows.
func (c *Container) Scan(ctx context.Context) iter.Seq2[int, error] {
	return func(yield func(int, error) bool) {
		if err := c.check(); err != nil {
			yield(-1, err)
			return
		}
		release := c.lock.RLock()
		defer release()

		st := c.state.Load()
		limit := c.limit()
		for slot := st.validity.NextSet(0, limit); slot >= 0; slot = st.validity.NextSet(slot+1, limit) {
			if err := ctx.Err(); err != nil {
				yield(-1, err)
				return
			}
			if !yield(slot, nil) {
				return
			}
		}
	}
}

// ScanSorted yields live slots ordered by field. Nulls come last in both
// directions.
func (c *Container) ScanSorted(ctx context.Context, field int, descending bool) iter.Seq2[int, error] {
	return func(yield func(int, error) bool) {
		// The snapshot is fetched before the read lock; a rebuild needs write mode.
		snap, err := c.SortIndex(ctx, field)
		if err != nil {
			yield(-1, err)
			return
		}
		release := c.lock.RLock()
		defer release()

		slots := snap.Ascending()
		if descending {
			slots = snap.Descending()
		}
		st := c.state.Load()
		for _, slot := range slots {
			if err := ctx.Err(); err != nil {
				yield(-1, err)
				return
			}
			// Deletes that raced the snapshot leave dead slots behind.
			if !st.validity.SafeGet(slot) {
				continue
			}
			if !yield(slot, nil) {
				return
			}
		}
	}
}

// ScanKeys yields the slots of the live documents named by keys. Missing
// and deleted keys are skipped and each slot is yielded once. With ordered
// set, slots come in slot order; otherwise in the order of keys.
func (c *Container) ScanKeys(ctx context.Context, keys [][]byte, ordered bool) iter.Seq2[int, error] {
	return func(yield func(int, error) bool) {
		if err := c.check(); err != nil {
			yield(-1, err)
			return
		}
		release := c.lock.RLock()
		defer release()

		st := c.state.Load()
		seen := roaring.New()
		if ordered {
			for _, k := range keys {
				if slot, ok := st.keys.TryGet(k); ok {
					seen.Add(uint32(slot))
				}
			}
			it := seen.Iterator()
			for it.HasNext() {
				if err := ctx.Err(); err != nil {
					yield(-1, err)
					return
				}
				slot := int(it.Next())
				if !st.validity.SafeGet(slot) {
					continue
				}
				if !yield(slot, nil) {
					return
				}
			}
			return
		}

		for _, k := range keys {
			if err := ctx.Err(); err != nil {
				yield(-1, err)
				return
			}
			slot, ok := st.keys.TryGet(k)
			if !ok || !seen.CheckedAdd(uint32(slot)) || !st.validity.SafeGet(slot) {
				continue
			}
			if !yield(slot, nil) {
				return
			}
		}
	}
}
