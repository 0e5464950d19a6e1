package engine

import (
	"context"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/coldb/internal/gate"
)

// Compact drops tombstoned and retired slots by copying live documents into
// fresh storage, renumbering them densely in slot order. Slot numbers handed
// out before Compact are invalid afterwards and every sort index is
// invalidated.
//
// A failure while copying breaks the container; the old storage is kept so
// reads still see the last consistent state.
func (c *Container) Compact(ctx context.Context) error {
	if err := c.check(); err != nil {
		return err
	}
	if err := c.requireAll(ctx); err != nil {
		return err
	}
	release := c.lock.Lock()
	defer release()
	if err := c.check(); err != nil {
		return err
	}

	start := time.Now()
	old := c.state.Load()
	limit := c.limit()

	live := roaring.New()
	for slot := old.validity.NextSet(0, limit); slot >= 0; slot = old.validity.NextSet(slot+1, limit) {
		live.Add(uint32(slot))
	}
	n := int(live.GetCardinality())
	slots := live.ToArray()

	next, err := newStorage(c.schema, c.newArena())
	if err != nil {
		return err
	}
	inc := c.opts.growIncrement
	capacity := (n + inc - 1) / inc * inc

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.flushConcurrency)
	g.Go(func() error {
		if _, err := next.keys.TryEnsureCapacity(capacity, gate.Infinite); err != nil {
			return err
		}
		if _, err := next.validity.TryEnsureCapacity(capacity, gate.Infinite); err != nil {
			return err
		}
		for to, from := range slots {
			k := old.keys.Key(int(from))
			next.keys.SetKey(to, k)
			next.keys.TryInsert(k, to)
			next.validity.Set(to)
		}
		return nil
	})
	for i, cs := range old.columns {
		dst := next.columns[i].store
		g.Go(func() error {
			if _, err := dst.TryEnsureCapacity(capacity, gate.Infinite); err != nil {
				return err
			}
			for to, from := range slots {
				if to%4096 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				if err := cs.store.CopyTo(dst, int(from), to); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		next.arena.Free()
		if ctx.Err() != nil {
			return err
		}
		return c.fail("compact", err)
	}

	c.state.Store(next)
	c.nextSlot.Store(int64(n))
	c.capacity.Store(int64(capacity))
	dropped := c.retired.Swap(0)
	old.arena.Free()
	c.sorts.InvalidateAll()

	c.logger.Info("container compacted", "live", n, "slots_before", limit, "retired", dropped, "capacity", capacity, "duration", time.Since(start))
	return nil
}
