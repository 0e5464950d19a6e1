package engine

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/coldb/internal/gate"
	"github.com/hupe1980/coldb/internal/persist"
	"github.com/hupe1980/coldb/model"
)

// Load hydrates a container from the directory set with WithDir.
//
// Keys and validity are read eagerly; columns stay on disk until required
// unless WithEagerLoad is set. Persisted fields missing from the schema are
// skipped, schema fields missing on disk start empty. Any other failure
// aborts the load.
func Load(ctx context.Context, schema *model.Schema, opts ...Option) (c *Container, err error) {
	c, err = New(schema, opts...)
	if err != nil {
		return nil, err
	}
	dir := c.opts.dir
	if dir == nil {
		return nil, ErrNotPersistent
	}

	start := time.Now()
	defer func() {
		c.opts.metrics.OnLoad(time.Since(start), c.persisted, err)
		if err != nil {
			_ = c.Close()
			c = nil
		}
	}()

	desc, err := dir.ReadDescriptor(ctx, schema.Name)
	if err != nil {
		return c, err
	}
	count := desc.SlotCount
	st := c.state.Load()
	if err := c.expandStorage(st, count); err != nil {
		return c, err
	}

	err = dir.ReadStream(ctx, persist.KeysName(schema.Name), persist.KindKeys, func(r io.Reader, h persist.Header) error {
		if err := checkCount(h, count); err != nil {
			return err
		}
		return st.keys.Read(r, count)
	})
	if err != nil {
		return c, err
	}
	err = dir.ReadStream(ctx, persist.ValidityName(schema.Name), persist.KindValidity, func(r io.Reader, h persist.Header) error {
		if err := checkCount(h, count); err != nil {
			return err
		}
		_, err := st.validity.Read(r, count)
		return err
	})
	if err != nil {
		return c, err
	}
	c.nextSlot.Store(int64(count))
	c.persisted = count
	for slot := range count {
		if st.keys.Key(slot) == "" {
			c.retired.Add(1)
		}
	}

	onDisk := make(map[uint32]model.Field, len(desc.Fields))
	for _, fd := range desc.Fields {
		f, err := fd.Field()
		if err != nil {
			return c, err
		}
		if _, ok := schema.Ordinal(f.ID); !ok {
			c.logger.Warn("skipping persisted field not in schema", "field", f.Name, "id", f.ID)
			continue
		}
		onDisk[f.ID] = f
	}
	for i, cs := range st.columns {
		f, ok := onDisk[cs.field.ID]
		switch {
		case !ok:
			continue
		case f.Type != cs.field.Type:
			c.logger.Warn("skipping persisted field with changed type", "field", cs.field.Name, "persisted", f.Type, "schema", cs.field.Type)
			continue
		}
		// Files are named after the persisted field; a renamed field keeps its data.
		cs.field = f
		cs.pending = true
		if c.opts.eagerLoad {
			c.beginLoad(st, i)
		}
	}

	c.logger.Info("container loaded", "slots", count, "live", desc.LiveCount, "fields", len(onDisk), "duration", time.Since(start))
	return c, nil
}

func checkCount(h persist.Header, want int) error {
	if h.Count != uint64(want) {
		return fmt.Errorf("%w: slot count %d, descriptor says %d", persist.ErrMalformedStream, h.Count, want)
	}
	return nil
}

func (c *Container) loadColumn(ctx context.Context, cs *columnState) error {
	dir := c.opts.dir
	count := c.persisted
	if _, err := cs.store.TryEnsureCapacity(c.Capacity(), gate.Infinite); err != nil {
		return err
	}
	err := dir.ReadStream(ctx, persist.NotNullsName(c.schema.Name, cs.field), persist.KindNotNulls, func(r io.Reader, h persist.Header) error {
		if err := checkCount(h, count); err != nil {
			return err
		}
		_, err := cs.store.NotNulls().Read(r, count)
		return err
	})
	if err != nil {
		return err
	}
	return dir.ReadStream(ctx, persist.DataName(c.schema.Name, cs.field), persist.KindData, func(r io.Reader, h persist.Header) error {
		if err := checkCount(h, count); err != nil {
			return err
		}
		_, err := cs.store.Read(r, count)
		return err
	})
}

// Flush writes the container to its directory under the structure lock in
// write mode. Column files are written concurrently, each NotNulls file
// before its data file; the descriptor is written last.
func (c *Container) Flush(ctx context.Context) (err error) {
	if err := c.check(); err != nil {
		return err
	}
	dir := c.opts.dir
	if dir == nil {
		return ErrNotPersistent
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
	st := c.state.Load()
	count := c.SlotCount()
	defer func() {
		c.opts.metrics.OnFlush(time.Since(start), count, err)
	}()
	if err := c.expandStorage(st, count); err != nil {
		return err
	}

	name := c.schema.Name
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.flushConcurrency)

	written := map[string]bool{
		persist.KeysName(name):     true,
		persist.ValidityName(name): true,
		persist.StatsName(name):    true,
	}
	fields := make([]model.Field, 0, len(st.columns))
	for i, cs := range st.columns {
		f := c.schema.Fields[i]
		fields = append(fields, f)
		written[persist.NotNullsName(name, f)] = true
		written[persist.DataName(name, f)] = true

		g.Go(func() error {
			err := dir.WriteStream(gctx, persist.NotNullsName(name, f), persist.KindNotNulls, count, func(w io.Writer) error {
				_, err := cs.store.NotNulls().Write(w, count)
				return err
			})
			if err != nil {
				return err
			}
			return dir.WriteStream(gctx, persist.DataName(name, f), persist.KindData, count, func(w io.Writer) error {
				_, err := cs.store.Write(w, count)
				return err
			})
		})
	}
	g.Go(func() error {
		return dir.WriteStream(gctx, persist.KeysName(name), persist.KindKeys, count, func(w io.Writer) error {
			_, err := st.keys.Write(w, count)
			return err
		})
	})
	g.Go(func() error {
		return dir.WriteStream(gctx, persist.ValidityName(name), persist.KindValidity, count, func(w io.Writer) error {
			_, err := st.validity.Write(w, count)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return err
	}

	live := st.validity.Count(count)
	desc := persist.NewDescriptor(name, count, live, dir.Compression(), fields)
	if err := dir.WriteJSON(ctx, persist.StatsName(name), desc); err != nil {
		return err
	}
	// Columns are now named after the schema.
	for i, cs := range st.columns {
		cs.field = fields[i]
	}
	c.persisted = count

	removed, err := c.pruneStale(ctx, written)
	if err != nil {
		return err
	}
	c.logger.Info("container flushed", "slots", count, "live", live, "fields", len(fields), "pruned", len(removed), "duration", time.Since(start))
	return nil
}

// pruneStale removes column files of schema fields that were written under
// a different name or type. Files of fields outside the schema are kept.
func (c *Container) pruneStale(ctx context.Context, written map[string]bool) ([]string, error) {
	dir := c.opts.dir
	names, err := dir.Store().List(ctx, c.schema.Name+"/")
	if err != nil {
		return nil, err
	}
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		if written[n] {
			keep[n] = true
			continue
		}
		cf, err := persist.ParseColumnName(n)
		if err != nil {
			keep[n] = true
			continue
		}
		if _, ok := c.schema.Ordinal(cf.Field.ID); !ok {
			keep[n] = true
		}
	}
	return dir.Prune(ctx, c.schema.Name+"/", keep)
}
