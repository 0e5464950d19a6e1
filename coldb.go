package coldb

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/coldb/internal/engine"
	"github.com/hupe1980/coldb/internal/persist"
	"github.com/hupe1980/coldb/internal/resource"
	"github.com/hupe1980/coldb/model"
)

// Changeset stages inserts, updates and deletes against one container.
// See Container.CreateChangeset.
type Changeset = engine.Changeset

// ContainerStats is a point-in-time summary of a container.
type ContainerStats = engine.Stats

// Container holds the documents of one document type.
type Container struct {
	*engine.Container
}

// TryAddDocument returns the slot of key, allocating one if the key is new.
// A tombstoned key is revived with all fields null.
func (c *Container) TryAddDocument(key []byte) (int, error) {
	slot, err := c.Container.TryAddDocument(key)
	return slot, translateError(err, key)
}

// Delete tombstones the document with key and reports whether a live
// document was removed.
func (c *Container) Delete(ctx context.Context, key []byte) (bool, error) {
	ok, err := c.Container.Delete(ctx, key)
	return ok, translateError(err, key)
}

// Store is a set of containers, one per document type, sharing a memory
// budget and an optional blob store.
type Store struct {
	opts   options
	logger *Logger
	rc     *resource.Controller
	dir    *persist.Dir

	containers *xsync.MapOf[string, *Container]

	mu sync.Mutex // serializes container creation; guards persisted
	// persisted lists the document types found in the root descriptor.
	persisted map[string]bool

	closed atomic.Bool
}

// Open creates a store. With a blob store configured, the root descriptor
// is read to learn which document types exist; containers themselves are
// loaded on first use through Documents.
func Open(ctx context.Context, optFns ...Option) (*Store, error) {
	o := applyOptions(optFns)
	s := &Store{
		opts:   o,
		logger: o.logger,
		rc: resource.NewController(resource.Config{
			MemoryLimitBytes:     o.memoryLimit,
			MaxBackgroundWorkers: o.backgroundWorkers,
			IOLimitBytesPerSec:   o.ioLimit,
		}),
		containers: xsync.NewMapOf[string, *Container](),
		persisted:  make(map[string]bool),
	}
	if o.store == nil {
		return s, nil
	}

	s.dir = persist.NewDir(o.store,
		persist.WithCompression(o.compression),
		persist.WithResourceController(s.rc),
	)
	root, err := s.dir.ReadRoot(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		s.logger.InfoContext(ctx, "opened empty store")
	case err != nil:
		return nil, err
	default:
		for _, name := range root.DocumentTypes {
			s.persisted[name] = true
		}
		s.logger.InfoContext(ctx, "opened store", "document_types", len(root.DocumentTypes))
	}
	return s, nil
}

func (s *Store) engineOptions() []engine.Option {
	opts := []engine.Option{
		engine.WithLogger(s.logger.Logger),
		engine.WithResourceController(s.rc),
		engine.WithMetricsObserver(observer{mc: s.opts.metricsCollector}),
		engine.WithGrowIncrement(s.opts.growIncrement),
		engine.WithFlushConcurrency(s.opts.flushConcurrency),
		engine.WithEagerLoad(s.opts.eagerLoad),
	}
	if s.opts.growTimeout != nil {
		opts = append(opts, engine.WithGrowTimeout(*s.opts.growTimeout))
	}
	if s.dir != nil {
		opts = append(opts, engine.WithDir(s.dir))
	}
	return opts
}

// Documents returns the container of schema.Name, creating it or loading
// it from the blob store on first use. Asking again with a different
// schema fails with ErrSchemaMismatch.
func (s *Store) Documents(ctx context.Context, schema *model.Schema) (*Container, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if c, ok := s.containers.Load(schema.Name); ok {
		return c, sameSchema(c.Schema(), schema)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.containers.Load(schema.Name); ok {
		return c, sameSchema(c.Schema(), schema)
	}

	var (
		ec  *engine.Container
		err error
	)
	if s.persisted[schema.Name] {
		ec, err = engine.Load(ctx, schema, s.engineOptions()...)
		slots := 0
		if ec != nil {
			slots = ec.SlotCount()
		}
		s.logger.LogLoad(ctx, schema.Name, slots, err)
	} else {
		ec, err = engine.New(schema, s.engineOptions()...)
		if err == nil {
			s.logger.WithDocumentType(schema.Name).DebugContext(ctx, "container created", "fields", len(schema.Fields))
		}
	}
	if err != nil {
		return nil, err
	}
	c := &Container{Container: ec}
	s.containers.Store(schema.Name, c)
	return c, nil
}

func sameSchema(have, want *model.Schema) error {
	if !slices.Equal(have.Fields, want.Fields) {
		return ErrSchemaMismatch
	}
	return nil
}

// Container returns an open container by document type.
func (s *Store) Container(name string) (*Container, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if c, ok := s.containers.Load(name); ok {
		return c, nil
	}
	return nil, &ErrUnknownDocumentType{Name: name}
}

// DocumentTypes returns the names of open and persisted document types.
func (s *Store) DocumentTypes() []string {
	s.mu.Lock()
	names := make([]string, 0, len(s.persisted)+s.containers.Size())
	for name := range s.persisted {
		names = append(names, name)
	}
	s.mu.Unlock()
	s.containers.Range(func(name string, _ *Container) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return slices.Compact(names)
}

func (s *Store) open() []*Container {
	var cs []*Container
	s.containers.Range(func(_ string, c *Container) bool {
		cs = append(cs, c)
		return true
	})
	return cs
}

// Flush writes every open container, then the root descriptor. Containers
// are flushed concurrently.
func (s *Store) Flush(ctx context.Context) (err error) {
	if s.closed.Load() {
		return ErrClosed
	}
	if s.dir == nil {
		return ErrNotPersistent
	}
	start := time.Now()
	cs := s.open()
	defer func() {
		s.logger.LogFlush(ctx, len(cs), time.Since(start), err)
	}()

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range cs {
		g.Go(func() error {
			if err := c.Flush(gctx); err != nil {
				if errors.Is(err, ErrBroken) {
					s.logger.LogBroken(gctx, c.Name(), err)
				}
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	names := s.DocumentTypes()
	if err := s.dir.WriteJSON(ctx, persist.RootName, persist.NewRoot(names)); err != nil {
		return err
	}
	s.mu.Lock()
	for _, name := range names {
		s.persisted[name] = true
	}
	s.mu.Unlock()
	return nil
}

// Compact compacts every open container concurrently.
func (s *Store) Compact(ctx context.Context) (err error) {
	if s.closed.Load() {
		return ErrClosed
	}
	cs := s.open()
	var before, after atomic.Int64
	defer func() {
		s.logger.LogCompaction(ctx, int(before.Load()), int(after.Load()), err)
	}()

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range cs {
		g.Go(func() error {
			before.Add(int64(c.SlotCount()))
			if err := c.Compact(gctx); err != nil {
				if errors.Is(err, ErrBroken) {
					s.logger.LogBroken(gctx, c.Name(), err)
				}
				return err
			}
			after.Add(int64(c.SlotCount()))
			return nil
		})
	}
	return g.Wait()
}

// Stats is a point-in-time summary of a store.
type Stats struct {
	Containers  []ContainerStats
	MemoryUsed  int64
	MemoryLimit int64
}

// Stats returns the stats of every open container, ordered by name.
func (s *Store) Stats() Stats {
	st := Stats{
		MemoryUsed:  s.rc.MemoryUsage(),
		MemoryLimit: s.rc.MemoryLimit(),
	}
	for _, c := range s.open() {
		st.Containers = append(st.Containers, c.Stats())
	}
	sort.Slice(st.Containers, func(i, j int) bool {
		return st.Containers[i].DocumentType < st.Containers[j].DocumentType
	})
	return st
}

// Close closes every container. Unflushed changes are lost. Close is
// idempotent.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	for _, c := range s.open() {
		errs = append(errs, c.Close())
	}
	s.containers.Clear()
	return errors.Join(errs...)
}
