// Package engine implements the document container: the per document type
// owner of columns, keys, validity and sort indexes.
//
// # Concurrency
//
// Every container has a reentrant structure lock (internal/rwlock).
// Changesets, enumerators, row reads and deletes hold it in read mode.
// Growing the storage to fit a new slot also happens in read mode; each
// column, the key backbone and the validity bitmap serialize their own
// growth. Write mode is reserved for whole-container work: flush,
// compaction and sort index rebuilds.
//
// Values of one slot are written under one of 64 row stripes, so readers
// of a row never observe a half-applied change and concurrent inserts of
// the same key leave exactly one writer's values visible.
//
// # Lifecycle
//
// A container starts empty (New) or hydrated from a flushed directory
// (Load). Loaded columns stay on disk until first required; see
// BeginLoadColumn and RequireColumn. A structural operation that fails
// partway marks the container broken and every later call returns
// ErrBroken.
package engine
