package arena

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

// MemoryAcquirer is an interface for acquiring memory.
type MemoryAcquirer interface {
	AcquireMemory(ctx context.Context, amount int64) error
	ReleaseMemory(amount int64)
}

var (
	// ErrClosed is returned when allocating from a freed arena.
	ErrClosed = errors.New("arena: closed")
	// ErrInvalidSize is returned for non-positive block lengths.
	ErrInvalidSize = errors.New("arena: invalid block size")
)

// Stats tracks arena memory usage.
type Stats struct {
	BlocksAllocated uint64 // Current: live blocks
	BytesReserved   uint64 // Current: bytes charged against the budget
	TotalAllocs     uint64 // Historical: total block allocations
	Generation      uint32
}

type atomicStats struct {
	BlocksAllocated atomic.Uint64
	BytesReserved   atomic.Uint64
	TotalAllocs     atomic.Uint64
}

// Arena hands out typed blocks and accounts for their size.
//
// Alloc is safe for concurrent use. Free must not race with Alloc.
type Arena struct {
	mu         sync.RWMutex
	closed     bool
	stats      atomicStats
	generation atomic.Uint32
	acquirer   MemoryAcquirer
}

// Option is a configuration option for Arena.
type Option func(*Arena)

// WithMemoryAcquirer sets the memory acquirer for the arena.
func WithMemoryAcquirer(acquirer MemoryAcquirer) Option {
	return func(a *Arena) {
		a.acquirer = acquirer
	}
}

// New creates an empty arena.
func New(opts ...Option) *Arena {
	a := &Arena{}
	for _, opt := range opts {
		opt(a)
	}
	// Generation 0 is reserved for "no arena".
	a.generation.Store(1)
	return a
}

// Generation returns the current generation of the arena.
func (a *Arena) Generation() uint32 {
	return a.generation.Load()
}

// Alloc allocates a zeroed block of n elements of T from a.
func Alloc[T any](ctx context.Context, a *Arena, n int) ([]T, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, n)
	}
	var zero T
	size := int64(unsafe.Sizeof(zero)) * int64(n)
	if err := a.reserve(ctx, size); err != nil {
		return nil, err
	}
	return make([]T, n), nil
}

func (a *Arena) reserve(ctx context.Context, size int64) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	if a.acquirer != nil {
		if err := a.acquirer.AcquireMemory(ctx, size); err != nil {
			return err
		}
	}
	a.stats.BlocksAllocated.Add(1)
	a.stats.BytesReserved.Add(uint64(size))
	a.stats.TotalAllocs.Add(1)
	return nil
}

// Stats returns the current arena statistics.
func (a *Arena) Stats() Stats {
	return Stats{
		BlocksAllocated: a.stats.BlocksAllocated.Load(),
		BytesReserved:   a.stats.BytesReserved.Load(),
		TotalAllocs:     a.stats.TotalAllocs.Load(),
		Generation:      a.generation.Load(),
	}
}

// Free returns the arena's budget to the acquirer and invalidates it.
// Blocks handed out earlier remain readable until their owners drop them;
// further allocations fail with ErrClosed. Free is idempotent.
func (a *Arena) Free() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true

	if a.acquirer != nil {
		if reserved := a.stats.BytesReserved.Load(); reserved > 0 {
			a.acquirer.ReleaseMemory(int64(reserved))
		}
	}

	a.generation.Add(1)
	a.stats.BlocksAllocated.Store(0)
	a.stats.BytesReserved.Store(0)
}

// Closed reports whether Free has been called.
func (a *Arena) Closed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.closed
}

func (a *Arena) String() string {
	stats := a.Stats()
	return fmt.Sprintf(
		"Arena{gen: %d, blocks: %d, reserved: %.2f MB, allocs: %d}",
		stats.Generation,
		stats.BlocksAllocated,
		float64(stats.BytesReserved)/(1024*1024),
		stats.TotalAllocs,
	)
}
