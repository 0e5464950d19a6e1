// Package expandable implements a block-allocated array that grows without
// copying its elements.
package expandable

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/hupe1980/coldb/internal/arena"
	"github.com/hupe1980/coldb/internal/gate"
)

const (
	// largeObjectBytes is the runtime's large-object threshold. Blocks stay
	// below it so they are allocated from size classes.
	largeObjectBytes = 32 << 10

	// blockAlign keeps block boundaries on bit vector word halves.
	blockAlign = 32
)

// ErrNegativeCapacity is returned when a negative capacity is requested.
var ErrNegativeCapacity = errors.New("expandable: negative capacity")

// ElementsPerBlock returns the block length used for elements of T.
func ElementsPerBlock[T any]() int {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size == 0 {
		size = 1
	}
	n := (largeObjectBytes - 1) / size
	n -= n % blockAlign
	return max(n, blockAlign)
}

type directory[T any] struct {
	blocks [][]T
}

// Array is a growable array of T with O(1) indexed access.
//
// Elements live in fixed-size blocks. Growing appends blocks and publishes
// a new directory; blocks are never moved, so concurrent readers of slots
// below the old capacity are unaffected by growth. Element reads and writes
// are not synchronized.
type Array[T any] struct {
	dir      atomic.Pointer[directory[T]]
	grow     *gate.Gate
	arena    *arena.Arena
	perBlock int
}

// New creates an empty array drawing blocks from a. A nil arena gives the
// array a private one.
func New[T any](a *arena.Arena) *Array[T] {
	if a == nil {
		a = arena.New()
	}
	arr := &Array[T]{
		grow:     gate.New(),
		arena:    a,
		perBlock: ElementsPerBlock[T](),
	}
	arr.dir.Store(&directory[T]{})
	return arr
}

// BlockOf returns the block holding slot.
func (a *Array[T]) BlockOf(slot int) int { return slot / a.perBlock }

// LocalIndex returns the position of slot inside its block.
func (a *Array[T]) LocalIndex(slot int) int { return slot % a.perBlock }

// PerBlock returns the number of elements per block.
func (a *Array[T]) PerBlock() int { return a.perBlock }

// Capacity returns the number of addressable elements.
func (a *Array[T]) Capacity() int {
	return len(a.dir.Load().blocks) * a.perBlock
}

// Get returns the element at slot. Slot must be below Capacity.
func (a *Array[T]) Get(slot int) T {
	return a.dir.Load().blocks[slot/a.perBlock][slot%a.perBlock]
}

// Set stores v at slot. Slot must be below Capacity.
func (a *Array[T]) Set(slot int, v T) {
	a.dir.Load().blocks[slot/a.perBlock][slot%a.perBlock] = v
}

// Ref returns a pointer to the element at slot.
func (a *Array[T]) Ref(slot int) *T {
	return &a.dir.Load().blocks[slot/a.perBlock][slot%a.perBlock]
}

// EnsureCapacity grows the array to hold at least capacity elements,
// waiting for concurrent growers.
func (a *Array[T]) EnsureCapacity(ctx context.Context, capacity int) error {
	if capacity < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeCapacity, capacity)
	}
	if capacity <= a.Capacity() {
		return nil
	}
	if err := a.grow.Enter(ctx); err != nil {
		return err
	}
	defer a.grow.Exit()
	return a.growLocked(ctx, capacity)
}

// TryEnsureCapacity grows the array to hold at least capacity elements.
// It returns false without growing if the growth lock is not acquired
// within timeout (gate.NoWait tries once, gate.Infinite blocks).
func (a *Array[T]) TryEnsureCapacity(capacity int, timeout time.Duration) (bool, error) {
	if capacity < 0 {
		return false, fmt.Errorf("%w: %d", ErrNegativeCapacity, capacity)
	}
	if capacity <= a.Capacity() {
		return true, nil
	}
	if !a.grow.TryEnter(timeout) {
		return false, nil
	}
	defer a.grow.Exit()
	if err := a.growLocked(context.Background(), capacity); err != nil {
		return false, err
	}
	return true, nil
}

func (a *Array[T]) growLocked(ctx context.Context, capacity int) error {
	old := a.dir.Load()
	need := (capacity + a.perBlock - 1) / a.perBlock
	if need <= len(old.blocks) {
		return nil
	}

	blocks := make([][]T, len(old.blocks), need)
	copy(blocks, old.blocks)
	for len(blocks) < need {
		b, err := arena.Alloc[T](ctx, a.arena, a.perBlock)
		if err != nil {
			return fmt.Errorf("expandable: grow to %d: %w", capacity, err)
		}
		blocks = append(blocks, b)
	}

	// The atomic store orders every block write above before publication.
	a.dir.Store(&directory[T]{blocks: blocks})
	return nil
}
