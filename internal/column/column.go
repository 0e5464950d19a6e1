// Package column implements per-field column storage.
//
// A column pairs an expandable value array with a NotNulls bit vector. The
// value array uses one of four storage categories (see model.Category); the
// category, and with it every accessor, is chosen once by New.
package column

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/coldb/internal/arena"
	"github.com/hupe1980/coldb/internal/bitset"
	"github.com/hupe1980/coldb/internal/expandable"
	"github.com/hupe1980/coldb/internal/gate"
	"github.com/hupe1980/coldb/model"
)

var (
	// ErrMalformedStream is returned when persisted column data cannot be decoded.
	ErrMalformedStream = errors.New("column: malformed stream")
	// ErrTypeMismatch is returned when copying between columns of different types.
	ErrTypeMismatch = errors.New("column: type mismatch")
)

// Store is one field's storage.
//
// Value accessors are not synchronized; callers serialize writers of a
// slot. NotNulls bits are updated with CAS so neighbouring slots may be
// written concurrently.
type Store interface {
	Type() model.ScalarType
	Category() model.Category
	NotNulls() *bitset.BitVector
	Capacity() int

	// TryEnsureCapacity grows values and NotNulls to at least capacity.
	TryEnsureCapacity(capacity int, timeout time.Duration) (bool, error)

	IsNull(slot int) bool
	// AssignFromRow copies field from row into slot and marks it not null.
	// The row value must not be null.
	AssignFromRow(slot int, row *model.RowBuffer, field int)
	// AssignToRow copies slot into field of row. The slot must not be null.
	AssignToRow(slot int, row *model.RowBuffer, field int)
	// Clear marks slot null and drops its value.
	Clear(slot int)
	// Compare orders the values at two non-null slots.
	Compare(a, b int) int
	// CopyTo copies slot from this column into slot to of dst.
	CopyTo(dst Store, from, to int) error

	// Write streams the non-null values of slots [0, count).
	Write(w io.Writer, count int) (int64, error)
	// Read loads values for slots [0, count) whose NotNulls bit is set.
	// NotNulls must be loaded first.
	Read(r io.Reader, count int) (int64, error)
}

// New creates an empty column for t, drawing blocks from a.
func New(t model.ScalarType, a *arena.Arena) (Store, error) {
	switch t.Category() {
	case model.CategoryFixed8:
		return newColumn(t, a, fixed8Strategy(t)), nil
	case model.CategoryFixed16:
		return newColumn(t, a, fixed16Strategy(t)), nil
	case model.CategoryChars:
		return newColumn(t, a, charsStrategy()), nil
	case model.CategoryBytes:
		return newColumn(t, a, bytesStrategy()), nil
	default:
		return nil, fmt.Errorf("column: unsupported type %s", t)
	}
}

// Column is the Store implementation for one storage representation.
type Column[T any] struct {
	typ      model.ScalarType
	values   *expandable.Array[T]
	notNulls *bitset.BitVector
	s        strategy[T]
}

func newColumn[T any](t model.ScalarType, a *arena.Arena, s strategy[T]) *Column[T] {
	return &Column[T]{
		typ:      t,
		values:   expandable.New[T](a),
		notNulls: bitset.New(0),
		s:        s,
	}
}

func (c *Column[T]) Type() model.ScalarType      { return c.typ }
func (c *Column[T]) Category() model.Category    { return c.typ.Category() }
func (c *Column[T]) NotNulls() *bitset.BitVector { return c.notNulls }

// Capacity returns the smaller of the value and NotNulls capacities.
func (c *Column[T]) Capacity() int {
	return min(c.values.Capacity(), c.notNulls.Capacity())
}

func (c *Column[T]) TryEnsureCapacity(capacity int, timeout time.Duration) (bool, error) {
	ok, err := c.values.TryEnsureCapacity(capacity, timeout)
	if err != nil || !ok {
		return false, err
	}
	return c.notNulls.TryEnsureCapacity(capacity, timeout)
}

func (c *Column[T]) IsNull(slot int) bool { return !c.notNulls.SafeGet(slot) }

// Value returns the value at slot and whether it is set.
func (c *Column[T]) Value(slot int) (T, bool) {
	if !c.notNulls.SafeGet(slot) {
		var zero T
		return zero, false
	}
	return c.values.Get(slot), true
}

func (c *Column[T]) AssignFromRow(slot int, row *model.RowBuffer, field int) {
	c.values.Set(slot, c.s.load(row, field))
	c.notNulls.SafeSet(slot)
}

func (c *Column[T]) AssignToRow(slot int, row *model.RowBuffer, field int) {
	c.s.store(row, field, c.values.Get(slot))
}

func (c *Column[T]) Clear(slot int) {
	if slot >= c.Capacity() {
		return
	}
	c.notNulls.SafeClear(slot)
	var zero T
	c.values.Set(slot, zero)
}

func (c *Column[T]) Compare(a, b int) int {
	return c.s.compare(c.values.Get(a), c.values.Get(b))
}

func (c *Column[T]) CopyTo(dst Store, from, to int) error {
	d, ok := dst.(*Column[T])
	if !ok || d.typ != c.typ {
		return fmt.Errorf("%w: %s into %s", ErrTypeMismatch, c.typ, dst.Type())
	}
	if !c.notNulls.SafeGet(from) {
		d.Clear(to)
		return nil
	}
	d.values.Set(to, c.values.Get(from))
	d.notNulls.SafeSet(to)
	return nil
}

func (c *Column[T]) Write(w io.Writer, count int) (int64, error) {
	if count < 0 || count > c.Capacity() {
		return 0, fmt.Errorf("column: write of %d slots exceeds capacity %d", count, c.Capacity())
	}
	bw := bufio.NewWriterSize(w, 64<<10)
	var (
		n   int64
		buf []byte
	)
	for slot := c.notNulls.NextSet(0, count); slot >= 0; slot = c.notNulls.NextSet(slot+1, count) {
		buf = c.s.encode(buf[:0], c.values.Get(slot))
		m, err := bw.Write(buf)
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

func (c *Column[T]) Read(r io.Reader, count int) (int64, error) {
	if count < 0 {
		return 0, fmt.Errorf("%w: negative slot count %d", ErrMalformedStream, count)
	}
	if _, err := c.TryEnsureCapacity(count, gate.Infinite); err != nil {
		return 0, err
	}
	cr := &countingReader{r: r}
	br := bufio.NewReaderSize(cr, 64<<10)
	for slot := c.notNulls.NextSet(0, count); slot >= 0; slot = c.notNulls.NextSet(slot+1, count) {
		v, err := c.s.decode(br)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return cr.n, fmt.Errorf("%w: slot %d: %w", ErrMalformedStream, slot, err)
			}
			return cr.n, err
		}
		c.values.Set(slot, v)
	}
	if br.Buffered() > 0 {
		return cr.n, fmt.Errorf("%w: %d trailing bytes", ErrMalformedStream, br.Buffered())
	}
	return cr.n, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
