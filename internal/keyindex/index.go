// Package keyindex maps primary keys to slots.
//
// The map is insert-only: once a key is bound to a slot the binding never
// changes. Deleting a document leaves its key bound to the tombstoned slot,
// so inserting the key again revives the same slot.
//
// Alongside the map the index keeps the key backbone, an expandable array
// holding the key of every slot, used for persistence and enumeration.
package keyindex

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/hupe1980/coldb/internal/arena"
	"github.com/hupe1980/coldb/internal/expandable"
	"github.com/hupe1980/coldb/internal/gate"
	"github.com/hupe1980/coldb/model"
)

// ErrMalformedStream is returned when a persisted key stream cannot be decoded.
var ErrMalformedStream = errors.New("keyindex: malformed stream")

// Index is a concurrent key to slot map plus the slot to key backbone.
type Index struct {
	slots *xsync.MapOf[string, int]
	keys  *expandable.Array[string]
}

// New creates an empty index drawing backbone blocks from a.
func New(a *arena.Arena) *Index {
	return &Index{
		slots: xsync.NewMapOf[string, int](),
		keys:  expandable.New[string](a),
	}
}

// TryGet returns the slot bound to key.
func (x *Index) TryGet(key []byte) (int, bool) {
	return x.slots.Load(string(key))
}

// TryInsert binds key to slot if key is unbound. On false the caller must
// re-read the winning slot with TryGet.
func (x *Index) TryInsert(key string, slot int) bool {
	_, loaded := x.slots.LoadOrStore(key, slot)
	return !loaded
}

// Len returns the number of bound keys, including keys of tombstoned slots.
func (x *Index) Len() int { return x.slots.Size() }

// Capacity returns the backbone capacity.
func (x *Index) Capacity() int { return x.keys.Capacity() }

// TryEnsureCapacity grows the backbone.
func (x *Index) TryEnsureCapacity(capacity int, timeout time.Duration) (bool, error) {
	return x.keys.TryEnsureCapacity(capacity, timeout)
}

// SetKey records key in the backbone at slot.
func (x *Index) SetKey(slot int, key string) { x.keys.Set(slot, key) }

// Key returns the backbone key at slot, or "" for a retired slot.
func (x *Index) Key(slot int) string { return x.keys.Get(slot) }

// Write streams the backbone for slots [0, count). Each entry is a uvarint
// length followed by the key bytes; length 0 marks a slot without a key.
func (x *Index) Write(w io.Writer, count int) (int64, error) {
	if count < 0 || count > x.keys.Capacity() {
		return 0, fmt.Errorf("keyindex: write of %d slots exceeds capacity %d", count, x.keys.Capacity())
	}
	bw := bufio.NewWriterSize(w, 64<<10)
	var (
		n   int64
		buf []byte
	)
	for slot := 0; slot < count; slot++ {
		k := x.keys.Get(slot)
		buf = binary.AppendUvarint(buf[:0], uint64(len(k)))
		buf = append(buf, k...)
		m, err := bw.Write(buf)
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// Read loads count backbone entries and rebinds every key to its slot.
func (x *Index) Read(r io.Reader, count int) error {
	if count < 0 {
		return fmt.Errorf("%w: negative slot count %d", ErrMalformedStream, count)
	}
	if _, err := x.keys.TryEnsureCapacity(count, gate.Infinite); err != nil {
		return err
	}
	br := bufio.NewReaderSize(r, 64<<10)
	buf := make([]byte, model.MaxKeyLength)
	for slot := 0; slot < count; slot++ {
		n, err := binary.ReadUvarint(br)
		if err != nil {
			return fmt.Errorf("%w: slot %d: %w", ErrMalformedStream, slot, err)
		}
		if n == 0 {
			continue
		}
		if n > model.MaxKeyLength {
			return fmt.Errorf("%w: slot %d: key length %d", ErrMalformedStream, slot, n)
		}
		if _, err := io.ReadFull(br, buf[:n]); err != nil {
			return fmt.Errorf("%w: slot %d: %w", ErrMalformedStream, slot, err)
		}
		key := string(buf[:n])
		if !x.TryInsert(key, slot) {
			return fmt.Errorf("%w: slot %d: duplicate key %q", ErrMalformedStream, slot, key)
		}
		x.keys.Set(slot, key)
	}
	return nil
}
