package bitset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"sync/atomic"
	"time"

	"github.com/hupe1980/coldb/internal/gate"
)

const (
	// segmentBits determines the size of each segment.
	// 16 bits = 65536 bits per segment.
	segmentBits = 16
	segmentSize = 1 << segmentBits
	segmentMask = segmentSize - 1

	// wordsPerSegment is the number of uint64 words in a segment.
	wordsPerSegment = segmentSize / 64
)

// ErrNegativeCapacity is returned when a negative bit count is requested.
var ErrNegativeCapacity = errors.New("bitset: negative capacity")

type segment [wordsPerSegment]atomic.Uint64

// BitVector is a growable bit array.
//
// Bits beyond Capacity read as false; writes beyond Capacity are dropped.
type BitVector struct {
	segments atomic.Pointer[[]*segment]
	grow     *gate.Gate
}

// New creates a BitVector holding at least capacity bits.
func New(capacity int) *BitVector {
	b := &BitVector{grow: gate.New()}
	empty := make([]*segment, 0)
	b.segments.Store(&empty)
	if capacity > 0 {
		b.growLocked(capacity)
	}
	return b
}

// Capacity returns the number of addressable bits.
func (b *BitVector) Capacity() int {
	return len(*b.segments.Load()) * segmentSize
}

// EnsureCapacity grows the vector to at least capacity bits, blocking on
// concurrent growers.
func (b *BitVector) EnsureCapacity(capacity int) error {
	_, err := b.TryEnsureCapacity(capacity, gate.Infinite)
	return err
}

// TryEnsureCapacity grows the vector to at least capacity bits.
// It returns false if the growth lock could not be taken within timeout.
func (b *BitVector) TryEnsureCapacity(capacity int, timeout time.Duration) (bool, error) {
	if capacity < 0 {
		return false, fmt.Errorf("%w: %d", ErrNegativeCapacity, capacity)
	}
	if capacity <= b.Capacity() {
		return true, nil
	}
	if !b.grow.TryEnter(timeout) {
		return false, nil
	}
	defer b.grow.Exit()
	b.growLocked(capacity)
	return true, nil
}

func (b *BitVector) growLocked(capacity int) {
	old := *b.segments.Load()
	need := (capacity + segmentSize - 1) >> segmentBits
	if need <= len(old) {
		return
	}
	next := make([]*segment, need)
	copy(next, old)
	for i := len(old); i < need; i++ {
		next[i] = new(segment)
	}
	b.segments.Store(&next)
}

func (b *BitVector) word(i int) *atomic.Uint64 {
	if i < 0 {
		return nil
	}
	segs := *b.segments.Load()
	s := i >> segmentBits
	if s >= len(segs) {
		return nil
	}
	return &segs[s][(i&segmentMask)>>6]
}

// Get returns bit i.
func (b *BitVector) Get(i int) bool {
	w := b.word(i)
	return w != nil && w.Load()&(1<<(uint(i)&63)) != 0
}

// Set sets bit i. Concurrent writers to the same word must be serialized
// by the caller.
func (b *BitVector) Set(i int) {
	if w := b.word(i); w != nil {
		w.Store(w.Load() | 1<<(uint(i)&63))
	}
}

// Clear clears bit i. Concurrent writers to the same word must be
// serialized by the caller.
func (b *BitVector) Clear(i int) {
	if w := b.word(i); w != nil {
		w.Store(w.Load() &^ (1 << (uint(i) & 63)))
	}
}

// SafeGet returns bit i with acquire semantics.
func (b *BitVector) SafeGet(i int) bool { return b.Get(i) }

// SafeSet sets bit i with a compare-and-swap loop.
// It reports whether the bit changed.
func (b *BitVector) SafeSet(i int) bool {
	w := b.word(i)
	if w == nil {
		return false
	}
	mask := uint64(1) << (uint(i) & 63)
	for {
		old := w.Load()
		if old&mask != 0 {
			return false
		}
		if w.CompareAndSwap(old, old|mask) {
			return true
		}
	}
}

// SafeClear clears bit i with a compare-and-swap loop.
// It reports whether the bit changed.
func (b *BitVector) SafeClear(i int) bool {
	w := b.word(i)
	if w == nil {
		return false
	}
	mask := uint64(1) << (uint(i) & 63)
	for {
		old := w.Load()
		if old&mask == 0 {
			return false
		}
		if w.CompareAndSwap(old, old&^mask) {
			return true
		}
	}
}

// NextSet returns the index of the first set bit at or after i and below
// limit, or -1.
func (b *BitVector) NextSet(i, limit int) int {
	if i < 0 {
		i = 0
	}
	segs := *b.segments.Load()
	limit = min(limit, len(segs)*segmentSize)
	for i < limit {
		seg := segs[i>>segmentBits]
		wi := (i & segmentMask) >> 6
		val := seg[wi].Load() &^ ((1 << (uint(i) & 63)) - 1)
		if val != 0 {
			n := (i &^ 63) + bits.TrailingZeros64(val)
			if n >= limit {
				return -1
			}
			return n
		}
		i = (i &^ 63) + 64
	}
	return -1
}

// Count returns the number of set bits below limit.
func (b *BitVector) Count(limit int) int {
	segs := *b.segments.Load()
	limit = min(limit, len(segs)*segmentSize)
	count := 0
	full := limit >> 6
	for w := 0; w < full; w++ {
		count += bits.OnesCount64(segs[w/wordsPerSegment][w%wordsPerSegment].Load())
	}
	if rem := limit & 63; rem != 0 {
		val := segs[full/wordsPerSegment][full%wordsPerSegment].Load()
		count += bits.OnesCount64(val & (1<<uint(rem) - 1))
	}
	return count
}

// ClearAll clears every bit.
func (b *BitVector) ClearAll() {
	for _, seg := range *b.segments.Load() {
		for i := range seg {
			seg[i].Store(0)
		}
	}
}

// Write streams bits [0, count) to w as little-endian words. The final
// word is padded with zero bits.
func (b *BitVector) Write(w io.Writer, count int) (int64, error) {
	if count < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativeCapacity, count)
	}
	if count > b.Capacity() {
		return 0, fmt.Errorf("bitset: write of %d bits exceeds capacity %d", count, b.Capacity())
	}
	segs := *b.segments.Load()
	words := (count + 63) >> 6
	buf := make([]byte, 0, 8*min(words, wordsPerSegment))
	var n int64
	for wi := 0; wi < words; wi++ {
		val := segs[wi/wordsPerSegment][wi%wordsPerSegment].Load()
		if wi == words-1 && count&63 != 0 {
			val &= 1<<uint(count&63) - 1
		}
		buf = binary.LittleEndian.AppendUint64(buf, val)
		if len(buf) == cap(buf) || wi == words-1 {
			m, err := w.Write(buf)
			n += int64(m)
			if err != nil {
				return n, err
			}
			buf = buf[:0]
		}
	}
	return n, nil
}

// Read loads bits [0, count) from r, growing the vector as needed.
func (b *BitVector) Read(r io.Reader, count int) (int64, error) {
	if count < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativeCapacity, count)
	}
	if err := b.EnsureCapacity(count); err != nil {
		return 0, err
	}
	segs := *b.segments.Load()
	words := (count + 63) >> 6
	buf := make([]byte, 8*min(words, wordsPerSegment))
	var n int64
	for wi := 0; wi < words; {
		chunk := min(words-wi, wordsPerSegment)
		m, err := io.ReadFull(r, buf[:8*chunk])
		n += int64(m)
		if err != nil {
			return n, fmt.Errorf("bitset: read %d of %d words: %w", wi, words, err)
		}
		for k := 0; k < chunk; k++ {
			val := binary.LittleEndian.Uint64(buf[8*k:])
			segs[(wi+k)/wordsPerSegment][(wi+k)%wordsPerSegment].Store(val)
		}
		wi += chunk
	}
	return n, nil
}
