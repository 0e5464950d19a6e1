package bitset

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/coldb/internal/gate"
)

func TestBitVector(t *testing.T) {
	b := New(100)
	assert.Equal(t, segmentSize, b.Capacity())

	b.Set(10)
	assert.True(t, b.Get(10))
	assert.Equal(t, 1, b.Count(100))

	b.Clear(10)
	assert.False(t, b.Get(10))

	b.Set(10)
	b.Set(20)
	b.Set(30)
	assert.Equal(t, 3, b.Count(100))
	assert.Equal(t, 2, b.Count(30))

	b.ClearAll()
	assert.Equal(t, 0, b.Count(100))
}

func TestBitVector_OutOfRange(t *testing.T) {
	b := New(0)
	assert.Equal(t, 0, b.Capacity())
	b.Set(5)
	assert.False(t, b.Get(5))
	assert.False(t, b.SafeSet(5))
	assert.False(t, b.Get(-1))
}

func TestBitVector_Grow(t *testing.T) {
	b := New(10)
	b.Set(5)

	require.NoError(t, b.EnsureCapacity(200000))
	assert.GreaterOrEqual(t, b.Capacity(), 200000)
	assert.True(t, b.Get(5))

	b.Set(199999)
	assert.True(t, b.Get(199999))

	_, err := b.TryEnsureCapacity(-1, gate.NoWait)
	assert.ErrorIs(t, err, ErrNegativeCapacity)
}

func TestBitVector_ConcurrentGrow(t *testing.T) {
	b := New(64)
	for i := 0; i < 64; i += 3 {
		b.Set(i)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for {
				ok, err := b.TryEnsureCapacity(500000+g, gate.NoWait)
				if err != nil {
					t.Error(err)
					return
				}
				if ok {
					return
				}
			}
		}(g)
	}
	wg.Wait()

	assert.GreaterOrEqual(t, b.Capacity(), 500007)
	for i := 0; i < 64; i++ {
		assert.Equal(t, i%3 == 0, b.Get(i), "bit %d", i)
	}
}

func TestBitVector_SafeAccessors(t *testing.T) {
	b := New(1024)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := g; i < 1024; i += 8 {
				b.SafeSet(i)
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, 1024, b.Count(1024))

	assert.False(t, b.SafeSet(7))
	assert.True(t, b.SafeClear(7))
	assert.False(t, b.SafeClear(7))
	assert.False(t, b.SafeGet(7))
}

func TestBitVector_NextSet(t *testing.T) {
	b := New(200000)
	b.Set(3)
	b.Set(64)
	b.Set(150000)

	assert.Equal(t, 3, b.NextSet(0, 200000))
	assert.Equal(t, 64, b.NextSet(4, 200000))
	assert.Equal(t, 150000, b.NextSet(65, 200000))
	assert.Equal(t, -1, b.NextSet(150001, 200000))
	assert.Equal(t, -1, b.NextSet(65, 150000))
}

func TestBitVector_RoundTrip(t *testing.T) {
	b := New(1000)
	b.Set(1)
	b.Set(500)
	b.Set(999)

	var buf bytes.Buffer
	n, err := b.Write(&buf, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(16*8), n)

	b2 := New(0)
	_, err = b2.Read(&buf, 1000)
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		assert.Equal(t, b.Get(i), b2.Get(i), "bit %d", i)
	}
	assert.Equal(t, 3, b2.Count(1000))
}

func TestBitVector_WriteMasksTail(t *testing.T) {
	b := New(128)
	b.Set(5)
	b.Set(70)

	var buf bytes.Buffer
	_, err := b.Write(&buf, 10)
	require.NoError(t, err)
	require.Equal(t, 8, buf.Len())

	b2 := New(0)
	_, err = b2.Read(&buf, 10)
	require.NoError(t, err)
	assert.True(t, b2.Get(5))
	assert.False(t, b2.Get(70))
}

func TestBitVector_ReadTruncated(t *testing.T) {
	b := New(0)
	_, err := b.Read(bytes.NewReader(make([]byte, 4)), 100)
	assert.Error(t, err)
}
