package expandable

import (
	"context"
	"errors"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/coldb/internal/arena"
	"github.com/hupe1980/coldb/internal/gate"
	"github.com/hupe1980/coldb/model"
)

func TestElementsPerBlock(t *testing.T) {
	tests := []struct {
		name string
		got  int
		size uintptr
	}{
		{"uint64", ElementsPerBlock[uint64](), unsafe.Sizeof(uint64(0))},
		{"fixed16", ElementsPerBlock[model.Fixed16](), unsafe.Sizeof(model.Fixed16{})},
		{"string", ElementsPerBlock[string](), unsafe.Sizeof("")},
		{"bytes", ElementsPerBlock[[]byte](), unsafe.Sizeof([]byte(nil))},
		{"byte", ElementsPerBlock[byte](), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Zero(t, tt.got%32)
			assert.Less(t, tt.got*int(tt.size), largeObjectBytes)
			assert.GreaterOrEqual(t, (tt.got+32)*int(tt.size), largeObjectBytes-int(tt.size)*32)
		})
	}
	assert.Equal(t, 4064, ElementsPerBlock[uint64]())
}

func TestArray_Addressing(t *testing.T) {
	a := New[uint64](nil)
	per := a.PerBlock()

	assert.Equal(t, 0, a.BlockOf(0))
	assert.Equal(t, 0, a.LocalIndex(0))
	assert.Equal(t, 1, a.BlockOf(per))
	assert.Equal(t, 0, a.LocalIndex(per))
	assert.Equal(t, 2, a.BlockOf(2*per+5))
	assert.Equal(t, 5, a.LocalIndex(2*per+5))
}

func TestArray_GrowKeepsData(t *testing.T) {
	a := New[string](nil)
	require.NoError(t, a.EnsureCapacity(context.Background(), 10))
	assert.Equal(t, a.PerBlock(), a.Capacity())

	for i := 0; i < 10; i++ {
		a.Set(i, string(rune('a'+i)))
	}

	ok, err := a.TryEnsureCapacity(5*a.PerBlock()+1, gate.NoWait)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 6*a.PerBlock(), a.Capacity())

	for i := 0; i < 10; i++ {
		assert.Equal(t, string(rune('a'+i)), a.Get(i))
	}
	a.Set(5*a.PerBlock(), "tail")
	assert.Equal(t, "tail", a.Get(5*a.PerBlock()))

	*a.Ref(3) = "ref"
	assert.Equal(t, "ref", a.Get(3))
}

func TestArray_NegativeCapacity(t *testing.T) {
	a := New[uint64](nil)
	_, err := a.TryEnsureCapacity(-1, gate.Infinite)
	assert.ErrorIs(t, err, ErrNegativeCapacity)
	assert.ErrorIs(t, a.EnsureCapacity(context.Background(), -5), ErrNegativeCapacity)
}

func TestArray_ConcurrentGrowth(t *testing.T) {
	a := New[uint64](nil)
	require.NoError(t, a.EnsureCapacity(context.Background(), 100))
	for i := 0; i < 100; i++ {
		a.Set(i, uint64(i*i))
	}

	const target = 50000
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for {
				ok, err := a.TryEnsureCapacity(target-g*100, gate.NoWait)
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

	assert.GreaterOrEqual(t, a.Capacity(), target)
	for i := 0; i < 100; i++ {
		assert.Equal(t, uint64(i*i), a.Get(i))
	}
}

func TestArray_ArenaClosed(t *testing.T) {
	ar := arena.New()
	a := New[uint64](ar)
	ar.Free()

	err := a.EnsureCapacity(context.Background(), 1)
	assert.True(t, errors.Is(err, arena.ErrClosed))
}
