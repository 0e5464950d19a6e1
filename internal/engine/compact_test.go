package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/coldb/internal/resource"
)

func TestCompact(t *testing.T) {
	c := newContainer(t)
	for i := range 5 {
		put(t, c, fmt.Sprintf("k%d", i), i64(int64(10-i)), fmt.Sprintf("s%d", i))
	}
	ctx := context.Background()
	for _, k := range []string{"k1", "k3"} {
		_, err := c.Delete(ctx, []byte(k))
		require.NoError(t, err)
	}
	_, err := c.SortIndex(ctx, fieldN)
	require.NoError(t, err)

	require.NoError(t, c.Compact(ctx))

	assert.Equal(t, 3, c.SlotCount())
	assert.Equal(t, 3, c.Count())
	assert.Equal(t, 16, c.Capacity())
	assert.Zero(t, c.Stats().Retired)
	assert.False(t, c.SortIndexValid(fieldN))

	for want, i := range []int{0, 2, 4} {
		key := fmt.Sprintf("k%d", i)
		slot, ok := c.Lookup([]byte(key))
		require.True(t, ok, key)
		assert.Equal(t, want, slot)

		row, ok := get(t, c, key)
		require.True(t, ok)
		assert.Equal(t, int64(10-i), row.Int64(fieldN))
		assert.Equal(t, fmt.Sprintf("s%d", i), row.StringValue(fieldS))
	}
	assert.Equal(t, []int{2, 1, 0}, sorted(t, c, fieldN, false))

	// Dropped keys are gone for good and get fresh slots.
	slot, err := c.TryAddDocument([]byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, 3, slot)
}

func TestCompact_ReclaimsRetiredSlots(t *testing.T) {
	c := newContainer(t)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.TryAddDocument([]byte("same"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	require.NoError(t, c.Compact(context.Background()))

	assert.Equal(t, 1, c.SlotCount())
	assert.Zero(t, c.Stats().Retired)
	slot, ok := c.Lookup([]byte("same"))
	require.True(t, ok)
	assert.Zero(t, slot)
}

func TestCompact_Empty(t *testing.T) {
	c := newContainer(t)
	put(t, c, "a", i64(1), "")
	_, err := c.Delete(context.Background(), []byte("a"))
	require.NoError(t, err)

	require.NoError(t, c.Compact(context.Background()))
	assert.Zero(t, c.SlotCount())
	assert.Zero(t, c.Capacity())

	put(t, c, "b", i64(2), "")
	assert.Equal(t, 1, c.Count())
}

func TestCompact_FlushLoad(t *testing.T) {
	dir, _ := newDir(t)
	c := newContainer(t, WithDir(dir))
	for i := range 20 {
		put(t, c, fmt.Sprintf("k%02d", i), i64(int64(i)), "")
	}
	for i := 0; i < 20; i += 2 {
		_, err := c.Delete(context.Background(), fmt.Appendf(nil, "k%02d", i))
		require.NoError(t, err)
	}
	require.NoError(t, c.Compact(context.Background()))
	require.NoError(t, c.Flush(context.Background()))

	loaded := load(t, dir, testSchema(t))
	assert.Equal(t, 10, loaded.SlotCount())
	row, ok := get(t, loaded, "k19")
	require.True(t, ok)
	assert.Equal(t, int64(19), row.Int64(fieldN))
}

func TestCompact_MemoryLimitBreaks(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 20})
	c, err := New(testSchema(t), WithResourceController(rc), WithGrowIncrement(16))
	require.NoError(t, err)
	defer c.Close()
	put(t, c, "a", i64(1), "x")

	// Fill the budget so the copy cannot allocate.
	require.NoError(t, rc.AcquireMemory(context.Background(), rc.MemoryLimit()-rc.MemoryUsage()))

	err = c.Compact(context.Background())
	require.ErrorIs(t, err, ErrBroken)
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	assert.ErrorIs(t, c.Err(), ErrBroken)
	_, ok := c.Lookup([]byte("a"))
	assert.True(t, ok)
}
