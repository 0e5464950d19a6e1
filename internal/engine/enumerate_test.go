package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/coldb/model"
)

func collect(t *testing.T, seq func(func(int, error) bool)) []int {
	t.Helper()
	var out []int
	for slot, err := range seq {
		require.NoError(t, err)
		out = append(out, slot)
	}
	return out
}

func TestScan(t *testing.T) {
	c := newContainer(t)
	for _, k := range []string{"a", "b", "c", "d"} {
		put(t, c, k, i64(1), "")
	}
	_, err := c.Delete(context.Background(), []byte("b"))
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2, 3}, collect(t, c.Scan(context.Background())))

	var first []int
	for slot, err := range c.Scan(context.Background()) {
		require.NoError(t, err)
		first = append(first, slot)
		break
	}
	assert.Equal(t, []int{0}, first)
}

func TestScan_ReadRows(t *testing.T) {
	c := newContainer(t)
	put(t, c, "a", i64(1), "x")
	put(t, c, "b", i64(2), "y")

	ctx := context.Background()
	row := model.NewRowBuffer(c.Schema())
	var keys []string
	var sum int64
	for slot, err := range c.Scan(ctx) {
		require.NoError(t, err)
		ok, err := c.ReadRow(ctx, slot, row)
		require.NoError(t, err)
		require.True(t, ok)
		keys = append(keys, string(row.Key))
		sum += row.Int64(fieldN)
	}
	assert.Equal(t, []string{"a", "b"}, keys)
	assert.Equal(t, int64(3), sum)
}

func TestScan_Canceled(t *testing.T) {
	c := newContainer(t)
	put(t, c, "a", i64(1), "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var errs []error
	for _, err := range c.Scan(ctx) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], context.Canceled)
}

func TestScanSorted_Strings(t *testing.T) {
	c := newContainer(t)
	put(t, c, "a", nil, "banana")
	put(t, c, "b", nil, "Apple")
	put(t, c, "c", nil, "cherry")
	put(t, c, "d", nil, "")

	assert.Equal(t, []int{1, 0, 2, 3}, sorted(t, c, fieldS, false))
	assert.Equal(t, []int{2, 0, 1, 3}, sorted(t, c, fieldS, true))
}

func TestScanSorted_UnknownField(t *testing.T) {
	c := newContainer(t)
	for _, err := range c.ScanSorted(context.Background(), 9, false) {
		assert.ErrorIs(t, err, ErrUnknownField)
	}
}

func TestScanKeys(t *testing.T) {
	c := newContainer(t)
	for _, k := range []string{"a", "b", "c", "d"} {
		put(t, c, k, i64(1), "")
	}
	_, err := c.Delete(context.Background(), []byte("c"))
	require.NoError(t, err)

	keys := [][]byte{[]byte("d"), []byte("a"), []byte("x"), []byte("d"), []byte("c"), []byte("b")}
	ctx := context.Background()

	assert.Equal(t, []int{3, 0, 1}, collect(t, c.ScanKeys(ctx, keys, false)))
	assert.Equal(t, []int{0, 1, 3}, collect(t, c.ScanKeys(ctx, keys, true)))
	assert.Empty(t, collect(t, c.ScanKeys(ctx, nil, true)))
}
