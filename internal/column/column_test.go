package column

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/coldb/internal/gate"
	"github.com/hupe1980/coldb/model"
)

func testSchema(t *testing.T) *model.Schema {
	t.Helper()
	s, err := model.NewSchema("people",
		model.Field{ID: 1, Name: "age", Type: model.TypeInt64},
		model.Field{ID: 2, Name: "id", Type: model.TypeGuid},
		model.Field{ID: 3, Name: "name", Type: model.TypeString},
		model.Field{ID: 4, Name: "blob", Type: model.TypeBinary},
	)
	require.NoError(t, err)
	return s
}

func newStores(t *testing.T, s *model.Schema, capacity int) []Store {
	t.Helper()
	stores := make([]Store, len(s.Fields))
	for i, f := range s.Fields {
		c, err := New(f.Type, nil)
		require.NoError(t, err)
		ok, err := c.TryEnsureCapacity(capacity, gate.Infinite)
		require.NoError(t, err)
		require.True(t, ok)
		stores[i] = c
	}
	return stores
}

func TestNew_Categories(t *testing.T) {
	tests := []struct {
		typ  model.ScalarType
		want any
	}{
		{model.TypeInt32, &Column[uint64]{}},
		{model.TypeDateTime, &Column[uint64]{}},
		{model.TypeDecimal, &Column[model.Fixed16]{}},
		{model.TypeString, &Column[string]{}},
		{model.TypeBinary, &Column[[]byte]{}},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			c, err := New(tt.typ, nil)
			require.NoError(t, err)
			assert.IsType(t, tt.want, c)
			assert.Equal(t, tt.typ, c.Type())
		})
	}

	_, err := New(model.TypeUnknown, nil)
	assert.Error(t, err)
}

func TestColumn_AssignRoundTrip(t *testing.T) {
	s := testSchema(t)
	stores := newStores(t, s, 10)
	id := uuid.New()

	in := model.NewRowBuffer(s)
	in.SetInt64(0, -42)
	in.SetFixed16(1, model.GuidValue(id))
	in.SetString(2, "Alice")
	in.SetBytes(3, []byte{1, 2, 3})
	for i, c := range stores {
		c.AssignFromRow(7, in, i)
	}

	// The stored binary value must not alias the caller's buffer.
	in.Bytes[3][0] = 9

	out := model.NewRowBuffer(s)
	for i, c := range stores {
		require.False(t, c.IsNull(7))
		assert.True(t, c.IsNull(6))
		c.AssignToRow(7, out, i)
	}
	assert.Equal(t, int64(-42), out.Int64(0))
	assert.Equal(t, id, out.Fixed16Value(1).Guid())
	assert.Equal(t, "Alice", out.StringValue(2))
	assert.Equal(t, []byte{1, 2, 3}, out.Binary(3))

	// Nor may a read hand out the stored slice.
	out.Bytes[3][0] = 9
	again := model.NewRowBuffer(s, 3)
	stores[3].AssignToRow(7, again, 3)
	assert.Equal(t, []byte{1, 2, 3}, again.Binary(3))

	for i := range s.Fields {
		assert.False(t, out.IsNull(i))
	}

	for _, c := range stores {
		c.Clear(7)
		assert.True(t, c.IsNull(7))
	}
	v, ok := stores[2].(*Column[string]).Value(7)
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestColumn_Compare(t *testing.T) {
	c, err := New(model.TypeString, nil)
	require.NoError(t, err)
	_, err = c.TryEnsureCapacity(3, gate.NoWait)
	require.NoError(t, err)

	s, err := model.NewSchema("t", model.Field{ID: 1, Name: "s", Type: model.TypeString})
	require.NoError(t, err)
	row := model.NewRowBuffer(s)
	for slot, v := range []string{"banana", "Apple", "apple"} {
		row.SetString(0, v)
		c.AssignFromRow(slot, row, 0)
	}
	assert.Positive(t, c.Compare(0, 1))
	assert.Zero(t, c.Compare(1, 2))
	assert.Negative(t, c.Compare(2, 0))
}

func TestColumn_CopyTo(t *testing.T) {
	src, err := New(model.TypeFloat64, nil)
	require.NoError(t, err)
	dst, err := New(model.TypeFloat64, nil)
	require.NoError(t, err)
	other, err := New(model.TypeString, nil)
	require.NoError(t, err)
	for _, c := range []Store{src, dst, other} {
		_, err := c.TryEnsureCapacity(4, gate.Infinite)
		require.NoError(t, err)
	}

	s, err := model.NewSchema("t", model.Field{ID: 1, Name: "f", Type: model.TypeFloat64})
	require.NoError(t, err)
	row := model.NewRowBuffer(s)
	row.SetFloat64(0, 2.5)
	src.AssignFromRow(3, row, 0)

	require.NoError(t, src.CopyTo(dst, 3, 0))
	require.NoError(t, src.CopyTo(dst, 2, 1))
	out := model.NewRowBuffer(s)
	dst.AssignToRow(0, out, 0)
	assert.Equal(t, 2.5, out.Float64(0))
	assert.True(t, dst.IsNull(1))

	assert.ErrorIs(t, src.CopyTo(other, 3, 0), ErrTypeMismatch)
}

func TestColumn_WriteRead(t *testing.T) {
	s := testSchema(t)
	const count = 5000
	stores := newStores(t, s, count)

	row := model.NewRowBuffer(s)
	for slot := 0; slot < count; slot++ {
		if slot%3 == 0 {
			continue
		}
		row.SetInt64(0, int64(slot*7))
		row.SetFixed16(1, model.DecimalValue(int64(slot), -2))
		row.SetString(2, string(rune('a'+slot%26)))
		row.SetBytes(3, bytes.Repeat([]byte{byte(slot)}, slot%5))
		for i, c := range stores {
			c.AssignFromRow(slot, row, i)
		}
	}

	for i, src := range stores {
		var nn, data bytes.Buffer
		_, err := src.NotNulls().Write(&nn, count)
		require.NoError(t, err)
		_, err = src.Write(&data, count)
		require.NoError(t, err)

		dst, err := New(src.Type(), nil)
		require.NoError(t, err)
		_, err = dst.NotNulls().Read(&nn, count)
		require.NoError(t, err)
		_, err = dst.Read(&data, count)
		require.NoError(t, err)

		a, b := model.NewRowBuffer(s), model.NewRowBuffer(s)
		for slot := 0; slot < count; slot++ {
			require.Equal(t, src.IsNull(slot), dst.IsNull(slot), "field %d slot %d", i, slot)
			if src.IsNull(slot) {
				continue
			}
			src.AssignToRow(slot, a, i)
			dst.AssignToRow(slot, b, i)
			require.Zero(t, src.Compare(slot, slot))
			switch src.Category() {
			case model.CategoryFixed8:
				require.Equal(t, a.Fixed8[i], b.Fixed8[i])
			case model.CategoryFixed16:
				require.Equal(t, a.Fixed16[i], b.Fixed16[i])
			case model.CategoryChars:
				require.Equal(t, a.Chars[i], b.Chars[i])
			case model.CategoryBytes:
				require.Equal(t, len(a.Bytes[i]), len(b.Bytes[i]))
				require.True(t, bytes.Equal(a.Bytes[i], b.Bytes[i]))
			}
		}
	}
}

func TestColumn_ReadMalformed(t *testing.T) {
	c, err := New(model.TypeInt64, nil)
	require.NoError(t, err)
	require.NoError(t, c.NotNulls().EnsureCapacity(64))
	c.NotNulls().Set(0)
	c.NotNulls().Set(1)

	_, err = c.Read(bytes.NewReader(make([]byte, 12)), 2)
	assert.ErrorIs(t, err, ErrMalformedStream)

	_, err = c.Read(bytes.NewReader(make([]byte, 20)), 2)
	assert.ErrorIs(t, err, ErrMalformedStream)
}

func TestColumn_WriteBeyondCapacity(t *testing.T) {
	c, err := New(model.TypeInt64, nil)
	require.NoError(t, err)
	_, err = c.Write(&bytes.Buffer{}, 1)
	assert.Error(t, err)
}
