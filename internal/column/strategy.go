package column

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hupe1980/coldb/model"
)

// maxVarLen bounds a single persisted string or binary value.
const maxVarLen = 1 << 30

// strategy is the per-category accessor set. One strategy value exists per
// category; a column picks it once at construction.
type strategy[T any] struct {
	load    func(row *model.RowBuffer, field int) T
	store   func(row *model.RowBuffer, field int, v T)
	encode  func(dst []byte, v T) []byte
	decode  func(r *bufio.Reader) (T, error)
	compare func(a, b T) int
}

func fixed8Strategy(t model.ScalarType) strategy[uint64] {
	return strategy[uint64]{
		load: func(row *model.RowBuffer, field int) uint64 { return row.Fixed8[field] },
		store: func(row *model.RowBuffer, field int, v uint64) {
			row.Fixed8[field] = v
			row.Nulls[field] = false
		},
		encode: binary.LittleEndian.AppendUint64,
		decode: func(r *bufio.Reader) (uint64, error) {
			var b [8]byte
			if _, err := io.ReadFull(r, b[:]); err != nil {
				return 0, err
			}
			return binary.LittleEndian.Uint64(b[:]), nil
		},
		compare: model.Fixed8Comparer(t),
	}
}

func fixed16Strategy(t model.ScalarType) strategy[model.Fixed16] {
	return strategy[model.Fixed16]{
		load: func(row *model.RowBuffer, field int) model.Fixed16 { return row.Fixed16[field] },
		store: func(row *model.RowBuffer, field int, v model.Fixed16) {
			row.Fixed16[field] = v
			row.Nulls[field] = false
		},
		encode: func(dst []byte, v model.Fixed16) []byte { return append(dst, v[:]...) },
		decode: func(r *bufio.Reader) (model.Fixed16, error) {
			var v model.Fixed16
			_, err := io.ReadFull(r, v[:])
			return v, err
		},
		compare: model.Fixed16Comparer(t),
	}
}

func charsStrategy() strategy[string] {
	return strategy[string]{
		load: func(row *model.RowBuffer, field int) string { return row.Chars[field] },
		store: func(row *model.RowBuffer, field int, v string) {
			row.Chars[field] = v
			row.Nulls[field] = false
		},
		encode: func(dst []byte, v string) []byte {
			dst = binary.AppendUvarint(dst, uint64(len(v)))
			return append(dst, v...)
		},
		decode: func(r *bufio.Reader) (string, error) {
			b, err := readVar(r)
			return string(b), err
		},
		compare: model.CompareFold,
	}
}

func bytesStrategy() strategy[[]byte] {
	return strategy[[]byte]{
		load: func(row *model.RowBuffer, field int) []byte {
			// Row buffers are reused, so values are copied both ways.
			return append([]byte(nil), row.Bytes[field]...)
		},
		store: func(row *model.RowBuffer, field int, v []byte) {
			row.Bytes[field] = append([]byte(nil), v...)
			row.Nulls[field] = false
		},
		encode: func(dst []byte, v []byte) []byte {
			dst = binary.AppendUvarint(dst, uint64(len(v)))
			return append(dst, v...)
		},
		decode:  readVar,
		compare: model.CompareBytes,
	}
}

func readVar(r *bufio.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if n > maxVarLen {
		return nil, fmt.Errorf("%w: value length %d", ErrMalformedStream, n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
