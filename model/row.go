package model

import (
	"fmt"
	"time"
)

// ChangeType selects what a changeset does with a staged row.
type ChangeType uint8

const (
	ChangeInsert ChangeType = iota + 1
	ChangeUpdate
	ChangeDelete
)

func (c ChangeType) String() string {
	switch c {
	case ChangeInsert:
		return "insert"
	case ChangeUpdate:
		return "update"
	case ChangeDelete:
		return "delete"
	default:
		return fmt.Sprintf("ChangeType(%d)", uint8(c))
	}
}

// RowBuffer is a single staged or fetched row.
//
// Lanes are indexed by field ordinal; only the lane matching a field's storage
// category is meaningful for that field. Nulls[i] reports whether field i has
// no value.
type RowBuffer struct {
	Change ChangeType
	Key    []byte
	// Fields lists the ordinals a changeset writes or an enumerator fetches.
	Fields []int

	Fixed8  []uint64
	Fixed16 []Fixed16
	Chars   []string
	Bytes   [][]byte
	Nulls   []bool
}

// NewRowBuffer creates a buffer sized for schema. If no fields are given,
// every field of the schema is selected. All values start out null.
func NewRowBuffer(schema *Schema, fields ...int) *RowBuffer {
	n := len(schema.Fields)
	if len(fields) == 0 {
		fields = make([]int, n)
		for i := range fields {
			fields[i] = i
		}
	}
	b := &RowBuffer{
		Fields:  fields,
		Fixed8:  make([]uint64, n),
		Fixed16: make([]Fixed16, n),
		Chars:   make([]string, n),
		Bytes:   make([][]byte, n),
		Nulls:   make([]bool, n),
	}
	b.Reset()
	return b
}

// Reset clears the key and marks every field null. Fields is kept.
func (b *RowBuffer) Reset() {
	b.Key = b.Key[:0]
	for i := range b.Nulls {
		b.Nulls[i] = true
		b.Chars[i] = ""
		b.Bytes[i] = nil
	}
}

// IsNull reports whether field i has no value.
func (b *RowBuffer) IsNull(i int) bool { return b.Nulls[i] }

// SetNull marks field i null.
func (b *RowBuffer) SetNull(i int) { b.Nulls[i] = true }

// SetFixed8 stores a raw 8-byte word.
func (b *RowBuffer) SetFixed8(i int, v uint64) {
	b.Fixed8[i] = v
	b.Nulls[i] = false
}

// SetFixed16 stores a raw 16-byte value.
func (b *RowBuffer) SetFixed16(i int, v Fixed16) {
	b.Fixed16[i] = v
	b.Nulls[i] = false
}

// SetString stores a string value.
func (b *RowBuffer) SetString(i int, v string) {
	b.Chars[i] = v
	b.Nulls[i] = false
}

// SetBytes stores a byte sequence. The slice is retained, not copied.
func (b *RowBuffer) SetBytes(i int, v []byte) {
	b.Bytes[i] = v
	b.Nulls[i] = false
}

func (b *RowBuffer) SetInt64(i int, v int64)            { b.SetFixed8(i, Int64Value(v)) }
func (b *RowBuffer) SetUint64(i int, v uint64)          { b.SetFixed8(i, v) }
func (b *RowBuffer) SetFloat64(i int, v float64)        { b.SetFixed8(i, Float64Value(v)) }
func (b *RowBuffer) SetBool(i int, v bool)              { b.SetFixed8(i, BoolValue(v)) }
func (b *RowBuffer) SetTime(i int, v time.Time)         { b.SetFixed8(i, TimeValue(v)) }
func (b *RowBuffer) SetDuration(i int, v time.Duration) { b.SetFixed8(i, DurationValue(v)) }
func (b *RowBuffer) Int64(i int) int64                  { return Int64FromValue(b.Fixed8[i]) }
func (b *RowBuffer) Uint64(i int) uint64                { return b.Fixed8[i] }
func (b *RowBuffer) Float64(i int) float64              { return Float64FromValue(b.Fixed8[i]) }
func (b *RowBuffer) Bool(i int) bool                    { return BoolFromValue(b.Fixed8[i]) }
func (b *RowBuffer) Time(i int) time.Time               { return TimeFromValue(b.Fixed8[i]) }
func (b *RowBuffer) Duration(i int) time.Duration       { return DurationFromValue(b.Fixed8[i]) }
func (b *RowBuffer) StringValue(i int) string           { return b.Chars[i] }
func (b *RowBuffer) Binary(i int) []byte                { return b.Bytes[i] }
func (b *RowBuffer) Fixed16Value(i int) Fixed16         { return b.Fixed16[i] }
