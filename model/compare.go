package model

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"math"
	"unicode"
	"unicode/utf8"
)

// Fixed8Comparer returns the ordering of t over encoded 8-byte words.
func Fixed8Comparer(t ScalarType) func(a, b uint64) int {
	switch t {
	case TypeUInt64, TypeBool:
		return cmp.Compare[uint64]
	case TypeFloat32, TypeFloat64:
		return func(a, b uint64) int {
			return cmp.Compare(math.Float64frombits(a), math.Float64frombits(b))
		}
	default:
		return func(a, b uint64) int {
			return cmp.Compare(int64(a), int64(b))
		}
	}
}

// Fixed16Comparer returns the ordering of t over 16-byte values.
func Fixed16Comparer(t ScalarType) func(a, b Fixed16) int {
	switch t {
	case TypeDecimal:
		return func(a, b Fixed16) int {
			return a.Decimal().Cmp(b.Decimal())
		}
	case TypeDateTimeOffset:
		return func(a, b Fixed16) int {
			an := int64(binary.LittleEndian.Uint64(a[0:8]))
			bn := int64(binary.LittleEndian.Uint64(b[0:8]))
			if c := cmp.Compare(an, bn); c != 0 {
				return c
			}
			ao := int32(binary.LittleEndian.Uint32(a[8:12]))
			bo := int32(binary.LittleEndian.Uint32(b[8:12]))
			return cmp.Compare(ao, bo)
		}
	default:
		return func(a, b Fixed16) int {
			return bytes.Compare(a[:], b[:])
		}
	}
}

// CompareFold orders strings case-insensitively, rune by rune.
// Strings equal under simple lower-case folding compare as 0.
func CompareFold(a, b string) int {
	for a != "" && b != "" {
		ra, na := utf8.DecodeRuneInString(a)
		rb, nb := utf8.DecodeRuneInString(b)
		if ra != rb {
			if c := cmp.Compare(unicode.ToLower(ra), unicode.ToLower(rb)); c != 0 {
				return c
			}
		}
		a, b = a[na:], b[nb:]
	}
	return cmp.Compare(len(a), len(b))
}

// CompareBytes orders byte sequences lexicographically.
func CompareBytes(a, b []byte) int { return bytes.Compare(a, b) }
