package model

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/uuid"
)

// Fixed16 is the storage representation of the 16-byte category.
type Fixed16 [16]byte

// Int64Value encodes v for a Fixed8 column.
func Int64Value(v int64) uint64 { return uint64(v) }

// Int64FromValue decodes a Fixed8 word written by Int64Value.
func Int64FromValue(u uint64) int64 { return int64(u) }

// Float64Value encodes v for a Fixed8 column.
func Float64Value(v float64) uint64 { return math.Float64bits(v) }

// Float64FromValue decodes a Fixed8 word written by Float64Value.
func Float64FromValue(u uint64) float64 { return math.Float64frombits(u) }

// BoolValue encodes v for a Fixed8 column.
func BoolValue(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

// BoolFromValue decodes a Fixed8 word written by BoolValue.
func BoolFromValue(u uint64) bool { return u != 0 }

// TimeValue encodes t as unix nanoseconds for a DateTime column.
func TimeValue(t time.Time) uint64 { return uint64(t.UnixNano()) }

// TimeFromValue decodes a DateTime word to a UTC time.
func TimeFromValue(u uint64) time.Time { return time.Unix(0, int64(u)).UTC() }

// DurationValue encodes d for a Duration column.
func DurationValue(d time.Duration) uint64 { return uint64(d) }

// DurationFromValue decodes a Duration word.
func DurationFromValue(u uint64) time.Duration { return time.Duration(int64(u)) }

// DecimalValue encodes coeff * 10^exp.
//
// Layout: coefficient (int64 LE), exponent (int32 LE), 4 bytes zero.
func DecimalValue(coeff int64, exp int32) Fixed16 {
	var f Fixed16
	binary.LittleEndian.PutUint64(f[0:8], uint64(coeff))
	binary.LittleEndian.PutUint32(f[8:12], uint32(exp))
	return f
}

// DecimalFromAPD encodes an apd decimal. The coefficient must fit in an int64.
func DecimalFromAPD(d *apd.Decimal) (Fixed16, error) {
	if d.Form != apd.Finite {
		return Fixed16{}, fmt.Errorf("decimal %s: only finite values can be stored", d)
	}
	if !d.Coeff.IsInt64() {
		return Fixed16{}, fmt.Errorf("decimal %s: coefficient exceeds 64 bits", d)
	}
	coeff := d.Coeff.Int64()
	if d.Negative {
		coeff = -coeff
	}
	return DecimalValue(coeff, d.Exponent), nil
}

// Decimal decodes a Decimal value.
func (f Fixed16) Decimal() *apd.Decimal {
	coeff := int64(binary.LittleEndian.Uint64(f[0:8]))
	exp := int32(binary.LittleEndian.Uint32(f[8:12]))
	return apd.New(coeff, exp)
}

// GuidValue encodes a UUID.
func GuidValue(u uuid.UUID) Fixed16 { return Fixed16(u) }

// Guid decodes a Guid value.
func (f Fixed16) Guid() uuid.UUID { return uuid.UUID(f) }

// DateTimeOffsetValue encodes the instant of t together with its zone offset.
//
// Layout: unix nanoseconds (int64 LE), offset seconds (int32 LE), 4 bytes zero.
func DateTimeOffsetValue(t time.Time) Fixed16 {
	var f Fixed16
	_, offset := t.Zone()
	binary.LittleEndian.PutUint64(f[0:8], uint64(t.UnixNano()))
	binary.LittleEndian.PutUint32(f[8:12], uint32(int32(offset)))
	return f
}

// DateTimeOffset decodes a DateTimeOffset value into a time in its original offset.
func (f Fixed16) DateTimeOffset() time.Time {
	nanos := int64(binary.LittleEndian.Uint64(f[0:8]))
	offset := int32(binary.LittleEndian.Uint32(f[8:12]))
	return time.Unix(0, nanos).In(time.FixedZone("", int(offset)))
}
