package model

import "fmt"

// ScalarType is the logical type of a field.
type ScalarType uint8

const (
	TypeUnknown ScalarType = iota
	TypeBool
	TypeInt32
	TypeInt64
	TypeUInt64
	TypeFloat32
	TypeFloat64
	TypeDateTime
	TypeDuration
	TypeDecimal
	TypeGuid
	TypeDateTimeOffset
	TypeString
	TypeBinary
)

// Category is the physical storage representation of a scalar type.
type Category uint8

const (
	// CategoryFixed8 stores one 8-byte word per slot.
	CategoryFixed8 Category = iota + 1
	// CategoryFixed16 stores one 16-byte value per slot.
	CategoryFixed16
	// CategoryChars stores a growable character sequence per slot.
	CategoryChars
	// CategoryBytes stores a growable byte sequence per slot.
	CategoryBytes
)

func (c Category) String() string {
	switch c {
	case CategoryFixed8:
		return "fixed8"
	case CategoryFixed16:
		return "fixed16"
	case CategoryChars:
		return "chars"
	case CategoryBytes:
		return "bytes"
	default:
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
}

// TypeInfo describes how a scalar type is stored.
type TypeInfo struct {
	Type     ScalarType
	Name     string
	Tag      string // short tag used in persisted file names
	Category Category
	// Size is the in-memory size of one slot in bytes.
	Size int
}

// Slot sizes of the variable-length categories are the size of the Go header
// (string: pointer+len, slice: pointer+len+cap).
const (
	charsSlotSize = 16
	bytesSlotSize = 24
)

var typeTable = [...]TypeInfo{
	TypeBool:           {TypeBool, "bool", "bool", CategoryFixed8, 8},
	TypeInt32:          {TypeInt32, "int32", "i32", CategoryFixed8, 8},
	TypeInt64:          {TypeInt64, "int64", "i64", CategoryFixed8, 8},
	TypeUInt64:         {TypeUInt64, "uint64", "u64", CategoryFixed8, 8},
	TypeFloat32:        {TypeFloat32, "float32", "f32", CategoryFixed8, 8},
	TypeFloat64:        {TypeFloat64, "float64", "f64", CategoryFixed8, 8},
	TypeDateTime:       {TypeDateTime, "datetime", "dt", CategoryFixed8, 8},
	TypeDuration:       {TypeDuration, "duration", "dur", CategoryFixed8, 8},
	TypeDecimal:        {TypeDecimal, "decimal", "dec", CategoryFixed16, 16},
	TypeGuid:           {TypeGuid, "guid", "guid", CategoryFixed16, 16},
	TypeDateTimeOffset: {TypeDateTimeOffset, "datetimeoffset", "dto", CategoryFixed16, 16},
	TypeString:         {TypeString, "string", "str", CategoryChars, charsSlotSize},
	TypeBinary:         {TypeBinary, "binary", "bin", CategoryBytes, bytesSlotSize},
}

// LookupType returns the type table entry for t.
func LookupType(t ScalarType) (TypeInfo, bool) {
	if t == TypeUnknown || int(t) >= len(typeTable) {
		return TypeInfo{}, false
	}
	return typeTable[t], true
}

// TypeByTag resolves a persisted file tag back to its scalar type.
func TypeByTag(tag string) (ScalarType, bool) {
	for _, info := range typeTable {
		if info.Type != TypeUnknown && info.Tag == tag {
			return info.Type, true
		}
	}
	return TypeUnknown, false
}

// TypeByName resolves a type name such as "int64" or "string".
func TypeByName(name string) (ScalarType, bool) {
	for _, info := range typeTable {
		if info.Type != TypeUnknown && info.Name == name {
			return info.Type, true
		}
	}
	return TypeUnknown, false
}

// Category returns the storage category of t, or 0 for unknown types.
func (t ScalarType) Category() Category {
	info, _ := LookupType(t)
	return info.Category
}

func (t ScalarType) String() string {
	if info, ok := LookupType(t); ok {
		return info.Name
	}
	return fmt.Sprintf("ScalarType(%d)", uint8(t))
}

// Tag returns the short file tag of t.
func (t ScalarType) Tag() string {
	info, _ := LookupType(t)
	return info.Tag
}
