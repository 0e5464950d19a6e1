package persist

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/hupe1980/coldb/model"
)

const (
	// RootName is the root descriptor listing document types.
	RootName = "coldb.json"

	StatsFile    = "stats.json"
	KeysFile     = "keys.fkey"
	ValidityFile = "validity.fvalid"

	NotNullsExt = ".fnn"
	DataExt     = ".fdata"
)

// ColumnBase returns "{name}-{id}-{tag}" for a field.
func ColumnBase(f model.Field) string {
	return fmt.Sprintf("%s-%d-%s", f.Name, f.ID, f.Type.Tag())
}

// NotNullsName returns the NotNulls file of a field.
func NotNullsName(doctype string, f model.Field) string {
	return path.Join(doctype, ColumnBase(f)+NotNullsExt)
}

// DataName returns the data file of a field.
func DataName(doctype string, f model.Field) string {
	return path.Join(doctype, ColumnBase(f)+DataExt)
}

// KeysName returns the key backbone file of a document type.
func KeysName(doctype string) string { return path.Join(doctype, KeysFile) }

// ValidityName returns the validity file of a document type.
func ValidityName(doctype string) string { return path.Join(doctype, ValidityFile) }

// StatsName returns the descriptor of a document type.
func StatsName(doctype string) string { return path.Join(doctype, StatsFile) }

// ColumnFile is a parsed column file name.
type ColumnFile struct {
	DocumentType string
	Field        model.Field
	Kind         Kind
}

// ParseColumnName parses "{doctype}/{name}-{id}-{tag}.{fnn|fdata}".
// Field names may contain dashes, so the id and tag are taken from the right.
func ParseColumnName(name string) (ColumnFile, error) {
	dir, file := path.Split(name)
	var cf ColumnFile
	cf.DocumentType = strings.TrimSuffix(dir, "/")

	switch ext := path.Ext(file); ext {
	case NotNullsExt:
		cf.Kind = KindNotNulls
	case DataExt:
		cf.Kind = KindData
	default:
		return cf, fmt.Errorf("persist: %s: not a column file", name)
	}
	base := strings.TrimSuffix(file, path.Ext(file))

	i := strings.LastIndexByte(base, '-')
	if i <= 0 {
		return cf, fmt.Errorf("persist: %s: missing type tag", name)
	}
	typ, ok := model.TypeByTag(base[i+1:])
	if !ok {
		return cf, fmt.Errorf("persist: %s: unknown type tag %q", name, base[i+1:])
	}
	base = base[:i]

	j := strings.LastIndexByte(base, '-')
	if j <= 0 {
		return cf, fmt.Errorf("persist: %s: missing field id", name)
	}
	id, err := strconv.ParseUint(base[j+1:], 10, 32)
	if err != nil {
		return cf, fmt.Errorf("persist: %s: field id: %w", name, err)
	}
	cf.Field = model.Field{ID: uint32(id), Name: base[:j], Type: typ}
	return cf, nil
}
