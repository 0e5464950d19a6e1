package model

import (
	"errors"
	"fmt"
)

// ErrInvalidSchema is returned when a schema fails validation.
var ErrInvalidSchema = errors.New("invalid schema")

// Field describes one column of a document type.
type Field struct {
	// ID is stable across schema revisions and is encoded in persisted file names.
	ID   uint32
	Name string
	Type ScalarType
}

// Schema describes one document type.
//
// The position of a field in Fields is its ordinal. Row buffers and column
// lookups are indexed by ordinal.
type Schema struct {
	Name   string
	Fields []Field
}

// NewSchema creates a validated schema.
func NewSchema(name string, fields ...Field) (*Schema, error) {
	s := &Schema{Name: name, Fields: fields}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks names, IDs and types.
func (s *Schema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: document type name is empty", ErrInvalidSchema)
	}
	ids := make(map[uint32]struct{}, len(s.Fields))
	names := make(map[string]struct{}, len(s.Fields))
	for i, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: field %d of %q has no name", ErrInvalidSchema, i, s.Name)
		}
		if _, ok := LookupType(f.Type); !ok {
			return fmt.Errorf("%w: field %q has unknown type %s", ErrInvalidSchema, f.Name, f.Type)
		}
		if _, dup := ids[f.ID]; dup {
			return fmt.Errorf("%w: duplicate field id %d in %q", ErrInvalidSchema, f.ID, s.Name)
		}
		if _, dup := names[f.Name]; dup {
			return fmt.Errorf("%w: duplicate field name %q in %q", ErrInvalidSchema, f.Name, s.Name)
		}
		ids[f.ID] = struct{}{}
		names[f.Name] = struct{}{}
	}
	return nil
}

// Ordinal returns the ordinal of the field with the given ID.
func (s *Schema) Ordinal(id uint32) (int, bool) {
	for i, f := range s.Fields {
		if f.ID == id {
			return i, true
		}
	}
	return -1, false
}

// FieldByName returns the field with the given name and its ordinal.
func (s *Schema) FieldByName(name string) (Field, int, bool) {
	for i, f := range s.Fields {
		if f.Name == name {
			return f, i, true
		}
	}
	return Field{}, -1, false
}

// FieldByID returns the field with the given ID and its ordinal.
func (s *Schema) FieldByID(id uint32) (Field, int, bool) {
	i, ok := s.Ordinal(id)
	if !ok {
		return Field{}, -1, false
	}
	return s.Fields[i], i, true
}
