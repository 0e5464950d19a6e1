package persist

import (
	"fmt"
	"time"

	"github.com/hupe1980/coldb/model"
)

// FieldDescriptor records one persisted column.
type FieldDescriptor struct {
	ID   uint32 `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Field resolves the descriptor to a model.Field.
func (f FieldDescriptor) Field() (model.Field, error) {
	t, ok := model.TypeByTag(f.Type)
	if !ok {
		return model.Field{}, fmt.Errorf("persist: field %s: unknown type tag %q", f.Name, f.Type)
	}
	return model.Field{ID: f.ID, Name: f.Name, Type: t}, nil
}

// Descriptor is the stats record of one flushed container.
type Descriptor struct {
	FormatVersion uint16            `json:"format_version"`
	DocumentType  string            `json:"document_type"`
	SlotCount     int               `json:"slot_count"`
	LiveCount     int               `json:"live_count"`
	Compression   string            `json:"compression"`
	Fields        []FieldDescriptor `json:"fields"`
	CreatedAt     time.Time         `json:"created_at"`
}

// NewDescriptor creates a descriptor for the given fields at the current version.
func NewDescriptor(doctype string, slots, live int, c Compression, fields []model.Field) *Descriptor {
	d := &Descriptor{
		FormatVersion: FormatVersion,
		DocumentType:  doctype,
		SlotCount:     slots,
		LiveCount:     live,
		Compression:   c.String(),
		Fields:        make([]FieldDescriptor, 0, len(fields)),
		CreatedAt:     time.Now().UTC(),
	}
	for _, f := range fields {
		d.Fields = append(d.Fields, FieldDescriptor{ID: f.ID, Name: f.Name, Type: f.Type.Tag()})
	}
	return d
}

// Validate checks the format version and counts.
func (d *Descriptor) Validate() error {
	if err := CheckVersion(d.FormatVersion); err != nil {
		return fmt.Errorf("%s: %w", d.DocumentType, err)
	}
	if d.SlotCount < 0 || d.LiveCount < 0 || d.LiveCount > d.SlotCount {
		return fmt.Errorf("%w: %s: slot count %d, live count %d", ErrMalformedStream, d.DocumentType, d.SlotCount, d.LiveCount)
	}
	return nil
}

// Root lists the document types of a flushed store.
type Root struct {
	FormatVersion uint16    `json:"format_version"`
	DocumentTypes []string  `json:"document_types"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewRoot creates a root descriptor at the current version.
func NewRoot(doctypes []string) *Root {
	return &Root{
		FormatVersion: FormatVersion,
		DocumentTypes: doctypes,
		CreatedAt:     time.Now().UTC(),
	}
}

// Validate checks the format version.
func (r *Root) Validate() error { return CheckVersion(r.FormatVersion) }
