package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/coldb/blobstore"
	"github.com/hupe1980/coldb/internal/resource"
)

// Dir reads and writes persisted files in a blob store.
type Dir struct {
	store       blobstore.BlobStore
	compression Compression
	rc          *resource.Controller
}

// Option configures a Dir.
type Option func(*Dir)

// WithCompression sets the codec for files written through the Dir.
// Reads use the codec recorded in each file.
func WithCompression(c Compression) Option {
	return func(d *Dir) { d.compression = c }
}

// WithResourceController throttles file IO through rc.
func WithResourceController(rc *resource.Controller) Option {
	return func(d *Dir) { d.rc = rc }
}

// NewDir creates a Dir over store.
func NewDir(store blobstore.BlobStore, opts ...Option) *Dir {
	d := &Dir{store: store}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Store returns the underlying blob store.
func (d *Dir) Store() blobstore.BlobStore { return d.store }

// Compression returns the codec used for writes.
func (d *Dir) Compression() Compression { return d.compression }

// WriteStream writes a binary file. fn receives the payload writer; the
// header, compression and rate limiting are applied around it. The file is
// only published when fn and every flush succeed.
func (d *Dir) WriteStream(ctx context.Context, name string, kind Kind, count int, fn func(w io.Writer) error) (err error) {
	blob, err := d.store.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("persist: create %s: %w", name, err)
	}
	defer func() {
		if err == nil {
			return
		}
		if a, ok := blob.(blobstore.Abortable); ok {
			_ = a.Abort()
		} else {
			_ = blob.Close()
		}
		err = fmt.Errorf("persist: write %s: %w", name, err)
	}()

	var w io.Writer = blob
	if d.rc != nil {
		w = resource.NewRateLimitedWriter(ctx, blob, d.rc)
	}

	h := Header{Version: FormatVersion, Kind: kind, Compression: d.compression, Count: uint64(count)}
	hdr, _ := h.AppendBinary(make([]byte, 0, HeaderSize))
	if _, err := w.Write(hdr); err != nil {
		return err
	}

	cw, err := NewWriter(w, d.compression)
	if err != nil {
		return err
	}
	if err := fn(cw); err != nil {
		_ = cw.Close()
		return err
	}
	if err := cw.Close(); err != nil {
		return err
	}
	if err := blob.Sync(); err != nil {
		return err
	}
	return blob.Close()
}

// ReadStream opens a binary file, validates its header against kind and
// hands the decoded payload to fn. Payload bytes fn leaves unread are an
// error.
func (d *Dir) ReadStream(ctx context.Context, name string, kind Kind, fn func(r io.Reader, h Header) error) error {
	blob, err := d.store.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("persist: open %s: %w", name, err)
	}
	defer blob.Close()

	rc, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return fmt.Errorf("persist: read %s: %w", name, err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if d.rc != nil {
		r = resource.NewRateLimitedReader(ctx, rc, d.rc)
	}

	h, err := ReadHeader(r)
	if err != nil {
		return fmt.Errorf("persist: %s: %w", name, err)
	}
	if h.Kind != kind {
		return fmt.Errorf("%w: %s: kind %s, want %s", ErrMalformedStream, name, h.Kind, kind)
	}

	dr, err := NewReader(r, h.Compression)
	if err != nil {
		return fmt.Errorf("persist: %s: %w", name, err)
	}
	defer dr.Close()

	if err := fn(dr, h); err != nil {
		return fmt.Errorf("persist: %s: %w", name, err)
	}
	if n, err := io.Copy(io.Discard, dr); err != nil {
		return fmt.Errorf("persist: %s: %w", name, err)
	} else if n > 0 {
		return fmt.Errorf("%w: %s: %d trailing bytes", ErrMalformedStream, name, n)
	}
	return nil
}

// WriteJSON stores v as indented JSON.
func (d *Dir) WriteJSON(ctx context.Context, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("persist: encode %s: %w", name, err)
	}
	if err := d.store.Put(ctx, name, data); err != nil {
		return fmt.Errorf("persist: write %s: %w", name, err)
	}
	return nil
}

// ReadJSON decodes the JSON blob name into v.
func (d *Dir) ReadJSON(ctx context.Context, name string, v any) error {
	blob, err := d.store.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("persist: open %s: %w", name, err)
	}
	defer blob.Close()

	rc, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return fmt.Errorf("persist: read %s: %w", name, err)
	}
	defer rc.Close()

	dec := json.NewDecoder(rc)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedStream, name, err)
	}
	return nil
}

// ReadRoot loads the root descriptor. A missing root reports
// blobstore.ErrNotFound.
func (d *Dir) ReadRoot(ctx context.Context) (*Root, error) {
	var r Root
	if err := d.ReadJSON(ctx, RootName, &r); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// ReadDescriptor loads and validates the descriptor of doctype.
func (d *Dir) ReadDescriptor(ctx context.Context, doctype string) (*Descriptor, error) {
	var desc Descriptor
	if err := d.ReadJSON(ctx, StatsName(doctype), &desc); err != nil {
		return nil, err
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if desc.DocumentType != doctype {
		return nil, fmt.Errorf("%w: %s: descriptor names %q", ErrMalformedStream, doctype, desc.DocumentType)
	}
	return &desc, nil
}

// Exists reports whether name is present.
func (d *Dir) Exists(ctx context.Context, name string) (bool, error) {
	blob, err := d.store.Open(ctx, name)
	if errors.Is(err, blobstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, blob.Close()
}

// Prune deletes every blob under prefix that is not in keep.
func (d *Dir) Prune(ctx context.Context, prefix string, keep map[string]bool) ([]string, error) {
	names, err := d.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, name := range names {
		if keep[name] {
			continue
		}
		if err := d.store.Delete(ctx, name); err != nil {
			return removed, err
		}
		removed = append(removed, name)
	}
	return removed, nil
}

// Size returns the total byte size of the blobs under prefix.
func (d *Dir) Size(ctx context.Context, prefix string) (int64, error) {
	names, err := d.store.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, name := range names {
		blob, err := d.store.Open(ctx, name)
		if err != nil {
			return 0, err
		}
		total += blob.Size()
		_ = blob.Close()
	}
	return total, nil
}
