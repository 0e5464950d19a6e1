package persist

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/coldb/blobstore"
	"github.com/hupe1980/coldb/internal/resource"
	"github.com/hupe1980/coldb/model"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Version: FormatVersion, Kind: KindData, Compression: CompressionLZ4, Count: 12345}
	b, err := h.AppendBinary(nil)
	require.NoError(t, err)
	require.Len(t, b, HeaderSize)
	assert.Equal(t, "CDB1", string(b[:4]))

	got, err := ReadHeader(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestReadHeaderRejects(t *testing.T) {
	valid, _ := Header{Version: FormatVersion, Kind: KindKeys}.AppendBinary(nil)

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		err    error
	}{
		{"Short", func(b []byte) []byte { return b[:10] }, ErrMalformedStream},
		{"Magic", func(b []byte) []byte { b[0] = 'X'; return b }, ErrMalformedStream},
		{"OldVersion", func(b []byte) []byte { binary.LittleEndian.PutUint16(b[4:], 0); return b }, ErrIncompatibleVersion},
		{"NewVersion", func(b []byte) []byte { binary.LittleEndian.PutUint16(b[4:], FormatVersion+1); return b }, ErrIncompatibleVersion},
		{"Kind", func(b []byte) []byte { b[6] = 99; return b }, ErrMalformedStream},
		{"Compression", func(b []byte) []byte { b[7] = 99; return b }, ErrMalformedStream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.mutate(bytes.Clone(valid))
			_, err := ReadHeader(bytes.NewReader(b))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4, CompressionSnappy, CompressionGzip} {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	got, err := ParseCompression(" ZSTD ")
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, got)

	_, err = ParseCompression("brotli")
	assert.Error(t, err)
}

func TestCodecs(t *testing.T) {
	payload := bytes.Repeat([]byte("columnar in-memory document store "), 500)
	for _, c := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4, CompressionSnappy, CompressionGzip} {
		t.Run(c.String(), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, c)
			require.NoError(t, err)
			_, err = w.Write(payload)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			if c != CompressionNone {
				assert.Less(t, buf.Len(), len(payload))
			}

			r, err := NewReader(&buf, c)
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			require.NoError(t, r.Close())
			assert.Equal(t, payload, got)
		})
	}
}

func TestColumnNames(t *testing.T) {
	f := model.Field{ID: 7, Name: "last-name", Type: model.TypeString}
	assert.Equal(t, "people/last-name-7-str.fnn", NotNullsName("people", f))
	assert.Equal(t, "people/last-name-7-str.fdata", DataName("people", f))
	assert.Equal(t, "people/keys.fkey", KeysName("people"))
	assert.Equal(t, "people/validity.fvalid", ValidityName("people"))
	assert.Equal(t, "people/stats.json", StatsName("people"))

	cf, err := ParseColumnName(DataName("people", f))
	require.NoError(t, err)
	assert.Equal(t, ColumnFile{DocumentType: "people", Field: f, Kind: KindData}, cf)

	cf, err = ParseColumnName("people/age-1-i64.fnn")
	require.NoError(t, err)
	assert.Equal(t, KindNotNulls, cf.Kind)
	assert.Equal(t, model.TypeInt64, cf.Field.Type)

	for _, bad := range []string{
		"people/keys.fkey",
		"people/age.fdata",
		"people/age-1.fdata",
		"people/age-x-i64.fdata",
		"people/age-1-zzz.fdata",
		"people/-1-i64.fdata",
	} {
		_, err := ParseColumnName(bad)
		assert.Error(t, err, bad)
	}
}

func TestDescriptorValidate(t *testing.T) {
	fields := []model.Field{{ID: 1, Name: "age", Type: model.TypeInt64}}
	d := NewDescriptor("people", 10, 8, CompressionZstd, fields)
	require.NoError(t, d.Validate())
	assert.Equal(t, "zstd", d.Compression)
	assert.Equal(t, "i64", d.Fields[0].Type)

	f, err := d.Fields[0].Field()
	require.NoError(t, err)
	assert.Equal(t, fields[0], f)

	d.FormatVersion = 0
	assert.ErrorIs(t, d.Validate(), ErrIncompatibleVersion)

	d = NewDescriptor("people", 3, 4, CompressionNone, nil)
	assert.ErrorIs(t, d.Validate(), ErrMalformedStream)
}

func TestDirStreamRoundTrip(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionZstd, CompressionSnappy} {
		t.Run(c.String(), func(t *testing.T) {
			ctx := t.Context()
			rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 30})
			d := NewDir(blobstore.NewMemoryStore(), WithCompression(c), WithResourceController(rc))

			err := d.WriteStream(ctx, "people/keys.fkey", KindKeys, 3, func(w io.Writer) error {
				_, err := w.Write([]byte("abc"))
				return err
			})
			require.NoError(t, err)

			err = d.ReadStream(ctx, "people/keys.fkey", KindKeys, func(r io.Reader, h Header) error {
				assert.Equal(t, uint64(3), h.Count)
				assert.Equal(t, c, h.Compression)
				buf := make([]byte, 3)
				_, err := io.ReadFull(r, buf)
				assert.Equal(t, "abc", string(buf))
				return err
			})
			require.NoError(t, err)
		})
	}
}

func TestDirReadStreamErrors(t *testing.T) {
	ctx := t.Context()
	d := NewDir(blobstore.NewMemoryStore())
	require.NoError(t, d.WriteStream(ctx, "f", KindData, 1, func(w io.Writer) error {
		_, err := w.Write([]byte("abcd"))
		return err
	}))

	t.Run("WrongKind", func(t *testing.T) {
		err := d.ReadStream(ctx, "f", KindKeys, func(io.Reader, Header) error { return nil })
		assert.ErrorIs(t, err, ErrMalformedStream)
	})

	t.Run("Trailing", func(t *testing.T) {
		err := d.ReadStream(ctx, "f", KindData, func(r io.Reader, _ Header) error {
			_, err := io.ReadFull(r, make([]byte, 2))
			return err
		})
		assert.ErrorIs(t, err, ErrMalformedStream)
	})

	t.Run("Missing", func(t *testing.T) {
		err := d.ReadStream(ctx, "nope", KindData, func(io.Reader, Header) error { return nil })
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})
}

func TestDirWriteStreamFailureNotPublished(t *testing.T) {
	ctx := t.Context()
	d := NewDir(blobstore.NewLocalStore(t.TempDir()))

	err := d.WriteStream(ctx, "people/age-1-i64.fdata", KindData, 1, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return io.ErrShortWrite
	})
	require.ErrorIs(t, err, io.ErrShortWrite)

	ok, err := d.Exists(ctx, "people/age-1-i64.fdata")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDirJSON(t *testing.T) {
	ctx := t.Context()
	d := NewDir(blobstore.NewMemoryStore())

	_, err := d.ReadRoot(ctx)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	require.NoError(t, d.WriteJSON(ctx, RootName, NewRoot([]string{"people"})))
	root, err := d.ReadRoot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"people"}, root.DocumentTypes)

	desc := NewDescriptor("people", 2, 1, CompressionNone, nil)
	require.NoError(t, d.WriteJSON(ctx, StatsName("people"), desc))
	got, err := d.ReadDescriptor(ctx, "people")
	require.NoError(t, err)
	assert.Equal(t, 2, got.SlotCount)

	require.NoError(t, d.WriteJSON(ctx, StatsName("orders"), desc))
	_, err = d.ReadDescriptor(ctx, "orders")
	assert.ErrorIs(t, err, ErrMalformedStream)

	require.NoError(t, d.Store().Put(ctx, "broken.json", []byte("{")))
	assert.ErrorIs(t, d.ReadJSON(ctx, "broken.json", &struct{}{}), ErrMalformedStream)
}

func TestDirPruneAndSize(t *testing.T) {
	ctx := t.Context()
	store := blobstore.NewMemoryStore()
	d := NewDir(store)
	require.NoError(t, store.Put(ctx, "people/a.fdata", []byte("12")))
	require.NoError(t, store.Put(ctx, "people/b.fdata", []byte("345")))

	size, err := d.Size(ctx, "people/")
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	removed, err := d.Prune(ctx, "people/", map[string]bool{"people/a.fdata": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"people/b.fdata"}, removed)
}
