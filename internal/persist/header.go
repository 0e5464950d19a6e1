package persist

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// FormatVersion is the version written by this build.
	FormatVersion uint16 = 1
	// MinCompatibleVersion is the oldest version this build can read.
	MinCompatibleVersion uint16 = 1

	// HeaderSize is the size of a binary file header.
	HeaderSize = 24

	magic = "CDB1"
)

var (
	// ErrMalformedStream is returned when a file header or payload cannot be decoded.
	ErrMalformedStream = errors.New("persist: malformed stream")
	// ErrIncompatibleVersion is returned for files written by an unsupported format version.
	ErrIncompatibleVersion = errors.New("persist: incompatible format version")
)

// Kind identifies the payload of a binary file.
type Kind uint8

const (
	KindNotNulls Kind = iota + 1
	KindData
	KindKeys
	KindValidity
)

func (k Kind) String() string {
	switch k {
	case KindNotNulls:
		return "notnulls"
	case KindData:
		return "data"
	case KindKeys:
		return "keys"
	case KindValidity:
		return "validity"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Header precedes every binary file.
type Header struct {
	Version     uint16
	Kind        Kind
	Compression Compression
	// Count is the number of slots the payload covers.
	Count uint64
}

// AppendBinary appends the encoded header to b.
func (h Header) AppendBinary(b []byte) ([]byte, error) {
	b = append(b, magic...)
	b = binary.LittleEndian.AppendUint16(b, h.Version)
	b = append(b, byte(h.Kind), byte(h.Compression))
	b = binary.LittleEndian.AppendUint64(b, h.Count)
	b = binary.LittleEndian.AppendUint64(b, 0)
	return b, nil
}

// ReadHeader decodes and validates a header.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, fmt.Errorf("%w: header: %w", ErrMalformedStream, err)
	}
	if string(buf[:4]) != magic {
		return Header{}, fmt.Errorf("%w: bad magic %q", ErrMalformedStream, buf[:4])
	}
	h := Header{
		Version:     binary.LittleEndian.Uint16(buf[4:6]),
		Kind:        Kind(buf[6]),
		Compression: Compression(buf[7]),
		Count:       binary.LittleEndian.Uint64(buf[8:16]),
	}
	if err := CheckVersion(h.Version); err != nil {
		return Header{}, err
	}
	if h.Kind < KindNotNulls || h.Kind > KindValidity {
		return Header{}, fmt.Errorf("%w: unknown kind %d", ErrMalformedStream, h.Kind)
	}
	if !h.Compression.valid() {
		return Header{}, fmt.Errorf("%w: unknown compression %d", ErrMalformedStream, h.Compression)
	}
	return h, nil
}

// CheckVersion rejects versions outside [MinCompatibleVersion, FormatVersion].
func CheckVersion(v uint16) error {
	if v < MinCompatibleVersion || v > FormatVersion {
		return fmt.Errorf("%w: %d (supported %d..%d)", ErrIncompatibleVersion, v, MinCompatibleVersion, FormatVersion)
	}
	return nil
}
