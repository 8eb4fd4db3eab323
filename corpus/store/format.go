package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	// HeaderSize is the fixed header size for every binary corpus file.
	HeaderSize = 64

	// Magic identifies a valid loom corpus file.
	Magic = "LOOM"

	// FormatVersion is the current file format version.
	FormatVersion uint16 = 1
)

// Kind identifies the payload layout that follows a file header.
type Kind uint16

const (
	// KindArray is a dense uint32 array, one value per row.
	KindArray Kind = 1
	// KindCSR is a sparse row relation: uint64 offsets[rows+1] followed by
	// uint32 data, optionally followed by a uint32 values section of the
	// same length as data (FlagValues).
	KindCSR Kind = 2
	// KindPool is a string pool: a mappable uint32 per-row index region
	// followed by a compressed table of unique strings.
	KindPool Kind = 3
)

// Header flags.
const (
	// FlagValues marks a CSR file that carries a per-edge values section.
	FlagValues uint32 = 1 << 0
)

// Header holds the persisted metadata of a single corpus file.
type Header struct {
	Magic    [4]byte
	Version  uint16
	Kind     Kind
	Flags    uint32
	Rows     uint64
	Length   uint64 // total data elements (CSR data length, pool table byte length)
	Aux      uint64 // kind-specific: pool unique-string count
	Reserved [24]byte // pad to 64 bytes
}

// EncodeHeader writes the header to a byte slice, padded to HeaderSize.
func EncodeHeader(h *Header) ([]byte, error) {
	if h == nil {
		return nil, fmt.Errorf("header is nil")
	}
	copy(h.Magic[:], Magic)
	h.Version = FormatVersion
	var w bytes.Buffer
	if err := binary.Write(&w, binary.LittleEndian, h); err != nil {
		return nil, err
	}
	b := w.Bytes()
	if len(b) < HeaderSize {
		padded := make([]byte, HeaderSize)
		copy(padded, b)
		return padded, nil
	}
	return b, nil
}

// DecodeHeader reads the header from src and checks magic, version and kind.
func DecodeHeader(src []byte, want Kind) (*Header, error) {
	if len(src) < HeaderSize {
		return nil, fmt.Errorf("%w: header too short (%d bytes)", ErrCorrupt, len(src))
	}
	var h Header
	r := bytes.NewReader(src[:HeaderSize])
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	if string(h.Magic[:]) != Magic {
		return nil, fmt.Errorf("%w: invalid magic %q", ErrCorrupt, h.Magic)
	}
	if h.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrCorrupt, h.Version)
	}
	if h.Kind != want {
		return nil, fmt.Errorf("%w: file kind %d, expected %d", ErrCorrupt, h.Kind, want)
	}
	return &h, nil
}
