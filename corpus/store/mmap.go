package store

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/edsrzf/mmap-go"
)

// mapping is a read-only memory-mapped corpus file.
type mapping struct {
	f    *os.File
	data mmap.MMap
}

// openMapping opens path and maps it read-only.
func openMapping(path string) (*mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &mapping{f: f, data: m}, nil
}

// bytes returns the full mapped file.
func (m *mapping) bytes() []byte {
	return m.data
}

// close unmaps the file and closes it. Safe to call more than once.
func (m *mapping) close() error {
	if m.data != nil {
		if err := m.data.Unmap(); err != nil {
			return err
		}
		m.data = nil
	}
	if m.f != nil {
		err := m.f.Close()
		m.f = nil
		return err
	}
	return nil
}

// u32view returns a []uint32 view of b. The slice is valid until the
// mapping is closed. Caller must not modify it.
func u32view(b []byte) []uint32 {
	if len(b) == 0 {
		return nil
	}
	ptr := unsafe.Pointer(&b[0])
	return unsafe.Slice((*uint32)(ptr), len(b)/4)
}

// u64view returns a []uint64 view of b. Same validity rules as u32view.
func u64view(b []byte) []uint64 {
	if len(b) == 0 {
		return nil
	}
	ptr := unsafe.Pointer(&b[0])
	return unsafe.Slice((*uint64)(ptr), len(b)/8)
}
