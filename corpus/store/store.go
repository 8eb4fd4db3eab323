package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// MetaFile is the metadata blob every corpus version directory must carry.
const MetaFile = "meta.json"

// Store provides typed, lazily-materialized, read-only access to the files
// of one corpus version directory. Views are cached by relative-path key;
// the cache is owned exclusively by this store. A store issues no writes
// against an opened corpus.
type Store struct {
	dir    string
	maps   map[string]*mapping
	arrays map[string][]uint32
	csrs   map[string]CSR
	pools  map[string]*StringPool
}

// Open opens a corpus version directory. It fails with ErrNotFound when the
// metadata file is absent.
func Open(dir string) (*Store, error) {
	if _, err := os.Stat(filepath.Join(dir, MetaFile)); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filepath.Join(dir, MetaFile))
		}
		return nil, err
	}
	s := &Store{dir: dir}
	s.reset()
	return s, nil
}

func (s *Store) reset() {
	s.maps = make(map[string]*mapping)
	s.arrays = make(map[string][]uint32)
	s.csrs = make(map[string]CSR)
	s.pools = make(map[string]*StringPool)
}

// Dir returns the directory this store was opened on.
func (s *Store) Dir() string {
	return s.dir
}

// Has reports whether a file exists for key.
func (s *Store) Has(key string) bool {
	_, err := os.Stat(filepath.Join(s.dir, key))
	return err == nil
}

// Blob decodes the JSON file at key into v.
func (s *Store) Blob(key string, v any) error {
	b, err := os.ReadFile(filepath.Join(s.dir, key))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return nil
}

func (s *Store) open(key string, kind Kind) (*mapping, *Header, error) {
	m, ok := s.maps[key]
	if !ok {
		var err error
		m, err = openMapping(filepath.Join(s.dir, key))
		if err != nil {
			return nil, nil, err
		}
		s.maps[key] = m
	}
	h, err := DecodeHeader(m.bytes(), kind)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", key, err)
	}
	return m, h, nil
}

// Array returns the dense uint32 array stored at key. The first access maps
// the backing file; later accesses return the cached view.
func (s *Store) Array(key string) ([]uint32, error) {
	if a, ok := s.arrays[key]; ok {
		return a, nil
	}
	m, h, err := s.open(key, KindArray)
	if err != nil {
		return nil, err
	}
	want := HeaderSize + 4*h.Rows
	if uint64(len(m.bytes())) != want {
		return nil, fmt.Errorf("%w: %s: %d rows declared, file is %d bytes", ErrCorrupt, key, h.Rows, len(m.bytes()))
	}
	a := u32view(m.bytes()[HeaderSize:want])
	s.arrays[key] = a
	return a, nil
}

// CSR returns the sparse relation stored at key, validating its offsets.
func (s *Store) CSR(key string) (CSR, error) {
	if c, ok := s.csrs[key]; ok {
		return c, nil
	}
	m, h, err := s.open(key, KindCSR)
	if err != nil {
		return CSR{}, err
	}
	offEnd := HeaderSize + 8*(h.Rows+1)
	dataEnd := offEnd + 4*h.Length
	want := dataEnd
	if h.Flags&FlagValues != 0 {
		want += 4 * h.Length
	}
	if uint64(len(m.bytes())) != want {
		return CSR{}, fmt.Errorf("%w: %s: declared %d rows / %d elements, file is %d bytes", ErrCorrupt, key, h.Rows, h.Length, len(m.bytes()))
	}
	b := m.bytes()
	c := CSR{
		Offsets: u64view(b[HeaderSize:offEnd]),
		Data:    u32view(b[offEnd:dataEnd]),
	}
	if h.Flags&FlagValues != 0 {
		c.Values = u32view(b[dataEnd:want])
	}
	if err := c.validate(); err != nil {
		return CSR{}, fmt.Errorf("%s: %w", key, err)
	}
	s.csrs[key] = c
	return c, nil
}

// StringPool returns the string pool stored at key. The per-row index stays
// mapped; the unique-string table is decoded eagerly on first access.
func (s *Store) StringPool(key string) (*StringPool, error) {
	if p, ok := s.pools[key]; ok {
		return p, nil
	}
	m, h, err := s.open(key, KindPool)
	if err != nil {
		return nil, err
	}
	idxEnd := HeaderSize + 4*h.Rows
	want := idxEnd + h.Length
	if uint64(len(m.bytes())) != want {
		return nil, fmt.Errorf("%w: %s: declared %d rows / %d table bytes, file is %d bytes", ErrCorrupt, key, h.Rows, h.Length, len(m.bytes()))
	}
	b := m.bytes()
	raw, err := decompressFrame(b[idxEnd:want])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	table, err := decodeTable(raw, h.Aux)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	index := u32view(b[HeaderSize:idxEnd])
	for i, idx := range index {
		if idx != AbsentIndex && idx >= uint32(len(table)) {
			return nil, fmt.Errorf("%w: %s: row %d points past table (%d >= %d)", ErrCorrupt, key, i, idx, len(table))
		}
	}
	p := &StringPool{index: index, table: table}
	s.pools[key] = p
	return p, nil
}

// Hint advises the OS about the expected access pattern for the file at
// key, if it is currently mapped. Best effort.
func (s *Store) Hint(key string, hint AccessHint) {
	if m, ok := s.maps[key]; ok {
		Advise(m.bytes(), hint)
	}
}

// Close releases all cached mappings. Safe to call multiple times; later
// accesses re-open lazily.
func (s *Store) Close() error {
	var first error
	for _, m := range s.maps {
		if err := m.close(); err != nil && first == nil {
			first = err
		}
	}
	s.reset()
	return first
}
