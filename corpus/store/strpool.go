package store

import (
	"encoding/binary"
	"fmt"
)

// AbsentIndex is the reserved pool index marking "no value assigned".
// It is distinct from an index pointing at the empty string.
const AbsentIndex = ^uint32(0)

// StringPool resolves per-row string values through a deduplicated table
// of unique strings. The per-row index region stays memory-mapped; the
// unique-string table is decoded eagerly at load, since variable-length
// records are poor mmap candidates.
type StringPool struct {
	index []uint32 // mapped view, one entry per row
	table []string
}

// Rows returns the number of rows covered by the pool.
func (p *StringPool) Rows() int {
	return len(p.index)
}

// Unique returns the number of distinct strings in the pool.
func (p *StringPool) Unique() int {
	return len(p.table)
}

// Value returns the string assigned to row i, or ("", false) when the row
// has no value.
func (p *StringPool) Value(i int) (string, bool) {
	if i < 0 || i >= len(p.index) {
		return "", false
	}
	idx := p.index[i]
	if idx == AbsentIndex {
		return "", false
	}
	return p.table[idx], true
}

// Index returns the raw pool index for row i (AbsentIndex when unset).
// Rows sharing a value share an index, so indices compare as values.
func (p *StringPool) Index(i int) uint32 {
	return p.index[i]
}

// Lookup returns the pool index of value, or (0, false) when no row uses it.
func (p *StringPool) Lookup(value string) (uint32, bool) {
	for i, s := range p.table {
		if s == value {
			return uint32(i), true
		}
	}
	return 0, false
}

// decodeTable parses a raw (decompressed) table region: count length-prefixed
// strings back to back.
func decodeTable(raw []byte, count uint64) ([]string, error) {
	table := make([]string, 0, count)
	for len(table) < int(count) {
		if len(raw) < 4 {
			return nil, fmt.Errorf("%w: string table truncated", ErrCorrupt)
		}
		n := binary.LittleEndian.Uint32(raw)
		raw = raw[4:]
		if uint32(len(raw)) < n {
			return nil, fmt.Errorf("%w: string table entry truncated", ErrCorrupt)
		}
		table = append(table, string(raw[:n]))
		raw = raw[n:]
	}
	return table, nil
}

// encodeTable is the inverse of decodeTable.
func encodeTable(table []string) []byte {
	var size int
	for _, s := range table {
		size += 4 + len(s)
	}
	out := make([]byte, 0, size)
	for _, s := range table {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(s)))
		out = append(out, s...)
	}
	return out
}
