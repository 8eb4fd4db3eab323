package store

import "fmt"

// CSR is a compressed sparse row relation: row i occupies
// Data[Offsets[i]:Offsets[i+1]]. Values, when present, attaches one scalar
// to each data element. All slices are zero-copy views into the mapped
// file and must not be modified.
type CSR struct {
	Offsets []uint64
	Data    []uint32
	Values  []uint32
}

// Rows returns the number of rows in the relation.
func (c CSR) Rows() int {
	if len(c.Offsets) == 0 {
		return 0
	}
	return len(c.Offsets) - 1
}

// Row returns row i as a zero-copy view. The view is valid until the
// owning store is closed.
func (c CSR) Row(i int) []uint32 {
	return c.Data[c.Offsets[i]:c.Offsets[i+1]]
}

// RowCopy returns row i as an owned copy, safe to retain across Close.
func (c CSR) RowCopy(i int) []uint32 {
	row := c.Row(i)
	out := make([]uint32, len(row))
	copy(out, row)
	return out
}

// RowValues returns the values attached to row i, or nil for a plain CSR.
func (c CSR) RowValues(i int) []uint32 {
	if c.Values == nil {
		return nil
	}
	return c.Values[c.Offsets[i]:c.Offsets[i+1]]
}

// RowLen returns the length of row i without materializing it.
func (c CSR) RowLen(i int) int {
	return int(c.Offsets[i+1] - c.Offsets[i])
}

// validate checks the structural invariants of a freshly mapped CSR.
func (c CSR) validate() error {
	if len(c.Offsets) == 0 {
		return fmt.Errorf("%w: csr has no offsets", ErrCorrupt)
	}
	if c.Offsets[0] != 0 {
		return fmt.Errorf("%w: csr offsets[0] = %d", ErrCorrupt, c.Offsets[0])
	}
	for i := 1; i < len(c.Offsets); i++ {
		if c.Offsets[i] < c.Offsets[i-1] {
			return fmt.Errorf("%w: csr offsets decrease at %d", ErrCorrupt, i)
		}
	}
	if last := c.Offsets[len(c.Offsets)-1]; last != uint64(len(c.Data)) {
		return fmt.Errorf("%w: csr final offset %d, data length %d", ErrCorrupt, last, len(c.Data))
	}
	if c.Values != nil && len(c.Values) != len(c.Data) {
		return fmt.Errorf("%w: csr values length %d, data length %d", ErrCorrupt, len(c.Values), len(c.Data))
	}
	return nil
}
