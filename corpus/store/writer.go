package store

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Writers produce the on-disk files a Store reads. They are used by the
// single-writer compile step only; an opened corpus is never written to.
// Every writer publishes atomically: write to path+".tmp", then rename.

func writeAtomic(path string, write func(w *bufio.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := write(w); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	_ = os.Remove(path) // Windows: rename fails when the target exists
	return os.Rename(tmp, path)
}

func writeHeader(w *bufio.Writer, h *Header) error {
	b, err := EncodeHeader(h)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// WriteArray writes a dense uint32 array file.
func WriteArray(path string, vals []uint32) error {
	return writeAtomic(path, func(w *bufio.Writer) error {
		h := &Header{Kind: KindArray, Rows: uint64(len(vals))}
		if err := writeHeader(w, h); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, vals)
	})
}

// WriteCSR writes a sparse relation file. values may be nil for a plain
// CSR; otherwise every values row must match its data row in length.
func WriteCSR(path string, rows [][]uint32, values [][]uint32) error {
	if values != nil && len(values) != len(rows) {
		return fmt.Errorf("csr write: %d value rows for %d data rows", len(values), len(rows))
	}
	var total uint64
	offsets := make([]uint64, len(rows)+1)
	for i, row := range rows {
		if values != nil && len(values[i]) != len(row) {
			return fmt.Errorf("csr write: row %d has %d values for %d elements", i, len(values[i]), len(row))
		}
		total += uint64(len(row))
		offsets[i+1] = total
	}
	return writeAtomic(path, func(w *bufio.Writer) error {
		h := &Header{Kind: KindCSR, Rows: uint64(len(rows)), Length: total}
		if values != nil {
			h.Flags |= FlagValues
		}
		if err := writeHeader(w, h); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, offsets); err != nil {
			return err
		}
		for _, row := range rows {
			if err := binary.Write(w, binary.LittleEndian, row); err != nil {
				return err
			}
		}
		if values != nil {
			for _, row := range values {
				if err := binary.Write(w, binary.LittleEndian, row); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// WriteStringPool writes a string pool file. vals[i] is the value of row i;
// present[i] false marks the row absent (distinct from the empty string).
// Equal values share one table entry.
func WriteStringPool(path string, vals []string, present []bool, ct CompressionType) error {
	if len(present) != len(vals) {
		return fmt.Errorf("pool write: %d presence flags for %d values", len(present), len(vals))
	}
	index := make([]uint32, len(vals))
	seen := make(map[string]uint32)
	var table []string
	for i, v := range vals {
		if !present[i] {
			index[i] = AbsentIndex
			continue
		}
		idx, ok := seen[v]
		if !ok {
			idx = uint32(len(table))
			table = append(table, v)
			seen[v] = idx
		}
		index[i] = idx
	}
	frame, err := compressFrame(encodeTable(table), ct)
	if err != nil {
		return err
	}
	return writeAtomic(path, func(w *bufio.Writer) error {
		h := &Header{
			Kind:   KindPool,
			Rows:   uint64(len(vals)),
			Length: uint64(len(frame)),
			Aux:    uint64(len(table)),
		}
		if err := writeHeader(w, h); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, index); err != nil {
			return err
		}
		_, err := w.Write(frame)
		return err
	})
}

// WriteBlob writes v as indented JSON.
func WriteBlob(path string, v any) error {
	return writeAtomic(path, func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}
