package corpus

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/ic-timon/loom/corpus/store"
)

// IntAbsent is the raw array value marking "no value assigned" for a
// numeric feature.
const IntAbsent = ^uint32(0)

// Feature is a read accessor for one scalar per-node feature, backed by
// either a string pool or a dense numeric array. Lookups are O(1) and
// allocate nothing.
type Feature struct {
	c    *Corpus
	name string
	pool *store.StringPool // string-valued feature
	arr  []uint32          // numeric feature, IntAbsent marks unset

	postings map[string]*roaring.Bitmap // value -> nodes, built lazily
}

// Feature returns the accessor for the named node feature, loading its
// backing file on first use.
func (c *Corpus) Feature(name string) (*Feature, error) {
	if f, ok := c.features[name]; ok {
		return f, nil
	}
	if c.selector != nil && !c.selector[name] && name != c.textFeature && name != c.afterFeature {
		return nil, fmt.Errorf("%w: %q excluded by feature selector", ErrUnknownFeature, name)
	}
	f := &Feature{c: c, name: name}
	poolKey := "features/" + name + ".pool"
	arrKey := "features/" + name + ".arr"
	switch {
	case c.st.Has(poolKey):
		pool, err := c.st.StringPool(poolKey)
		if err != nil {
			return nil, err
		}
		if uint32(pool.Rows()) != c.meta.MaxNode {
			return nil, fmt.Errorf("%w: feature %q covers %d nodes, want %d", store.ErrCorrupt, name, pool.Rows(), c.meta.MaxNode)
		}
		f.pool = pool
	case c.st.Has(arrKey):
		arr, err := c.st.Array(arrKey)
		if err != nil {
			return nil, err
		}
		if uint32(len(arr)) != c.meta.MaxNode {
			return nil, fmt.Errorf("%w: feature %q covers %d nodes, want %d", store.ErrCorrupt, name, len(arr), c.meta.MaxNode)
		}
		f.arr = arr
		c.st.Hint(arrKey, store.AccessRandom)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
	}
	c.features[name] = f
	return f, nil
}

// Name returns the feature name.
func (f *Feature) Name() string { return f.name }

// IsString reports whether the feature is string-valued.
func (f *Feature) IsString() bool { return f.pool != nil }

// Value returns the string value of node n, or ("", false) when n has no
// value. Numeric features render their value in decimal.
func (f *Feature) Value(n uint32) (string, bool) {
	if n < 1 || n > f.c.meta.MaxNode {
		return "", false
	}
	if f.pool != nil {
		return f.pool.Value(int(n - 1))
	}
	v := f.arr[n-1]
	if v == IntAbsent {
		return "", false
	}
	return fmt.Sprintf("%d", v), true
}

// Int returns the numeric value of node n, or (0, false) when n has no
// value or the feature is string-valued.
func (f *Feature) Int(n uint32) (int, bool) {
	if f.arr == nil || n < 1 || n > f.c.meta.MaxNode {
		return 0, false
	}
	v := f.arr[n-1]
	if v == IntAbsent {
		return 0, false
	}
	return int(v), true
}

// NodesWhere returns the set of nodes carrying the given string value as a
// posting bitmap. Built on first use per value and cached on the feature;
// the search engine uses it to prune equality-filtered scans.
func (f *Feature) NodesWhere(value string) *roaring.Bitmap {
	if bm, ok := f.postings[value]; ok {
		return bm
	}
	bm := roaring.New()
	if f.pool != nil {
		if idx, ok := f.pool.Lookup(value); ok {
			for n := uint32(1); n <= f.c.meta.MaxNode; n++ {
				if f.pool.Index(int(n-1)) == idx {
					bm.Add(n)
				}
			}
		}
	} else {
		for n := uint32(1); n <= f.c.meta.MaxNode; n++ {
			if v, ok := f.Value(n); ok && v == value {
				bm.Add(n)
			}
		}
	}
	if f.postings == nil {
		f.postings = make(map[string]*roaring.Bitmap)
	}
	f.postings[value] = bm
	return bm
}

// Edge is a read accessor for one per-edge feature: each node maps to an
// ordered target sequence, optionally with one scalar per edge.
type Edge struct {
	c    *Corpus
	name string
	csr  store.CSR
}

// Edge returns the accessor for the named edge feature.
func (c *Corpus) Edge(name string) (*Edge, error) {
	if e, ok := c.edges[name]; ok {
		return e, nil
	}
	if c.selector != nil && !c.selector[name] {
		return nil, fmt.Errorf("%w: %q excluded by feature selector", ErrUnknownFeature, name)
	}
	key := "features/" + name + ".csr"
	if !c.st.Has(key) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
	}
	csr, err := c.st.CSR(key)
	if err != nil {
		return nil, err
	}
	if uint32(csr.Rows()) != c.meta.MaxNode {
		return nil, fmt.Errorf("%w: edge %q covers %d nodes, want %d", store.ErrCorrupt, name, csr.Rows(), c.meta.MaxNode)
	}
	e := &Edge{c: c, name: name, csr: csr}
	c.edges[name] = e
	return e, nil
}

// Name returns the edge feature name.
func (e *Edge) Name() string { return e.name }

// HasValues reports whether each edge carries a scalar value.
func (e *Edge) HasValues() bool { return e.csr.Values != nil }

// Targets returns the ordered targets of node n as a zero-copy view.
func (e *Edge) Targets(n uint32) []uint32 {
	if n < 1 || n > e.c.meta.MaxNode {
		return nil
	}
	return e.csr.Row(int(n - 1))
}

// TargetsCopy returns the targets of node n as an owned copy, safe to
// retain across Close.
func (e *Edge) TargetsCopy(n uint32) []uint32 {
	if n < 1 || n > e.c.meta.MaxNode {
		return nil
	}
	return e.csr.RowCopy(int(n - 1))
}

// TargetsWithValues returns the targets of node n together with the
// per-edge values; values is nil for a plain edge feature.
func (e *Edge) TargetsWithValues(n uint32) (targets, values []uint32) {
	if n < 1 || n > e.c.meta.MaxNode {
		return nil, nil
	}
	return e.csr.Row(int(n - 1)), e.csr.RowValues(int(n - 1))
}
