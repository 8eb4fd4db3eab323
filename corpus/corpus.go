package corpus

import (
	"fmt"
	"sort"

	"github.com/ic-timon/loom/corpus/store"
)

// Warp and computed file keys inside a version directory.
const (
	otypeKey    = "warp/otype.arr"
	oslotsKey   = "warp/oslots.csr"
	orderKey    = "computed/order.arr"
	rankKey     = "computed/rank.arr"
	levelsKey   = "computed/levels.json"
	levUpKey    = "computed/levUp.csr"
	levDownKey  = "computed/levDown.csr"
	boundaryKey = "computed/boundary.arr"
)

// Meta is the corpus metadata blob (meta.json).
type Meta struct {
	Version   string   `json:"version"`
	MaxSlot   uint32   `json:"max_slot"`
	MaxNode   uint32   `json:"max_node"`
	SlotType  string   `json:"slot_type"`
	NodeTypes []string `json:"node_types"` // declaration order, used as type precedence
}

// TypeInfo describes one node type: its contiguous identifier range and
// aggregate span statistics.
type TypeInfo struct {
	Name     string  `json:"name"`
	Count    uint32  `json:"count"`
	Min      uint32  `json:"min"`
	Max      uint32  `json:"max"`
	MeanSpan float64 `json:"mean_span"`
}

// Corpus is a read-only handle on one loaded corpus version. It owns a
// private view cache; multiple handles on the same directory share OS
// pages but no state. A handle carries no mutable shared state, so
// independent searches against it are safe.
type Corpus struct {
	dir  string
	st   *store.Store
	meta Meta

	otype  []uint32  // per-node type code, node n at index n-1
	oslots store.CSR // non-slot node n at row n-maxSlot-1

	types    []TypeInfo
	order    []uint32 // canonical order: order[i] = node at position i
	rank     []uint32 // inverse: rank[n-1] = position of n
	first    []uint32 // first slot per non-slot node
	last     []uint32 // last slot per non-slot node
	levUp    store.CSR
	levDown  store.CSR
	derived  bool // computed structures derived in memory (not mapped)

	features map[string]*Feature
	edges    map[string]*Edge
	selector map[string]bool

	textFeature  string
	afterFeature string

	limits *SearchLimits
	log    *Logger
}

// Open loads the corpus version at dir and precomputes (or maps) its
// derived structures. On any error no handle is returned.
func Open(dir string, opts ...Option) (*Corpus, error) {
	st, err := store.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	c := &Corpus{
		dir:          dir,
		st:           st,
		features:     make(map[string]*Feature),
		edges:        make(map[string]*Edge),
		textFeature:  "text",
		afterFeature: "after",
		log:          NoopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.limits = c.limits.OrDefault()
	if err := c.load(); err != nil {
		st.Close()
		return nil, err
	}
	return c, nil
}

func (c *Corpus) load() error {
	if err := c.st.Blob(store.MetaFile, &c.meta); err != nil {
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}
	if err := c.validateMeta(); err != nil {
		return err
	}

	otype, err := c.st.Array(otypeKey)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}
	if uint32(len(otype)) != c.meta.MaxNode {
		return fmt.Errorf("%w: otype has %d entries for %d nodes", ErrLoad, len(otype), c.meta.MaxNode)
	}
	c.otype = otype

	oslots, err := c.st.CSR(oslotsKey)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}
	if uint32(oslots.Rows()) != c.meta.MaxNode-c.meta.MaxSlot {
		return fmt.Errorf("%w: oslots has %d rows for %d non-slot nodes", ErrLoad, oslots.Rows(), c.meta.MaxNode-c.meta.MaxSlot)
	}
	c.oslots = oslots

	if err := c.buildTypeRanges(); err != nil {
		return err
	}
	c.st.Hint(oslotsKey, store.AccessSequential)
	if err := c.precompute(); err != nil {
		return err
	}
	c.log.Info("corpus loaded", "dir", c.dir, "maxSlot", c.meta.MaxSlot, "maxNode", c.meta.MaxNode, "types", len(c.types), "derived", c.derived)
	return nil
}

func (c *Corpus) validateMeta() error {
	m := &c.meta
	if m.MaxSlot < 1 || m.MaxNode < m.MaxSlot {
		return fmt.Errorf("%w: bad node bounds maxSlot=%d maxNode=%d", ErrLoad, m.MaxSlot, m.MaxNode)
	}
	if len(m.NodeTypes) == 0 {
		return fmt.Errorf("%w: no node types declared", ErrLoad)
	}
	for _, t := range m.NodeTypes {
		if t == m.SlotType {
			return nil
		}
	}
	return fmt.Errorf("%w: slot type %q not in node_types", ErrLoad, m.SlotType)
}

// buildTypeRanges groups nodes by type code in one pass and enforces the
// partition invariant: every type occupies one contiguous identifier range
// and the ranges cover 1..maxNode without overlap.
func (c *Corpus) buildTypeRanges() error {
	n := len(c.meta.NodeTypes)
	c.types = make([]TypeInfo, n)
	for i, name := range c.meta.NodeTypes {
		c.types[i].Name = name
	}
	for idx, code := range c.otype {
		node := uint32(idx + 1)
		if int(code) >= n {
			return fmt.Errorf("%w: node %d has type code %d, only %d types declared", ErrInconsistent, node, code, n)
		}
		t := &c.types[code]
		if t.Count == 0 {
			t.Min, t.Max = node, node
		} else {
			if node != t.Max+1 {
				return fmt.Errorf("%w: type %q is not contiguous at node %d", ErrInconsistent, t.Name, node)
			}
			t.Max = node
		}
		t.Count++
	}
	slot, ok := c.typeCodeOf(c.meta.SlotType)
	if !ok {
		return fmt.Errorf("%w: slot type %q missing", ErrInconsistent, c.meta.SlotType)
	}
	st := c.types[slot]
	if st.Min != 1 || st.Max != c.meta.MaxSlot || st.Count != c.meta.MaxSlot {
		return fmt.Errorf("%w: slot type %q covers [%d,%d], want [1,%d]", ErrInconsistent, st.Name, st.Min, st.Max, c.meta.MaxSlot)
	}
	var total uint32
	for _, t := range c.types {
		total += t.Count
	}
	if total != c.meta.MaxNode {
		return fmt.Errorf("%w: type ranges cover %d nodes, want %d", ErrInconsistent, total, c.meta.MaxNode)
	}
	return nil
}

func (c *Corpus) typeCodeOf(name string) (uint32, bool) {
	for i, t := range c.types {
		if t.Name == name {
			return uint32(i), true
		}
	}
	return 0, false
}

// MaxSlot returns the identifier of the last slot node.
func (c *Corpus) MaxSlot() uint32 { return c.meta.MaxSlot }

// MaxNode returns the identifier of the last node.
func (c *Corpus) MaxNode() uint32 { return c.meta.MaxNode }

// SlotType returns the type label of slot nodes.
func (c *Corpus) SlotType() string { return c.meta.SlotType }

// Version returns the corpus version string from meta.json.
func (c *Corpus) Version() string { return c.meta.Version }

// Levels returns the type-range table: one row per type with count, id
// range, and mean span length.
func (c *Corpus) Levels() []TypeInfo {
	out := make([]TypeInfo, len(c.types))
	copy(out, c.types)
	return out
}

// TypeOf returns the type label of node n.
func (c *Corpus) TypeOf(n uint32) string {
	if n < 1 || n > c.meta.MaxNode {
		return ""
	}
	return c.types[c.otype[n-1]].Name
}

// TypeRange returns the contiguous identifier range of a type.
func (c *Corpus) TypeRange(name string) (min, max uint32, ok bool) {
	code, ok := c.typeCodeOf(name)
	if !ok {
		return 0, 0, false
	}
	t := c.types[code]
	return t.Min, t.Max, true
}

// Span returns the ordered slots node n covers. For a slot node this is
// the implicit singleton {n}; for non-slot nodes it is a zero-copy view
// into the slot-containment relation.
func (c *Corpus) Span(n uint32) []uint32 {
	if n < 1 || n > c.meta.MaxNode {
		return nil
	}
	if n <= c.meta.MaxSlot {
		return []uint32{n}
	}
	return c.oslots.Row(int(n - c.meta.MaxSlot - 1))
}

// FirstSlot returns the first slot of node n's span.
func (c *Corpus) FirstSlot(n uint32) uint32 {
	if n <= c.meta.MaxSlot {
		return n
	}
	return c.first[n-c.meta.MaxSlot-1]
}

// LastSlot returns the last slot of node n's span.
func (c *Corpus) LastSlot(n uint32) uint32 {
	if n <= c.meta.MaxSlot {
		return n
	}
	return c.last[n-c.meta.MaxSlot-1]
}

// Rank returns node n's position in canonical order. Rank comparisons
// answer "does a precede b" in O(1).
func (c *Corpus) Rank(n uint32) uint32 {
	return c.rank[n-1]
}

// SortNodes sorts an arbitrary node collection into canonical order in place.
func (c *Corpus) SortNodes(nodes []uint32) {
	sort.Slice(nodes, func(i, j int) bool {
		return c.rank[nodes[i]-1] < c.rank[nodes[j]-1]
	})
}

// Close releases all cached mappings. Safe to call multiple times. The
// handle and any zero-copy views obtained from it must not be used after
// Close; owned copies remain valid.
func (c *Corpus) Close() error {
	return c.st.Close()
}
