package corpus

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/ic-timon/loom/corpus/store"
)

// precompute materializes the derived structures: span boundaries,
// canonical order and rank, type span statistics, and the ancestor and
// descendant adjacencies. Compiled corpora ship these under computed/ and
// they are mapped directly; otherwise they are derived here, once per load.
func (c *Corpus) precompute() error {
	if err := c.computeBoundary(); err != nil {
		return err
	}
	c.computeLevelStats()
	if c.loadComputed() {
		return nil
	}
	c.derived = true
	c.log.Debug("deriving computed structures", "dir", c.dir)
	c.computeOrder()
	c.computeLevels()
	return nil
}

// computeBoundary reads first/last slots off the slot-containment relation
// and enforces its invariants: every non-slot row is non-empty, strictly
// ascending, and references slots inside [1, maxSlot].
func (c *Corpus) computeBoundary() error {
	rows := c.oslots.Rows()
	c.first = make([]uint32, rows)
	c.last = make([]uint32, rows)
	maxSlot := c.meta.MaxSlot
	for i := 0; i < rows; i++ {
		row := c.oslots.Row(i)
		node := c.meta.MaxSlot + uint32(i) + 1
		if len(row) == 0 {
			return fmt.Errorf("%w: node %d spans no slots", ErrInconsistent, node)
		}
		prev := uint32(0)
		for _, s := range row {
			if s < 1 || s > maxSlot {
				return fmt.Errorf("%w: node %d references slot %d outside [1,%d]", ErrInconsistent, node, s, maxSlot)
			}
			if s <= prev {
				return fmt.Errorf("%w: node %d has non-ascending span at slot %d", ErrInconsistent, node, s)
			}
			prev = s
		}
		c.first[i] = row[0]
		c.last[i] = row[len(row)-1]
	}
	return nil
}

func (c *Corpus) computeLevelStats() {
	for i := range c.types {
		t := &c.types[i]
		if t.Count == 0 {
			continue
		}
		if t.Name == c.meta.SlotType {
			t.MeanSpan = 1
			continue
		}
		var total uint64
		for n := t.Min; n <= t.Max; n++ {
			total += uint64(c.oslots.RowLen(int(n - c.meta.MaxSlot - 1)))
		}
		t.MeanSpan = float64(total) / float64(t.Count)
	}
}

// loadComputed maps the persisted computed/ structures if they are all
// present and shaped as expected. Returns false to fall back to derivation.
func (c *Corpus) loadComputed() bool {
	for _, key := range []string{orderKey, rankKey, levUpKey, levDownKey} {
		if !c.st.Has(key) {
			return false
		}
	}
	order, err := c.st.Array(orderKey)
	if err != nil || uint32(len(order)) != c.meta.MaxNode {
		return false
	}
	rank, err := c.st.Array(rankKey)
	if err != nil || uint32(len(rank)) != c.meta.MaxNode {
		return false
	}
	levUp, err := c.st.CSR(levUpKey)
	if err != nil || uint32(levUp.Rows()) != c.meta.MaxNode {
		return false
	}
	levDown, err := c.st.CSR(levDownKey)
	if err != nil || uint32(levDown.Rows()) != c.meta.MaxNode-c.meta.MaxSlot {
		return false
	}
	c.order, c.rank, c.levUp, c.levDown = order, rank, levUp, levDown
	return true
}

// canonLess is the canonical order comparator: first slot ascending, then
// last slot descending, then span length descending, then type precedence
// (declaration order, coarser structural types first), then node
// identifier as the final tie-break. A strict container shares at most
// the boundary slots with a contained node and always has the longer slot
// set, so container-precedes-contained holds for gapped spans too. The
// identical-span tie-break is a documented convention of this engine, not
// derived data.
func (c *Corpus) canonLess(a, b uint32) bool {
	fa, fb := c.FirstSlot(a), c.FirstSlot(b)
	if fa != fb {
		return fa < fb
	}
	la, lb := c.LastSlot(a), c.LastSlot(b)
	if la != lb {
		return la > lb
	}
	na, nb := c.spanLen(a), c.spanLen(b)
	if na != nb {
		return na > nb
	}
	ta, tb := c.otype[a-1], c.otype[b-1]
	if ta != tb {
		return ta < tb
	}
	return a < b
}

// spanLen returns the slot count of node n's span without materializing it.
func (c *Corpus) spanLen(n uint32) int {
	if n <= c.meta.MaxSlot {
		return 1
	}
	return c.oslots.RowLen(int(n - c.meta.MaxSlot - 1))
}

func (c *Corpus) computeOrder() {
	n := int(c.meta.MaxNode)
	order := make([]uint32, n)
	for i := range order {
		order[i] = uint32(i + 1)
	}
	sort.Slice(order, func(i, j int) bool {
		return c.canonLess(order[i], order[j])
	})
	rank := make([]uint32, n)
	for pos, node := range order {
		rank[node-1] = uint32(pos)
	}
	c.order, c.rank = order, rank
}

// computeLevels derives the ancestor adjacency (all nodes whose slot set
// strictly contains a node's set, outermost first) with a sweep over
// canonical order, then inverts it into the direct-descendant adjacency:
// a node is a child of its closest strict container only. The asymmetry
// (transitive up, direct-only down) is deliberate.
func (c *Corpus) computeLevels() {
	maxNode := c.meta.MaxNode
	maxSlot := c.meta.MaxSlot
	up := make([][]uint32, maxNode)

	// active holds non-slot nodes whose interval is still open at the
	// current sweep position. Canonical order guarantees any container of
	// n has already been visited when n is.
	var active []uint32
	for _, n := range c.order {
		fn := c.FirstSlot(n)
		keep := active[:0]
		for _, m := range active {
			if c.LastSlot(m) >= fn {
				keep = append(keep, m)
			}
		}
		active = keep
		for _, m := range active {
			if c.strictlyContains(m, n) {
				up[n-1] = append(up[n-1], m)
			}
		}
		if n > maxSlot {
			active = append(active, n)
		}
	}

	down := make([][]uint32, maxNode-maxSlot)
	for idx, ancestors := range up {
		if len(ancestors) == 0 {
			continue
		}
		// ancestors are outermost first; the closest container is last.
		closest := ancestors[len(ancestors)-1]
		down[closest-maxSlot-1] = append(down[closest-maxSlot-1], uint32(idx+1))
	}
	for _, children := range down {
		c.SortNodes(children)
	}

	c.levUp = buildCSR(up)
	c.levDown = buildCSR(down)
}

// strictlyContains reports whether a's slot set is a strict superset of
// b's. Both spans are ascending; gapped spans are compared exactly.
func (c *Corpus) strictlyContains(a, b uint32) bool {
	if a == b {
		return false
	}
	sa, sb := c.Span(a), c.Span(b)
	if len(sa) <= len(sb) {
		return false
	}
	return subsetOf(sb, sa)
}

// spanSubset reports whether a's slot set is a subset of b's, equality
// included.
func (c *Corpus) spanSubset(a, b uint32) bool {
	sa, sb := c.Span(a), c.Span(b)
	if len(sa) > len(sb) {
		return false
	}
	return subsetOf(sa, sb)
}

// subsetOf is a two-pointer subset check over ascending slot sets.
func subsetOf(sub, super []uint32) bool {
	i := 0
	for _, s := range sub {
		for i < len(super) && super[i] < s {
			i++
		}
		if i >= len(super) || super[i] != s {
			return false
		}
		i++
	}
	return true
}

// sameSpanNodes returns the nodes other than n covering exactly n's slot
// set. Nodes sharing both boundary slots sit contiguously in canonical
// order, so the scan stays local to n's rank.
func (c *Corpus) sameSpanNodes(n uint32) []uint32 {
	f, l := c.FirstSlot(n), c.LastSlot(n)
	pos := int(c.rank[n-1])
	var out []uint32
	for i := pos - 1; i >= 0; i-- {
		m := c.order[i]
		if c.FirstSlot(m) != f || c.LastSlot(m) != l {
			break
		}
		if spanEqual(c.Span(m), c.Span(n)) {
			out = append(out, m)
		}
	}
	for i := pos + 1; i < len(c.order); i++ {
		m := c.order[i]
		if c.FirstSlot(m) != f || c.LastSlot(m) != l {
			break
		}
		if spanEqual(c.Span(m), c.Span(n)) {
			out = append(out, m)
		}
	}
	return out
}

// buildCSR packs in-memory rows into an owned CSR.
func buildCSR(rows [][]uint32) store.CSR {
	offsets := make([]uint64, len(rows)+1)
	var total uint64
	for i, row := range rows {
		total += uint64(len(row))
		offsets[i+1] = total
	}
	data := make([]uint32, 0, total)
	for _, row := range rows {
		data = append(data, row...)
	}
	return store.CSR{Offsets: offsets, Data: data}
}

// WriteComputed persists the derived structures into the corpus directory
// under computed/. It is the one sanctioned write against a corpus
// directory and is intended for the compile step, before the version is
// published; serving loads then map these files instead of deriving them.
func (c *Corpus) WriteComputed() error {
	join := func(key string) string { return filepath.Join(c.dir, key) }
	if err := store.WriteArray(join(orderKey), c.order); err != nil {
		return err
	}
	if err := store.WriteArray(join(rankKey), c.rank); err != nil {
		return err
	}
	boundary := make([]uint32, 0, 2*len(c.first))
	for i := range c.first {
		boundary = append(boundary, c.first[i], c.last[i])
	}
	if err := store.WriteArray(join(boundaryKey), boundary); err != nil {
		return err
	}
	if err := writeCSRRows(join(levUpKey), c.levUp); err != nil {
		return err
	}
	if err := writeCSRRows(join(levDownKey), c.levDown); err != nil {
		return err
	}
	return store.WriteBlob(join(levelsKey), c.Levels())
}

func writeCSRRows(path string, csr store.CSR) error {
	rows := make([][]uint32, csr.Rows())
	for i := range rows {
		rows[i] = csr.Row(i)
	}
	return store.WriteCSR(path, rows, nil)
}
