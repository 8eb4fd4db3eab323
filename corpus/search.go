package corpus

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
)

// Search compiles a structural template into an evaluation plan and
// returns a lazy, restartable result sequence. Template parse and
// validation errors (*TemplateError) are reported before any graph
// access; a failed search never invalidates the handle.
func (c *Corpus) Search(src string) (*Results, error) {
	t, err := parseTemplate(src)
	if err != nil {
		return nil, err
	}
	if err := t.validate(c); err != nil {
		return nil, err
	}
	// resolve filter features up front so execution cannot fail mid-stream
	for _, y := range t.yarns {
		for _, f := range y.filters {
			if _, err := c.Feature(f.feature); err != nil {
				return nil, err
			}
		}
	}
	plan := c.plan(t)
	c.log.Debug("search planned", "yarns", len(t.yarns), "relations", len(t.relations), "steps", len(plan.steps))
	return &Results{
		c:       c,
		t:       t,
		plan:    plan,
		cap:     c.limits.FailFactor * int(c.meta.MaxNode),
		seedPos: -1,
	}, nil
}

// Results is a lazy sequence of result tuples in canonical order: tuples
// sort lexicographically by the rank of their nodes in yarn declaration
// order. Repeated evaluation of one template yields an identical
// sequence. Stopping early needs no cleanup; discard the value.
type Results struct {
	c    *Corpus
	t    *template
	plan *queryPlan

	cap      int
	fetched  int
	seeds    []uint32
	seedPos  int // -1 until the first Next
	batch    [][]uint32
	batchPos int

	cur       []uint32
	truncated bool
	done      bool
	err       error
}

// Next advances to the next tuple. It returns false when the sequence is
// exhausted, truncated, or failed; check Truncated and Err afterwards.
func (r *Results) Next() bool {
	for {
		if r.batchPos < len(r.batch) {
			r.cur = r.batch[r.batchPos]
			r.batchPos++
			return true
		}
		if r.done {
			r.cur = nil
			return false
		}
		if r.seedPos < 0 {
			r.seeds = r.seedCandidates()
		}
		r.seedPos++
		if r.seedPos >= len(r.seeds) || r.truncated {
			r.done = true
			continue
		}
		r.batch = r.solveSeed(r.seeds[r.seedPos])
		r.batchPos = 0
	}
}

// Tuple returns the current tuple: one node per non-quantified yarn, in
// declaration order. The slice is owned by the caller.
func (r *Results) Tuple() []uint32 {
	return r.cur
}

// Columns returns the number of nodes per tuple.
func (r *Results) Columns() int {
	return len(r.t.tuple)
}

// Truncated reports whether the result-fetch cap ended the sequence
// early. Callers never get a silent undercount.
func (r *Results) Truncated() bool {
	return r.truncated
}

// Err returns the first error encountered during execution, if any.
func (r *Results) Err() error {
	return r.err
}

// Skip discards the next n tuples. Combined with a fresh Search it resumes
// iteration from a previously yielded position, which is all pagination
// needs given the sequence is deterministic.
func (r *Results) Skip(n int) {
	for i := 0; i < n && r.Next(); i++ {
	}
}

// seedCandidates enumerates the first tuple yarn's candidates in canonical
// order. The seed yarn keys the global result order.
func (r *Results) seedCandidates() []uint32 {
	ex := &executor{c: r.c, t: r.t, plan: r.plan, binding: make([]uint32, len(r.t.yarns))}
	seedYarn := r.plan.steps[0].yarn
	cands := ex.scan(r.t.yarns[seedYarn])
	r.c.SortNodes(cands)
	return cands
}

// solveSeed binds the seed and backtracks over the remaining plan steps,
// collecting every tuple for this seed sorted into canonical order.
func (r *Results) solveSeed(seed uint32) [][]uint32 {
	ex := &executor{c: r.c, t: r.t, plan: r.plan, binding: make([]uint32, len(r.t.yarns))}
	seedYarn := r.plan.steps[0].yarn
	ex.binding[seedYarn] = seed
	if !ex.quantifiersHold(seedYarn) {
		return nil
	}
	var out [][]uint32
	ex.dfs(r.plan.steps, 1, func() bool {
		// truncate only when a tuple past the cap actually shows up: a
		// sequence of exactly cap results is complete, not cut short
		if r.fetched >= r.cap {
			r.truncated = true
			return false
		}
		tuple := make([]uint32, len(r.t.tuple))
		for i, yi := range r.t.tuple {
			tuple[i] = ex.binding[yi]
		}
		out = append(out, tuple)
		r.fetched++
		return true
	})
	c := r.c
	sort.Slice(out, func(i, j int) bool {
		for k := range out[i] {
			ri, rj := c.rank[out[i][k]-1], c.rank[out[j][k]-1]
			if ri != rj {
				return ri < rj
			}
		}
		return false
	})
	return out
}

// executor holds the backtracking state of one evaluation: the current
// partial binding, one node per yarn (0 = unbound).
type executor struct {
	c       *Corpus
	t       *template
	plan    *queryPlan
	binding []uint32
}

// dfs extends the binding step by step, calling emit on every complete
// assignment. Returning false from emit stops the traversal.
func (ex *executor) dfs(steps []planStep, i int, emit func() bool) bool {
	if i >= len(steps) {
		return emit()
	}
	st := steps[i]
	for _, n := range ex.candidates(st) {
		ex.binding[st.yarn] = n
		if !ex.accept(st.yarn) || !ex.quantifiersHold(st.yarn) {
			ex.binding[st.yarn] = 0
			continue
		}
		if !ex.dfs(steps, i+1, emit) {
			ex.binding[st.yarn] = 0
			return false
		}
		ex.binding[st.yarn] = 0
	}
	return true
}

// candidates produces the nodes to try for a step: the ancestor chain of
// a bound embedded yarn when the plan chose a levUp climb, otherwise a
// filtered scan of the yarn's type range. Embedding admits equal spans,
// so the climb also sweeps the bound node's same-span neighbors, which
// levUp excludes.
func (ex *executor) candidates(st planStep) []uint32 {
	y := ex.t.yarns[st.yarn]
	if st.gen.rel >= 0 {
		r := ex.t.relations[st.gen.rel]
		if r.kind == relWithin && st.gen.fromA {
			bound := ex.binding[r.a]
			if bound != 0 {
				var out []uint32
				keep := func(m uint32) {
					if ex.c.otype[m-1] == y.code && ex.c.passFilters(y, m) {
						out = append(out, m)
					}
				}
				for _, m := range ex.c.Up(bound) {
					keep(m)
				}
				for _, m := range ex.c.sameSpanNodes(bound) {
					keep(m)
				}
				return out
			}
		}
	}
	return ex.scan(y)
}

// scan enumerates the yarn's type range, pruned through posting bitmaps
// for string-equality filters, then checked against the remaining filters.
func (ex *executor) scan(y *yarn) []uint32 {
	ti := ex.c.types[y.code]
	var eq *roaring.Bitmap
	for _, f := range y.filters {
		if f.op != opEq {
			continue
		}
		feat, err := ex.c.Feature(f.feature)
		if err != nil || !feat.IsString() {
			continue
		}
		bm := feat.NodesWhere(f.str)
		if eq == nil {
			eq = bm.Clone()
		} else {
			eq.And(bm)
		}
	}
	var out []uint32
	if eq != nil {
		eq.Iterate(func(n uint32) bool {
			if n > ti.Max {
				return false
			}
			if n >= ti.Min && ex.c.passFilters(y, n) {
				out = append(out, n)
			}
			return true
		})
		return out
	}
	for n := ti.Min; n <= ti.Max; n++ {
		if ex.c.passFilters(y, n) {
			out = append(out, n)
		}
	}
	return out
}

// accept checks every relation between yarn y and the already-bound yarns.
// Relation checks are O(1) on boundaries and ranks, O(span) for exact
// slot-set containment.
func (ex *executor) accept(yIdx int) bool {
	for _, r := range ex.t.relations {
		if r.a != yIdx && r.b != yIdx {
			continue
		}
		a, b := ex.binding[r.a], ex.binding[r.b]
		if a == 0 || b == 0 {
			continue
		}
		if !ex.relationHolds(r.kind, a, b) {
			return false
		}
	}
	return true
}

func (ex *executor) relationHolds(kind relKind, a, b uint32) bool {
	c := ex.c
	switch kind {
	case relWithin:
		return a != b && c.spanSubset(a, b)
	case relPrecedes:
		return c.LastSlot(a) < c.FirstSlot(b)
	case relAdjacent:
		return c.LastSlot(a)+1 == c.FirstSlot(b)
	case relSameSpan:
		return spanEqual(c.Span(a), c.Span(b))
	default:
		return false
	}
}

// quantifiersHold evaluates the quantified sub-templates attached to a
// freshly bound yarn by counting sub-matches under the current binding,
// stopping as soon as the outcome is decided.
func (ex *executor) quantifiersHold(yIdx int) bool {
	for _, qp := range ex.plan.quants[yIdx] {
		var need int
		switch qp.kind {
		case quantNo:
			need = 1
		case quantMin:
			need = qp.k
		case quantCount:
			need = qp.k + 1
		}
		count := 0
		ex.dfs(qp.steps, 0, func() bool {
			count++
			return count < need
		})
		for _, st := range qp.steps {
			ex.binding[st.yarn] = 0
		}
		switch qp.kind {
		case quantNo:
			if count != 0 {
				return false
			}
		case quantMin:
			if count < qp.k {
				return false
			}
		case quantCount:
			if count != qp.k {
				return false
			}
		}
	}
	return true
}

func (c *Corpus) passFilters(y *yarn, n uint32) bool {
	for _, f := range y.filters {
		feat, err := c.Feature(f.feature)
		if err != nil {
			return false
		}
		switch f.op {
		case opEq:
			v, ok := feat.Value(n)
			if !ok || v != f.str {
				return false
			}
		case opNe:
			v, ok := feat.Value(n)
			if !ok || v == f.str {
				return false
			}
		case opGt:
			v, ok := feat.Int(n)
			if !ok || v <= f.num {
				return false
			}
		case opLt:
			v, ok := feat.Int(n)
			if !ok || v >= f.num {
				return false
			}
		}
	}
	return true
}

func spanEqual(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
