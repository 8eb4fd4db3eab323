package corpus

// yarnRatio is the fixed balancing constant weighing relation-guided
// candidate generation against raw type-range scans: each relation
// constraint to an already-bound yarn is expected to shrink a scan's
// surviving candidates by this factor.
const yarnRatio = 1.5

// A generator describes how candidates for one yarn are produced during
// execution: guided through a relation to an already-bound yarn, or by
// scanning the yarn's type range.
type generator struct {
	rel      int  // index into template relations, -1 for a type scan
	fromA    bool // bound yarn is relation side a (generate b), else side b
}

type planStep struct {
	yarn int
	gen  generator
}

type quantPlan struct {
	root  int // quantified yarn
	kind  quantKind
	k     int
	steps []planStep // over the quantified subtree, root first
}

// queryPlan is the evaluation plan of one template: a binding order over
// the tuple yarns plus the quantifier sub-plans grouped by parent yarn.
// The first step is pinned to the template's first tuple yarn: results
// stream in canonical order keyed by it, and the planner optimizes the
// order of the remaining yarns only.
type queryPlan struct {
	steps  []planStep
	quants map[int][]*quantPlan // parent yarn -> sub-plans
}

type planner struct {
	c      *Corpus
	t      *template
	limits *SearchLimits
}

func (c *Corpus) plan(t *template) *queryPlan {
	p := &planner{c: c, t: t, limits: c.limits}
	qp := &queryPlan{quants: make(map[int][]*quantPlan)}
	qp.steps = p.orderYarns(t.tuple, []int{t.tuple[0]}, nil)
	for idx, y := range t.yarns {
		if y.quant == quantNone {
			continue
		}
		var subtree []int
		for i, m := range t.yarns {
			if m.quantRoot == idx {
				subtree = append(subtree, i)
			}
		}
		sub := &quantPlan{
			root:  idx,
			kind:  y.quant,
			k:     y.quantK,
			steps: p.orderYarns(subtree, []int{idx}, []int{y.parent}),
		}
		qp.quants[y.parent] = append(qp.quants[y.parent], sub)
	}
	return qp
}

// orderYarns produces binding steps for the given yarns. seed pins the
// first steps, preBound names yarns bound by the enclosing context (the
// parent of a quantified sub-template); the rest are chosen greedily by
// estimated cost, preferring yarns reachable through a cheap relation
// from the bound set.
func (p *planner) orderYarns(yarns, seed, preBound []int) []planStep {
	bound := make(map[int]bool)
	for _, y := range preBound {
		bound[y] = true
	}
	var steps []planStep
	inSet := make(map[int]bool, len(yarns))
	for _, y := range yarns {
		inSet[y] = true
	}
	bind := func(y int) {
		steps = append(steps, planStep{yarn: y, gen: p.chooseGenerator(y, bound)})
		bound[y] = true
	}
	for _, s := range seed {
		bind(s)
	}
	for len(steps) < len(yarns) {
		best, bestCost := -1, 0.0
		for _, y := range yarns {
			if bound[y] {
				continue
			}
			cost := p.generatorCost(y, p.chooseGenerator(y, bound), bound)
			if best < 0 || cost < bestCost {
				best, bestCost = y, cost
			}
		}
		bind(best)
	}
	return steps
}

// chooseGenerator picks the cheapest way to produce candidates for yarn y
// given the bound set: climbing levUp from a bound embedded yarn beats
// span-boundary generation, which beats a filtered type scan.
func (p *planner) chooseGenerator(y int, bound map[int]bool) generator {
	best := generator{rel: -1}
	bestCost := p.scanEstimate(y, bound)
	for ri, r := range p.t.relations {
		var g generator
		switch {
		case r.a == y && bound[r.b]:
			g = generator{rel: ri, fromA: false}
		case r.b == y && bound[r.a]:
			g = generator{rel: ri, fromA: true}
		default:
			continue
		}
		cost := p.relationEstimate(r, g)
		if cost >= 0 && cost < bestCost {
			best, bestCost = g, cost
		}
	}
	return best
}

func (p *planner) generatorCost(y int, g generator, bound map[int]bool) float64 {
	if g.rel < 0 {
		return p.scanEstimate(y, bound)
	}
	return p.relationEstimate(p.t.relations[g.rel], g)
}

// scanEstimate is the expected surviving candidate count of a type-range
// scan: the type's node count from the type-range table, shrunk per
// feature filter by sampled selectivity and per relation constraint to a
// bound yarn by the yarn ratio.
func (p *planner) scanEstimate(y int, bound map[int]bool) float64 {
	yn := p.t.yarns[y]
	ti := p.c.types[yn.code]
	est := float64(ti.Count)
	if len(yn.filters) > 0 {
		est *= p.sampleFilters(yn)
	}
	for _, r := range p.t.relations {
		if (r.a == y && bound[r.b]) || (r.b == y && bound[r.a]) {
			est /= yarnRatio
		}
	}
	if est < 1 {
		est = 1
	}
	return est
}

// sampleFilters estimates the fraction of a yarn's type range passing its
// feature filters by probing up to TryLimitFrom evenly spaced nodes. The
// limit bounds planning effort only; execution checks every candidate.
func (p *planner) sampleFilters(y *yarn) float64 {
	ti := p.c.types[y.code]
	n := int(ti.Count)
	limit := p.limits.TryLimitFrom
	if n < limit {
		limit = n
	}
	if limit == 0 {
		return 1
	}
	stride := n / limit
	if stride == 0 {
		stride = 1
	}
	sampled, passed := 0, 0
	for node := ti.Min; node <= ti.Max && sampled < limit; node += uint32(stride) {
		sampled++
		if p.c.passFilters(y, node) {
			passed++
		}
	}
	return float64(passed+1) / float64(sampled+1)
}

// relationEstimate rates the fan-out of a relation-guided generator by
// sampling levUp rows of the bound side, probing at most TryLimitTo
// entries per row. Scan-backed relations return -1 (not cheaper than the
// scan they imply).
func (p *planner) relationEstimate(r relation, g generator) float64 {
	boundYarn := r.b
	if g.fromA {
		boundYarn = r.a
	}
	if r.kind == relWithin && g.fromA {
		// climbing from an embedded bound yarn: fan-out is the
		// ancestor-chain depth
		return p.sampleUpFanout(p.t.yarns[boundYarn])
	}
	// everything else generates by scanning and is never cheaper than
	// the scan it implies
	return -1
}

func (p *planner) sampleUpFanout(y *yarn) float64 {
	ti := p.c.types[y.code]
	n := int(ti.Count)
	limit := p.limits.TryLimitFrom
	if n < limit {
		limit = n
	}
	if limit == 0 {
		return 1
	}
	stride := n / limit
	if stride == 0 {
		stride = 1
	}
	sampled, total := 0, 0
	for node := ti.Min; node <= ti.Max && sampled < limit; node += uint32(stride) {
		sampled++
		fan := len(p.c.Up(node))
		if fan > p.limits.TryLimitTo {
			fan = p.limits.TryLimitTo
		}
		total += fan
	}
	return float64(total)/float64(sampled) + 1
}
