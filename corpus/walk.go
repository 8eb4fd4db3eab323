package corpus

// Walk visits every node in canonical order until visit returns false.
func (c *Corpus) Walk(visit func(n uint32) bool) {
	for _, n := range c.order {
		if !visit(n) {
			return
		}
	}
}

// WalkType visits the nodes of one type in canonical order until visit
// returns false.
func (c *Corpus) WalkType(typeName string, visit func(n uint32) bool) {
	min, max, ok := c.TypeRange(typeName)
	if !ok {
		return
	}
	nodes := make([]uint32, 0, max-min+1)
	for n := min; n <= max; n++ {
		nodes = append(nodes, n)
	}
	c.SortNodes(nodes)
	for _, n := range nodes {
		if !visit(n) {
			return
		}
	}
}

// Nodes returns all nodes in canonical order as an owned slice.
func (c *Corpus) Nodes() []uint32 {
	out := make([]uint32, len(c.order))
	copy(out, c.order)
	return out
}
