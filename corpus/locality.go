package corpus

// Up returns all nodes whose span strictly contains node n's span,
// outermost first. The result is a zero-copy view.
func (c *Corpus) Up(n uint32) []uint32 {
	if n < 1 || n > c.meta.MaxNode {
		return nil
	}
	return c.levUp.Row(int(n - 1))
}

// Down returns the direct descendants of node n: the nodes whose closest
// strict container is n, in canonical order. Slot nodes have none. Unlike
// Up, the relation is not transitive.
func (c *Corpus) Down(n uint32) []uint32 {
	if n <= c.meta.MaxSlot || n > c.meta.MaxNode {
		return nil
	}
	return c.levDown.Row(int(n - c.meta.MaxSlot - 1))
}

// Siblings returns the other direct descendants of node n's closest
// container, in canonical order. Nodes without a container have none.
func (c *Corpus) Siblings(n uint32) []uint32 {
	up := c.Up(n)
	if len(up) == 0 {
		return nil
	}
	closest := up[len(up)-1]
	var out []uint32
	for _, m := range c.Down(closest) {
		if m != n {
			out = append(out, m)
		}
	}
	return out
}
