package corpus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ic-timon/loom/corpus/store"
)

func TestParseTemplateShape(t *testing.T) {
	tpl, err := parseTemplate(`s:sentence
  p:phrase function=Pred
    word len>3
  no phrase function=Subj
p << s`)
	require.NoError(t, err)
	require.Len(t, tpl.yarns, 4)

	s, p, w, q := tpl.yarns[0], tpl.yarns[1], tpl.yarns[2], tpl.yarns[3]
	assert.Equal(t, "sentence", s.typeName)
	assert.Equal(t, -1, s.parent)
	assert.Equal(t, "p", p.name)
	assert.Equal(t, 0, p.parent)
	assert.Equal(t, 1, w.parent)
	assert.Equal(t, "", w.name)
	assert.Equal(t, 0, q.parent, "dedent returns to the sentence")
	assert.Equal(t, quantNo, q.quant)

	require.Len(t, p.filters, 1)
	assert.Equal(t, filter{feature: "function", op: opEq, str: "Pred"}, p.filters[0])
	require.Len(t, w.filters, 1)
	assert.Equal(t, filter{feature: "len", op: opGt, str: "3", num: 3}, w.filters[0])

	// three implicit embeddings plus the explicit precedence
	require.Len(t, tpl.relations, 4)
	last := tpl.relations[3]
	assert.Equal(t, relPrecedes, last.kind)
	assert.Equal(t, 1, last.a)
	assert.Equal(t, 0, last.b)
}

func TestParseTemplateFlipsContains(t *testing.T) {
	tpl, err := parseTemplate(`a:sentence
b:phrase
a [[ b`)
	require.NoError(t, err)
	require.Len(t, tpl.relations, 1)
	r := tpl.relations[0]
	assert.Equal(t, relWithin, r.kind)
	assert.Equal(t, 1, r.a, "contains is stored as within, flipped")
	assert.Equal(t, 0, r.b)
}

func TestParseQuantifier(t *testing.T) {
	kind, k, ok := parseQuantifier("no")
	require.True(t, ok)
	assert.Equal(t, quantNo, kind)

	kind, k, ok = parseQuantifier("min:2")
	require.True(t, ok)
	assert.Equal(t, quantMin, kind)
	assert.Equal(t, 2, k)

	kind, k, ok = parseQuantifier("count:0")
	require.True(t, ok)
	assert.Equal(t, quantCount, kind)
	assert.Equal(t, 0, k)

	_, _, ok = parseQuantifier("min:-1")
	assert.False(t, ok)
	_, _, ok = parseQuantifier("min:x")
	assert.False(t, ok)
	_, _, ok = parseQuantifier("phrase")
	assert.False(t, ok)
}

// comparatorFixture is a hand-built corpus over 3 slots:
//
//	node 4  type 0  {1,2,3}
//	node 5  type 0  {1,3}    gapped, shares both boundaries with 4 and 6
//	node 6  type 1  {1,2,3}
//	node 7  type 1  {1}
//	node 8  type 0  {1,2,3}
func comparatorFixture() *Corpus {
	return &Corpus{
		meta:  Meta{MaxSlot: 3, MaxNode: 8},
		otype: []uint32{2, 2, 2, 0, 0, 1, 1, 0},
		first: []uint32{1, 1, 1, 1, 1},
		last:  []uint32{3, 3, 3, 1, 3},
		oslots: store.CSR{
			Offsets: []uint64{0, 3, 5, 8, 9, 12},
			Data:    []uint32{1, 2, 3, 1, 3, 1, 2, 3, 1, 1, 2, 3},
		},
	}
}

func TestCanonicalComparer(t *testing.T) {
	c := comparatorFixture()
	assert.True(t, c.canonLess(4, 5), "longer span first on a boundary tie")
	assert.True(t, c.canonLess(6, 5), "a strict container precedes a gapped contained node even of an earlier type")
	assert.False(t, c.canonLess(5, 6))
	assert.True(t, c.canonLess(4, 6), "earlier declared type wins on an identical span")
	assert.True(t, c.canonLess(4, 8), "identical type and span orders by id")
	assert.True(t, c.canonLess(7, 1), "a covering node precedes its slot")
	assert.True(t, c.canonLess(1, 2), "earlier first slot wins")
	assert.False(t, c.canonLess(2, 1))
}

func TestSameSpanNodes(t *testing.T) {
	c := comparatorFixture()
	c.computeOrder()
	assert.ElementsMatch(t, []uint32{6, 8}, c.sameSpanNodes(4))
	assert.ElementsMatch(t, []uint32{4, 8}, c.sameSpanNodes(6))
	assert.Empty(t, c.sameSpanNodes(5), "no other node covers exactly {1,3}")
	assert.ElementsMatch(t, []uint32{7}, c.sameSpanNodes(1))
}
