package corpus_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ic-timon/loom/compile"
	"github.com/ic-timon/loom/corpus"
)

func TestSearchSingleYarn(t *testing.T) {
	c := openGreeting(t)
	assert.Equal(t, [][]uint32{{7}, {8}}, search(t, c, "phrase"))
	assert.Equal(t, [][]uint32{{6}}, search(t, c, "sentence"))
	assert.Equal(t, [][]uint32{{1}, {2}, {3}, {4}, {5}}, search(t, c, "word"))
}

func TestSearchEmbedding(t *testing.T) {
	c := openGreeting(t)

	got := search(t, c, `s:sentence
  p:phrase`)
	assert.Equal(t, [][]uint32{{6, 7}, {6, 8}}, got)

	got = search(t, c, `p:phrase
  w:word`)
	assert.Equal(t, [][]uint32{{7, 1}, {7, 2}, {7, 3}, {8, 4}, {8, 5}}, got)

	got = search(t, c, `s:sentence
  p:phrase
    w:word`)
	assert.Equal(t, [][]uint32{{6, 7, 1}, {6, 7, 2}, {6, 7, 3}, {6, 8, 4}, {6, 8, 5}}, got)
}

func TestSearchFilters(t *testing.T) {
	c := openGreeting(t)

	assert.Equal(t, [][]uint32{{7}}, search(t, c, "phrase function=Pred"))
	assert.Equal(t, [][]uint32{{8}}, search(t, c, "phrase function#Pred"),
		"inequality needs a present, different value")
	assert.Equal(t, [][]uint32{{2}, {5}}, search(t, c, "word len>5"))
	assert.Equal(t, [][]uint32{{4}}, search(t, c, "word len<5"))
	assert.Empty(t, search(t, c, "word text=goodbye"))
	assert.Equal(t, [][]uint32{{1}}, search(t, c, "word text=hello"))
	assert.Empty(t, search(t, c, "phrase len>1"), "phrases carry no len")
}

func TestSearchRelations(t *testing.T) {
	c := openGreeting(t)

	got := search(t, c, `a:phrase
b:phrase
a << b`)
	assert.Equal(t, [][]uint32{{7, 8}}, got)

	got = search(t, c, `a:phrase
b:phrase
a <: b`)
	assert.Equal(t, [][]uint32{{7, 8}}, got, "slot 3 borders slot 4")

	got = search(t, c, `s:sentence
p:phrase
s [[ p`)
	assert.Equal(t, [][]uint32{{6, 7}, {6, 8}}, got)

	got = search(t, c, `p:phrase
s:sentence
p ]] s`)
	assert.Equal(t, [][]uint32{{7, 6}, {8, 6}}, got)

	assert.Empty(t, search(t, c, `s:sentence
p:phrase
s = p`), "no phrase spans the whole sentence")

	got = search(t, c, `a:word
b:word
a = b`)
	assert.Equal(t, [][]uint32{{1, 1}, {2, 2}, {3, 3}, {4, 4}, {5, 5}}, got,
		"identical spans of the same type are the nodes themselves")
}

func TestSearchQuantifiers(t *testing.T) {
	c := openGreeting(t)

	assert.Equal(t, [][]uint32{{6}}, search(t, c, `s:sentence
  no phrase function=Obj`))
	assert.Empty(t, search(t, c, `s:sentence
  no phrase function=Pred`))

	assert.Equal(t, [][]uint32{{6}}, search(t, c, `s:sentence
  min:2 phrase`))
	assert.Empty(t, search(t, c, `s:sentence
  min:3 phrase`))

	assert.Equal(t, [][]uint32{{6}}, search(t, c, `s:sentence
  count:2 phrase`))
	assert.Empty(t, search(t, c, `s:sentence
  count:1 phrase`))

	// the quantified subtree constrains, its yarns yield no columns
	res, err := c.Search(`s:sentence
  min:1 phrase`)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Columns())
}

func TestSearchQuantifiedSubtree(t *testing.T) {
	c := openGreeting(t)

	// "no phrase holding a long word": beautiful (len 9) sits in phrase 7
	assert.Empty(t, search(t, c, `s:sentence
  no phrase
    word len>8`))
	assert.Equal(t, [][]uint32{{6}}, search(t, c, `s:sentence
  no phrase
    word len>10`))

	// quantifier on a phrase parent
	assert.Equal(t, [][]uint32{{7}}, search(t, c, `p:phrase
  min:1 word text=hello
  min:1 word len>5`))
}

func TestSearchEmbeddingAdmitsEqualSpans(t *testing.T) {
	// embedding is slot-set subset between distinct nodes: a one-slot
	// phrase pairs with its own word, and a clause co-extensive with a
	// phrase still contains it
	b := compile.NewBuilder("word")
	require.NoError(t, b.AddType("phrase"))
	require.NoError(t, b.AddType("clause"))
	b.AddSlot(nil)
	b.AddSlot(nil)
	b.AddNode("phrase", []uint32{1}, nil)    // node 3
	b.AddNode("phrase", []uint32{1, 2}, nil) // node 4
	b.AddNode("clause", []uint32{1, 2}, nil) // node 5

	dir := filepath.Join(t.TempDir(), "v")
	require.NoError(t, b.Build(dir))
	c, err := corpus.Open(dir)
	require.NoError(t, err)
	defer c.Close()

	require.Equal(t, []uint32{4, 5, 3, 1, 2}, c.Nodes())

	got := search(t, c, `p:phrase
  w:word`)
	assert.Equal(t, [][]uint32{{4, 1}, {4, 2}, {3, 1}}, got)

	got = search(t, c, `c:clause
  p:phrase`)
	assert.Equal(t, [][]uint32{{5, 4}, {5, 3}}, got)

	got = search(t, c, `w:word
  p:phrase`)
	assert.Equal(t, [][]uint32{{1, 3}}, got,
		"equal spans embed both ways, so the one-slot phrase sits inside its word too")
}

func TestSearchMixedLevels(t *testing.T) {
	c := openGreeting(t)

	got := search(t, c, `s:sentence
  p:phrase function=Subj
    w:word len>5`)
	assert.Equal(t, [][]uint32{{6, 8, 5}}, got, "morning is the only long Subj word")
}

func TestSearchDeterministic(t *testing.T) {
	c := openGreeting(t)
	src := `p:phrase
  w:word`
	first := search(t, c, src)
	second := search(t, c, src)
	assert.Equal(t, first, second)
}

func TestSearchLimitsDoNotChangeResults(t *testing.T) {
	src := `s:sentence
  p:phrase
    w:word`
	wide := search(t, openGreeting(t), src)
	narrow := search(t, openGreeting(t, corpus.WithSearchLimits(corpus.SearchLimits{
		TryLimitFrom: 1,
		TryLimitTo:   1,
	})), src)
	assert.Equal(t, wide, narrow)
}

func TestSearchTruncation(t *testing.T) {
	c := openGreeting(t, corpus.WithSearchLimits(corpus.SearchLimits{FailFactor: 1}))
	// the unconstrained word pair blow-up: 25 tuples against a cap of 8
	res, err := c.Search(`a:word
b:word`)
	require.NoError(t, err)
	got := collect(t, res)
	assert.Len(t, got, 8)
	assert.True(t, res.Truncated())

	// with the default cap the full cross product fits
	res2, err := openGreeting(t).Search(`a:word
b:word`)
	require.NoError(t, err)
	assert.Len(t, collect(t, res2), 25)
	assert.False(t, res2.Truncated())
}

func TestSearchTruncationBoundary(t *testing.T) {
	// two slots, no higher types: the word cross product has exactly four
	// tuples, which is precisely the cap at a fail factor of two
	b := compile.NewBuilder("word")
	b.AddSlot(nil)
	b.AddSlot(nil)
	dir := filepath.Join(t.TempDir(), "v")
	require.NoError(t, b.Build(dir))

	open := func(factor int) *corpus.Corpus {
		t.Helper()
		c, err := corpus.Open(dir, corpus.WithSearchLimits(corpus.SearchLimits{FailFactor: factor}))
		require.NoError(t, err)
		t.Cleanup(func() { c.Close() })
		return c
	}

	// filling the cap exactly is not a truncation
	res, err := open(2).Search(`a:word
b:word`)
	require.NoError(t, err)
	assert.Len(t, collect(t, res), 4)
	assert.False(t, res.Truncated())

	// one tuple past the cap is
	res, err = open(1).Search(`a:word
b:word`)
	require.NoError(t, err)
	assert.Len(t, collect(t, res), 2)
	assert.True(t, res.Truncated())
}

func TestSearchSkip(t *testing.T) {
	c := openGreeting(t)
	src := `p:phrase
  w:word`
	all := search(t, c, src)
	require.Len(t, all, 5)

	res, err := c.Search(src)
	require.NoError(t, err)
	res.Skip(2)
	require.True(t, res.Next())
	assert.Equal(t, all[2], res.Tuple())
	require.True(t, res.Next())
	assert.Equal(t, all[3], res.Tuple())
}

func TestSearchCommentsAndBlanks(t *testing.T) {
	c := openGreeting(t)
	got := search(t, c, `# every phrase in the corpus

phrase
`)
	assert.Equal(t, [][]uint32{{7}, {8}}, got)
}

func TestSearchTemplateErrors(t *testing.T) {
	c := openGreeting(t)
	cases := []struct {
		name string
		src  string
	}{
		{"empty template", ""},
		{"unknown type", "chapter"},
		{"unknown feature", "word gloss=x"},
		{"numeric filter on string feature", "word text>3"},
		{"malformed filter", "word len!5"},
		{"quantifier without parent", "no phrase"},
		{"nested quantifier", "s:sentence\n  no phrase\n    no word"},
		{"unknown yarn in relation", "p:phrase\np << q"},
		{"self relation", "p:phrase\np << p"},
		{"duplicate yarn name", "p:phrase\np:phrase"},
		{"relation into quantified subtree", "s:sentence\n  no p:phrase\nq:phrase\np << q"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Search(tc.src)
			require.Error(t, err)
			var terr *corpus.TemplateError
			assert.True(t, errors.As(err, &terr), "want a template error, got %v", err)
		})
	}
}

func TestSearchDoesNotPoisonHandle(t *testing.T) {
	c := openGreeting(t)
	_, err := c.Search("chapter")
	require.Error(t, err)
	assert.Equal(t, [][]uint32{{7}, {8}}, search(t, c, "phrase"))
}
