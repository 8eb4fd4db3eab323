package corpus_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ic-timon/loom/compile"
	"github.com/ic-timon/loom/corpus"
)

// buildGreeting compiles the small fixture corpus used across the tests:
//
//	slots    1..5   hello beautiful world good morning
//	phrases  7, 8   [1,3] function=Pred ; [4,5] function=Subj
//	sentence 6      [1,5]
//
// plus an int feature len on slots and a dep edge among the words.
func buildGreeting(t *testing.T) string {
	t.Helper()
	b := compile.NewBuilder("word")
	require.NoError(t, b.AddType("sentence"))
	require.NoError(t, b.AddType("phrase"))
	b.SetVersion("1.0")

	words := []struct {
		text string
		len  int
	}{
		{"hello", 5}, {"beautiful", 9}, {"world", 5}, {"good", 4}, {"morning", 7},
	}
	refs := make([]compile.NodeRef, len(words))
	for i, w := range words {
		refs[i] = b.AddSlot(map[string]any{"text": w.text, "len": w.len})
	}
	b.AddNode("sentence", []uint32{1, 2, 3, 4, 5}, nil)
	b.AddNode("phrase", []uint32{1, 2, 3}, map[string]any{"function": "Pred"})
	b.AddNode("phrase", []uint32{4, 5}, map[string]any{"function": "Subj"})

	// beautiful and world depend on hello; morning on good
	b.SetEdge("dep", refs[1], refs[0], 1)
	b.SetEdge("dep", refs[2], refs[0], 2)
	b.SetEdge("dep", refs[4], refs[3], 1)

	dir := filepath.Join(t.TempDir(), "1.0")
	require.NoError(t, b.Build(dir))
	return dir
}

func openGreeting(t *testing.T, opts ...corpus.Option) *corpus.Corpus {
	t.Helper()
	c, err := corpus.Open(buildGreeting(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func writeFile(path string, b []byte) error {
	return os.WriteFile(path, b, 0o644)
}
// collect drains a result sequence into a slice of tuples.
func collect(t *testing.T, res *corpus.Results) [][]uint32 {
	t.Helper()
	var out [][]uint32
	for res.Next() {
		out = append(out, res.Tuple())
	}
	require.NoError(t, res.Err())
	return out
}

func search(t *testing.T, c *corpus.Corpus, src string) [][]uint32 {
	t.Helper()
	res, err := c.Search(src)
	require.NoError(t, err)
	return collect(t, res)
}
