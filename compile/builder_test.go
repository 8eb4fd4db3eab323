package compile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ic-timon/loom/compile"
	"github.com/ic-timon/loom/corpus"
	"github.com/ic-timon/loom/corpus/store"
)

func newBuilder(t *testing.T) *compile.Builder {
	t.Helper()
	b := compile.NewBuilder("word")
	require.NoError(t, b.AddType("line"))
	return b
}

func TestBuildAndOpen(t *testing.T) {
	b := newBuilder(t)
	b.SetVersion("2.1")
	for _, w := range []string{"a", "b", "c"} {
		b.AddSlot(map[string]any{"text": w})
	}
	b.AddNode("line", []uint32{1, 2, 3}, map[string]any{"n": 1})

	dir := filepath.Join(t.TempDir(), "2.1")
	require.NoError(t, b.Build(dir))

	_, err := os.Stat(dir + ".tmp")
	assert.True(t, os.IsNotExist(err), "staging directory is renamed away")

	c, err := corpus.Open(dir)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "2.1", c.Version())
	assert.Equal(t, uint32(3), c.MaxSlot())
	assert.Equal(t, uint32(4), c.MaxNode())
	assert.Equal(t, "line", c.TypeOf(4))
	assert.Equal(t, []uint32{1, 2, 3}, c.Span(4))

	text, err := c.Text(4)
	require.NoError(t, err)
	assert.Equal(t, "a b c", text)

	n, err := c.Feature("n")
	require.NoError(t, err)
	v, ok := n.Int(4)
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestBuildRenumbersSpans(t *testing.T) {
	// spans arrive unsorted and with duplicates; the builder normalizes
	b := newBuilder(t)
	for i := 0; i < 4; i++ {
		b.AddSlot(nil)
	}
	b.AddNode("line", []uint32{3, 1, 3, 2}, nil)

	dir := filepath.Join(t.TempDir(), "v")
	require.NoError(t, b.Build(dir))
	c, err := corpus.Open(dir)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, []uint32{1, 2, 3}, c.Span(5))
}

func TestBuildTypeBlocks(t *testing.T) {
	// nodes interleaved across types still land in contiguous id blocks,
	// ordered by type declaration
	b := compile.NewBuilder("word")
	require.NoError(t, b.AddType("sentence"))
	require.NoError(t, b.AddType("phrase"))
	for i := 0; i < 4; i++ {
		b.AddSlot(nil)
	}
	b.AddNode("phrase", []uint32{1, 2}, nil)
	b.AddNode("sentence", []uint32{1, 2, 3, 4}, nil)
	b.AddNode("phrase", []uint32{3, 4}, nil)

	dir := filepath.Join(t.TempDir(), "v")
	require.NoError(t, b.Build(dir))
	c, err := corpus.Open(dir)
	require.NoError(t, err)
	defer c.Close()

	min, max, ok := c.TypeRange("sentence")
	require.True(t, ok)
	assert.Equal(t, uint32(5), min)
	assert.Equal(t, uint32(5), max)
	min, max, ok = c.TypeRange("phrase")
	require.True(t, ok)
	assert.Equal(t, uint32(6), min)
	assert.Equal(t, uint32(7), max)
	assert.Equal(t, []uint32{1, 2}, c.Span(6), "insertion order within the block")
}

func TestBuildEdges(t *testing.T) {
	b := newBuilder(t)
	s1 := b.AddSlot(nil)
	s2 := b.AddSlot(nil)
	l := b.AddNode("line", []uint32{1, 2}, nil)
	b.SetEdge("head", l, s1)
	b.SetEdge("head", l, s2)

	dir := filepath.Join(t.TempDir(), "v")
	require.NoError(t, b.Build(dir))
	c, err := corpus.Open(dir)
	require.NoError(t, err)
	defer c.Close()

	e, err := c.Edge("head")
	require.NoError(t, err)
	assert.False(t, e.HasValues())
	assert.Equal(t, []uint32{1, 2}, e.TargetsCopy(3))
}

func TestBuildRejects(t *testing.T) {
	dir := func(t *testing.T) string { return filepath.Join(t.TempDir(), "v") }

	t.Run("no slots", func(t *testing.T) {
		b := newBuilder(t)
		assert.ErrorIs(t, b.Build(dir(t)), compile.ErrBuild)
	})
	t.Run("duplicate type", func(t *testing.T) {
		b := newBuilder(t)
		assert.ErrorIs(t, b.AddType("line"), compile.ErrBuild)
	})
	t.Run("slot type redeclared", func(t *testing.T) {
		b := newBuilder(t)
		assert.ErrorIs(t, b.AddType("word"), compile.ErrBuild)
	})
	t.Run("undeclared node type", func(t *testing.T) {
		b := newBuilder(t)
		b.AddSlot(nil)
		b.AddNode("chapter", []uint32{1}, nil)
		assert.ErrorIs(t, b.Build(dir(t)), compile.ErrBuild)
	})
	t.Run("span out of range", func(t *testing.T) {
		b := newBuilder(t)
		b.AddSlot(nil)
		b.AddNode("line", []uint32{1, 9}, nil)
		assert.ErrorIs(t, b.Build(dir(t)), compile.ErrBuild)
	})
	t.Run("empty span", func(t *testing.T) {
		b := newBuilder(t)
		b.AddSlot(nil)
		b.AddNode("line", nil, nil)
		assert.ErrorIs(t, b.Build(dir(t)), compile.ErrBuild)
	})
	t.Run("mixed feature kinds", func(t *testing.T) {
		b := newBuilder(t)
		b.AddSlot(map[string]any{"f": "x"})
		b.AddSlot(map[string]any{"f": 3})
		assert.ErrorIs(t, b.Build(dir(t)), compile.ErrBuild)
	})
	t.Run("unsupported feature type", func(t *testing.T) {
		b := newBuilder(t)
		b.AddSlot(map[string]any{"f": 1.5})
		assert.ErrorIs(t, b.Build(dir(t)), compile.ErrBuild)
	})
	t.Run("mixed edge values", func(t *testing.T) {
		b := newBuilder(t)
		s1 := b.AddSlot(nil)
		s2 := b.AddSlot(nil)
		b.SetEdge("e", s1, s2, 7)
		b.SetEdge("e", s2, s1)
		assert.ErrorIs(t, b.Build(dir(t)), compile.ErrBuild)
	})
}

func TestBuildCompression(t *testing.T) {
	for _, ct := range []store.CompressionType{
		store.CompressionNone, store.CompressionLZ4, store.CompressionZSTD,
	} {
		b := newBuilder(t)
		b.SetCompression(ct)
		b.AddSlot(map[string]any{"text": "same"})
		b.AddSlot(map[string]any{"text": "same"})
		b.AddNode("line", []uint32{1, 2}, nil)

		dir := filepath.Join(t.TempDir(), "v")
		require.NoError(t, b.Build(dir))
		c, err := corpus.Open(dir)
		require.NoError(t, err)
		got, err := c.Text(3)
		require.NoError(t, err)
		assert.Equal(t, "same same", got)
		require.NoError(t, c.Close())
	}
}

func TestBuildReplacesExistingVersion(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "v")

	b := newBuilder(t)
	b.AddSlot(map[string]any{"text": "old"})
	require.NoError(t, b.Build(dir))

	b2 := newBuilder(t)
	b2.AddSlot(map[string]any{"text": "new"})
	b2.AddSlot(map[string]any{"text": "corpus"})
	require.NoError(t, b2.Build(dir))

	c, err := corpus.Open(dir)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, uint32(2), c.MaxSlot())
	t1, err := c.Text(1)
	require.NoError(t, err)
	assert.Equal(t, "new", t1)
}
