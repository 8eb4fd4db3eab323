package corpus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ic-timon/loom/corpus"
)

func TestStringFeature(t *testing.T) {
	c := openGreeting(t)
	f, err := c.Feature("function")
	require.NoError(t, err)
	assert.True(t, f.IsString())
	assert.Equal(t, "function", f.Name())

	v, ok := f.Value(7)
	require.True(t, ok)
	assert.Equal(t, "Pred", v)
	v, ok = f.Value(8)
	require.True(t, ok)
	assert.Equal(t, "Subj", v)

	_, ok = f.Value(3)
	assert.False(t, ok, "words carry no function")
	_, ok = f.Value(6)
	assert.False(t, ok)
}

func TestIntFeature(t *testing.T) {
	c := openGreeting(t)
	f, err := c.Feature("len")
	require.NoError(t, err)
	assert.False(t, f.IsString())

	n, ok := f.Int(2)
	require.True(t, ok)
	assert.Equal(t, 9, n)

	_, ok = f.Int(6)
	assert.False(t, ok, "the sentence has no len")

	// string view of an int feature renders the number
	v, ok := f.Value(4)
	require.True(t, ok)
	assert.Equal(t, "4", v)
}

func TestNodesWhere(t *testing.T) {
	c := openGreeting(t)
	f, err := c.Feature("function")
	require.NoError(t, err)

	assert.Equal(t, []uint32{7}, f.NodesWhere("Pred").ToArray())
	assert.Equal(t, []uint32{8}, f.NodesWhere("Subj").ToArray())
	assert.True(t, f.NodesWhere("Obj").IsEmpty())

	text, err := c.Feature("text")
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, text.NodesWhere("hello").ToArray())
}

func TestUnknownFeature(t *testing.T) {
	c := openGreeting(t)
	_, err := c.Feature("gloss")
	assert.ErrorIs(t, err, corpus.ErrUnknownFeature)
	_, err = c.Edge("gloss")
	assert.ErrorIs(t, err, corpus.ErrUnknownFeature)
}

func TestFeatureSelector(t *testing.T) {
	c := openGreeting(t, corpus.WithFeatures("function"))

	_, err := c.Feature("function")
	assert.NoError(t, err)
	_, err = c.Feature("text")
	assert.NoError(t, err, "text features bypass the selector")
	_, err = c.Feature("len")
	assert.ErrorIs(t, err, corpus.ErrUnknownFeature)
}

func TestEdgeFeature(t *testing.T) {
	c := openGreeting(t)
	e, err := c.Edge("dep")
	require.NoError(t, err)
	assert.Equal(t, "dep", e.Name())
	assert.True(t, e.HasValues())

	assert.Equal(t, []uint32{1}, e.TargetsCopy(2))
	assert.Equal(t, []uint32{1}, e.TargetsCopy(3))
	assert.Equal(t, []uint32{4}, e.TargetsCopy(5))
	assert.Empty(t, e.TargetsCopy(1), "hello depends on nothing")

	targets, values := e.TargetsWithValues(3)
	assert.Equal(t, []uint32{1}, append([]uint32(nil), targets...))
	assert.Equal(t, []uint32{2}, append([]uint32(nil), values...))
}

func TestText(t *testing.T) {
	c := openGreeting(t)

	got, err := c.Text(2)
	require.NoError(t, err)
	assert.Equal(t, "beautiful", got)

	got, err = c.Text(7)
	require.NoError(t, err)
	assert.Equal(t, "hello beautiful world", got)

	got, err = c.Text(6)
	require.NoError(t, err)
	assert.Equal(t, "hello beautiful world good morning", got)
}
