package versiongraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildChain(t *testing.T) *Graph {
	t.Helper()
	g := NewWithFirstVersion("v1")
	g.AddNode("v2")
	g.AddNode("v3")
	require.NoError(t, g.AddEdge("v1", "v2"))
	require.NoError(t, g.AddEdge("v2", "v1"))
	require.NoError(t, g.AddEdge("v2", "v3"))
	require.NoError(t, g.AddEdge("v3", "v2"))
	return g
}

func TestShortestPathMultiHop(t *testing.T) {
	g := buildChain(t)

	edges, ok := g.ShortestPath("v1", "v3")
	require.True(t, ok)
	assert.Equal(t, []Edge{{From: "v1", To: "v2"}, {From: "v2", To: "v3"}}, edges)
}

func TestShortestPathSameVersion(t *testing.T) {
	g := buildChain(t)
	edges, ok := g.ShortestPath("v2", "v2")
	require.True(t, ok)
	assert.Empty(t, edges)
}

func TestShortestPathNoRoute(t *testing.T) {
	g := buildChain(t)
	g.AddNode("island")
	_, ok := g.ShortestPath("v1", "island")
	assert.False(t, ok)
}

func TestShortestPathUnknownVersion(t *testing.T) {
	g := buildChain(t)
	_, ok := g.ShortestPath("v1", "nonexistent")
	assert.False(t, ok)
}

func TestDOTRoundTrip(t *testing.T) {
	g := buildChain(t)
	g.IsMajorMinor = true
	require.NoError(t, g.SetMajorVersion("v1", true))

	data := Marshal(g)
	reparsed, err := Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, g.Nodes(), reparsed.Nodes())
	assert.True(t, reparsed.IsMajorMinor)
	assert.True(t, reparsed.IsMajorVersion("v1"))
	assert.False(t, reparsed.IsMajorVersion("v2"))

	for _, label := range g.Nodes() {
		assert.Equal(t, g.Neighbors(label), reparsed.Neighbors(label), "neighbors of %s", label)
	}

	// Re-marshaling the reparsed graph yields byte-identical output.
	assert.Equal(t, data, Marshal(reparsed))
}
