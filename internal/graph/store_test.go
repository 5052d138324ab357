package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_TombstonesKeepIDs(t *testing.T) {
	s := newStore(0)
	a := s.addNode(item("a", NodeKindPackage))
	b := s.addNode(item("b", NodeKindFunc))
	c := s.addNode(item("c", NodeKindFunc))
	ab, added := s.addEdge(a, b, Owns)
	require.True(t, added)
	bc, _ := s.addEdge(b, c, Uses)
	ac, _ := s.addEdge(a, c, Owns)

	s.removeNode(b)

	_, ok := s.node(b)
	assert.False(t, ok)
	_, ok = s.edge(ab)
	assert.False(t, ok)
	_, ok = s.edge(bc)
	assert.False(t, ok)
	e, ok := s.edge(ac)
	require.True(t, ok)
	assert.Equal(t, a, e.FromID)
	assert.Equal(t, c, e.ToID)

	assert.Equal(t, 2, s.liveNodes)
	assert.Equal(t, 1, s.liveEdges)
	_, known := s.byItem["b"]
	assert.False(t, known)

	d := s.addNode(item("d", NodeKindVar))
	assert.Equal(t, NodeID(4), d, "slots are never reused")

	// an edge equal to a removed one is a new edge with a new ID
	s.removeEdge(ac)
	again, added := s.addEdge(a, c, Owns)
	assert.True(t, added)
	assert.Equal(t, EdgeID(4), again)
}

func TestStore_OutOfRange(t *testing.T) {
	s := newStore(0)
	_, ok := s.node(0)
	assert.False(t, ok)
	_, ok = s.node(9)
	assert.False(t, ok)
	_, ok = s.edge(-1)
	assert.False(t, ok)
	s.removeNode(3)
	s.removeEdge(3)
	assert.Equal(t, 0, s.liveNodes)
}

func TestGraph_MissingNode(t *testing.T) {
	g, err := FromCatalog(scenarioCatalog())
	require.NoError(t, err)

	assert.Nil(t, g.Outgoing(99, Uses))
	assert.Nil(t, g.Incoming(99, Owns))
	assert.Empty(t, g.Children(99))
	_, ok := g.Owner(99)
	assert.False(t, ok)
	_, err = g.MustLookup("ghost")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}
