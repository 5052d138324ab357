package graph

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id string, kind NodeKind) Item {
	return Item{ID: ItemID(id), Name: id, Path: "crate::" + id, Kind: kind}
}

func rel(src, dst string, kind Relationship) Triple {
	return Triple{Source: ItemID(src), Target: ItemID(dst), Kind: kind}
}

// scenarioCatalog: root owns mod_a and mod_b, mod_a owns fn_c, fn_c uses mod_b
func scenarioCatalog() Catalog {
	return Catalog{
		Items: []Item{
			item("root", NodeKindPackage),
			item("mod_a", NodeKindPackage),
			item("mod_b", NodeKindPackage),
			item("fn_c", NodeKindFunc),
		},
		Relations: []Triple{
			rel("root", "mod_a", Owns),
			rel("root", "mod_b", Owns),
			rel("mod_a", "fn_c", Owns),
			rel("fn_c", "mod_b", Uses),
		},
	}
}

func itemIDs(nodes []Node) []ItemID {
	ids := make([]ItemID, len(nodes))
	for i, n := range nodes {
		ids[i] = n.Item.ID
	}
	return ids
}

func TestBuild_Scenario(t *testing.T) {
	g, err := FromCatalog(scenarioCatalog())
	require.NoError(t, err)

	assert.Equal(t, 4, g.NodeCount())
	assert.Equal(t, 4, g.EdgeCount())
	assert.Equal(t, []ItemID{"root", "mod_a", "mod_b", "fn_c"}, itemIDs(g.Nodes()))
	assert.Equal(t, []ItemID{"root"}, itemIDs(g.Roots()))

	root, ok := g.Lookup("root")
	require.True(t, ok)
	assert.Equal(t, []ItemID{"mod_a", "mod_b"}, itemIDs(g.Children(root.ID)))

	fn, ok := g.Lookup("fn_c")
	require.True(t, ok)
	owner, ok := g.Owner(fn.ID)
	require.True(t, ok)
	assert.Equal(t, ItemID("mod_a"), owner.Item.ID)
	assert.Equal(t, []ItemID{"mod_a", "root"}, itemIDs(g.OwnerChain(fn.ID)))

	uses := g.Outgoing(fn.ID, Uses)
	require.Len(t, uses, 1)
	modB, _ := g.Lookup("mod_b")
	assert.Equal(t, modB.ID, uses[0].ToID)
	assert.Len(t, g.Incoming(modB.ID, Uses), 1)
	assert.Len(t, g.Incoming(modB.ID, Owns), 1)
}

func TestBuild_NodeCountMatchesItems(t *testing.T) {
	for _, n := range []int{0, 1, 17, 250} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			var cat Catalog
			for i := 0; i < n; i++ {
				cat.Items = append(cat.Items, item(fmt.Sprintf("item_%d", i), NodeKindFunc))
				if i > 0 {
					cat.Relations = append(cat.Relations, rel("item_0", fmt.Sprintf("item_%d", i), Uses))
				}
			}
			g, err := FromCatalog(cat)
			require.NoError(t, err)
			assert.Equal(t, n, g.NodeCount())
			assert.Len(t, g.Nodes(), n)
		})
	}
}

func TestBuild_DuplicateItem(t *testing.T) {
	cat := Catalog{Items: []Item{item("a", NodeKindFunc), item("b", NodeKindFunc), item("a", NodeKindVar)}}

	g, err := FromCatalog(cat)
	assert.Nil(t, g)
	var dup *DuplicateItemError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, ItemID("a"), dup.Item)
	assert.Equal(t, 0, dup.First)
	assert.Equal(t, 2, dup.Second)
	assert.EqualError(t, err, `duplicate item "a" at positions 0 and 2`)
	assert.ErrorIs(t, err, ErrDuplicateItem)
}

func TestBuild_DanglingReference(t *testing.T) {
	tests := []struct {
		name string
		rels []Triple
		side Side
		id   ItemID
	}{
		{"unknown source", []Triple{rel("ghost", "a", Uses)}, SideSource, "ghost"},
		{"unknown target", []Triple{rel("a", "ghost", Owns)}, SideTarget, "ghost"},
		{"first error wins", []Triple{rel("a", "b", Uses), rel("a", "first", Uses), rel("second", "a", Uses)}, SideTarget, "first"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := Catalog{Items: []Item{item("a", NodeKindFunc), item("b", NodeKindFunc)}, Relations: tt.rels}
			g, err := FromCatalog(cat)
			assert.Nil(t, g)
			var dangling *DanglingReferenceError
			require.ErrorAs(t, err, &dangling)
			assert.Equal(t, tt.side, dangling.Side)
			assert.Equal(t, tt.id, dangling.Item)
			assert.ErrorIs(t, err, ErrDanglingReference)
		})
	}
}

func TestBuild_MultipleOwners(t *testing.T) {
	items := []Item{item("a", NodeKindPackage), item("b", NodeKindPackage), item("c", NodeKindFunc)}

	t.Run("second owner", func(t *testing.T) {
		_, err := FromCatalog(Catalog{Items: items, Relations: []Triple{rel("a", "c", Owns), rel("b", "c", Owns)}})
		var multi *MultipleOwnersError
		require.ErrorAs(t, err, &multi)
		assert.Equal(t, &MultipleOwnersError{Item: "c", Owner: "a", Candidate: "b"}, multi)
		assert.ErrorIs(t, err, ErrMultipleOwners)
	})

	t.Run("mutual ownership", func(t *testing.T) {
		g, err := FromCatalog(Catalog{Items: items, Relations: []Triple{rel("a", "b", Owns), rel("b", "a", Owns)}})
		assert.Nil(t, g)
		var multi *MultipleOwnersError
		require.ErrorAs(t, err, &multi)
		assert.Equal(t, ItemID("a"), multi.Item)
		assert.Equal(t, ItemID("b"), multi.Candidate)
		assert.Contains(t, err.Error(), "cycle")
	})

	t.Run("longer loop", func(t *testing.T) {
		_, err := FromCatalog(Catalog{Items: items, Relations: []Triple{rel("a", "b", Owns), rel("b", "c", Owns), rel("c", "a", Owns)}})
		assert.ErrorIs(t, err, ErrMultipleOwners)
	})

	t.Run("self ownership", func(t *testing.T) {
		_, err := FromCatalog(Catalog{Items: items, Relations: []Triple{rel("a", "a", Owns)}})
		assert.ErrorIs(t, err, ErrMultipleOwners)
	})

	t.Run("repeated owner is merged", func(t *testing.T) {
		g, err := FromCatalog(Catalog{Items: items, Relations: []Triple{rel("a", "c", Owns), rel("a", "c", Owns)}})
		require.NoError(t, err)
		assert.Equal(t, 1, g.EdgeCount())
	})
}

func TestBuild_EdgeMerging(t *testing.T) {
	cat := Catalog{
		Items: []Item{item("a", NodeKindPackage), item("b", NodeKindFunc)},
		Relations: []Triple{
			rel("a", "b", Uses),
			rel("a", "b", Owns),
			rel("a", "b", Uses),
		},
	}
	g, err := FromCatalog(cat)
	require.NoError(t, err)
	assert.Equal(t, 2, g.EdgeCount())

	a, _ := g.Lookup("a")
	edges := g.Outgoing(a.ID, Uses)
	require.Len(t, edges, 1)
	assert.Equal(t, EdgeID(1), edges[0].ID)
	assert.Len(t, g.Outgoing(a.ID, Owns), 1)
}

func TestBuild_SelfLoops(t *testing.T) {
	cat := Catalog{
		Items:     []Item{item("rec", NodeKindFunc)},
		Relations: []Triple{rel("rec", "rec", Uses)},
	}

	g, err := FromCatalog(cat)
	require.NoError(t, err)
	assert.Equal(t, 1, g.EdgeCount())

	g, err = FromCatalog(cat, WithSelfLoops(false))
	require.NoError(t, err)
	assert.Equal(t, 0, g.EdgeCount())
}

func TestBuild_WithoutRelationship(t *testing.T) {
	g, err := FromCatalog(scenarioCatalog(), WithoutRelationship(Uses))
	require.NoError(t, err)
	assert.Equal(t, 3, g.EdgeCount())
	for _, e := range g.Edges() {
		assert.Equal(t, Owns, e.Kind)
	}

	// endpoints are still validated for dropped kinds
	cat := scenarioCatalog()
	cat.Relations = append(cat.Relations, rel("fn_c", "ghost", Uses))
	_, err = FromCatalog(cat, WithoutRelationship(Uses))
	assert.ErrorIs(t, err, ErrDanglingReference)
}

func TestBuild_ExcludedKinds(t *testing.T) {
	cat := scenarioCatalog()
	cat.Items = append(cat.Items, item("local", NodeKindVar))
	cat.Relations = append(cat.Relations, rel("fn_c", "local", Owns))

	g, err := FromCatalog(cat, WithExcludedKinds(NodeKindFunc))
	require.NoError(t, err)
	assert.Equal(t, []ItemID{"root", "mod_a", "mod_b"}, itemIDs(g.Nodes()))
	assert.Equal(t, 2, g.EdgeCount())

	// surviving IDs are stable
	full, err := FromCatalog(cat)
	require.NoError(t, err)
	for _, n := range g.Nodes() {
		m, ok := full.Lookup(n.Item.ID)
		require.True(t, ok)
		assert.Equal(t, m.ID, n.ID)
	}
	_, ok := g.Node(4)
	assert.False(t, ok, "tombstoned slot must stay dead")
}

func TestBuild_Prune(t *testing.T) {
	cat := scenarioCatalog()
	cat.Items = append(cat.Items, item("island", NodeKindPackage), item("island_fn", NodeKindFunc))
	cat.Relations = append(cat.Relations, rel("island", "island_fn", Owns), rel("island_fn", "fn_c", Uses))

	g, err := FromCatalog(cat, WithPruneFrom("mod_a"))
	require.NoError(t, err)
	assert.Equal(t, []ItemID{"mod_a", "mod_b", "fn_c"}, itemIDs(g.Nodes()))
	assert.Equal(t, 2, g.EdgeCount())

	g, err = FromCatalog(cat, WithPruneFrom("root"))
	require.NoError(t, err)
	assert.Equal(t, 4, g.NodeCount())
	_, ok := g.Lookup("island")
	assert.False(t, ok)

	_, err = FromCatalog(cat, WithPruneFrom("nowhere"))
	var dangling *DanglingReferenceError
	require.ErrorAs(t, err, &dangling)
	assert.Equal(t, SideRoot, dangling.Side)
}

func TestBuilder_Lifecycle(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddItem(item("a", NodeKindPackage)))
	require.NoError(t, b.AddItem(item("b", NodeKindFunc)))
	require.NoError(t, b.AddRelation(rel("a", "b", Owns)))

	g, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 2, g.NodeCount())

	assert.ErrorIs(t, b.AddItem(item("c", NodeKindFunc)), ErrBuilderConsumed)
	assert.ErrorIs(t, b.AddRelation(rel("a", "b", Uses)), ErrBuilderConsumed)
	_, err = b.Build()
	assert.ErrorIs(t, err, ErrBuilderConsumed)
	assert.Equal(t, 2, g.NodeCount(), "graph is unaffected by later builder calls")
}

func TestBuilder_ErrorIsSticky(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddItem(item("a", NodeKindFunc)))
	first := b.AddRelation(rel("a", "missing", Uses))
	require.Error(t, first)

	assert.True(t, errors.Is(b.AddItem(item("b", NodeKindFunc)), ErrDanglingReference))
	g, err := b.Build()
	assert.Nil(t, g)
	assert.Equal(t, first, err)
}

func TestGraph_CatalogRoundTrip(t *testing.T) {
	g, err := FromCatalog(scenarioCatalog())
	require.NoError(t, err)

	cat := g.Catalog()
	assert.Equal(t, scenarioCatalog(), cat)

	again, err := FromCatalog(cat)
	require.NoError(t, err)
	assert.Equal(t, itemIDs(g.Nodes()), itemIDs(again.Nodes()))
	assert.Equal(t, g.Edges(), again.Edges())
}
