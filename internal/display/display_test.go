package display

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/modgraph/internal/graph"
)

func TestShortName(t *testing.T) {
	assert.Equal(t, "pkg.Type.Method", ShortName("github.com/foo/bar/pkg.Type.Method"))
	assert.Equal(t, "strings", ShortName("strings"))
}

func TestShortSignature(t *testing.T) {
	assert.Equal(t, "func(db *gorm.DB) error", ShortSignature("func(db *github.com/jinzhu/gorm.DB) error"))
	assert.Equal(t, "func(m map[string]store.Item, xs []pkg.T)",
		ShortSignature("func(m map[string]example.com/app/store.Item, xs []example.com/pkg.T)"))
	assert.Equal(t, "func() error", ShortSignature("func() error"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "abcd...", Truncate("abcdefghij", 7))
}

func treeGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.FromCatalog(graph.Catalog{
		Items: []graph.Item{
			{ID: "m", Name: "m", Path: "m", Kind: graph.NodeKindPackage},
			{ID: "m.A", Name: "A", Path: "m.A", Kind: graph.NodeKindStruct, Visibility: graph.VisibilityPublic, File: "a.go", Line: 3},
			{ID: "m.A.F", Name: "F", Path: "m.A.F", Kind: graph.NodeKindMethod},
			{ID: "m.B", Name: "B", Path: "m.B", Kind: graph.NodeKindFunc},
		},
		Relations: []graph.Triple{
			{Source: "m", Target: "m.A", Kind: graph.Owns},
			{Source: "m", Target: "m.B", Kind: graph.Owns},
			{Source: "m.A", Target: "m.A.F", Kind: graph.Owns},
			{Source: "m.B", Target: "m.A", Kind: graph.Uses},
		},
	})
	require.NoError(t, err)
	return g
}

func TestBuildTree(t *testing.T) {
	g := treeGraph(t)
	roots, err := BuildTree(graph.NewWalker(g).Walk(context.Background()))
	require.NoError(t, err)
	require.Len(t, roots, 1)

	m := roots[0]
	assert.Equal(t, graph.ItemID("m"), m.Node.Item.ID)
	require.Len(t, m.Children, 2)
	assert.Equal(t, 1, m.Children[0].Depth)
	require.Len(t, m.Children[0].Children, 1)
	require.Len(t, m.Children[1].Uses, 1)
	assert.Equal(t, graph.ItemID("m.A"), m.Children[1].Uses[0].Item.ID)
}

func TestBuildTree_PropagatesError(t *testing.T) {
	g := treeGraph(t)
	_, err := BuildTree(graph.NewWalker(g, graph.WithRoots("missing")).Walk(context.Background()))
	assert.ErrorIs(t, err, graph.ErrNodeNotFound)
}

func TestFormatTree(t *testing.T) {
	g := treeGraph(t)
	roots, err := BuildTree(graph.NewWalker(g).Walk(context.Background()))
	require.NoError(t, err)

	out := FormatTree(roots, TreeOptions{ShowUses: true})
	expected := "m (package)\n" +
		"├── A (struct)\n" +
		"│   └── F (method)\n" +
		"└── B (func)\n" +
		"        → uses m.A\n"
	assert.Equal(t, expected, out)

	out = FormatTree(roots, TreeOptions{ShowLocation: true, ShowVisibility: true})
	assert.Contains(t, out, "├── A (struct) pub      a.go:3\n")
	assert.NotContains(t, out, "uses")
}

func TestFormatTree_Color(t *testing.T) {
	g := treeGraph(t)
	roots, err := BuildTree(graph.NewWalker(g).Walk(context.Background()))
	require.NoError(t, err)

	out := FormatTree(roots, TreeOptions{Color: true, ShowUses: true})
	assert.Contains(t, out, "(struct)")
	assert.Contains(t, out, "uses m.A")
}

func TestFormatEvents(t *testing.T) {
	g := treeGraph(t)
	events, err := graph.Collect(graph.NewWalker(g, graph.WithRoots("m.B")).Walk(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, "EnterNode(m.B)\nEdge(Uses, m.B, m.A)\nLeaveNode(m.B)\n", FormatEvents(events))
}

func TestRenderTree(t *testing.T) {
	g := treeGraph(t)
	var sb strings.Builder
	err := RenderTree(&sb, graph.NewWalker(g, graph.WithRoots("m.A")).Walk(context.Background()), TreeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "m.A (struct)\n└── F (method)\n", sb.String())
}
