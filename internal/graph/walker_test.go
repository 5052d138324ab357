package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventStrings(events []Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.String()
	}
	return out
}

func walk(t *testing.T, g *Graph, opts ...WalkOption) []string {
	t.Helper()
	events, err := Collect(NewWalker(g, opts...).Walk(context.Background()))
	require.NoError(t, err)
	return eventStrings(events)
}

func TestWalk_Scenario(t *testing.T) {
	g, err := FromCatalog(scenarioCatalog())
	require.NoError(t, err)

	want := []string{
		"EnterNode(root)",
		"EnterNode(mod_a)",
		"EnterNode(fn_c)",
		"Edge(Uses, fn_c, mod_b)",
		"LeaveNode(fn_c)",
		"LeaveNode(mod_a)",
		"EnterNode(mod_b)",
		"LeaveNode(mod_b)",
		"LeaveNode(root)",
	}
	assert.Equal(t, want, walk(t, g))
}

func TestWalk_Depths(t *testing.T) {
	g, err := FromCatalog(scenarioCatalog())
	require.NoError(t, err)

	events, err := Collect(NewWalker(g).Walk(context.Background()))
	require.NoError(t, err)
	depths := make(map[string]int)
	for _, ev := range events {
		depths[ev.String()] = ev.Depth
	}
	assert.Equal(t, 0, depths["EnterNode(root)"])
	assert.Equal(t, 2, depths["EnterNode(fn_c)"])
	assert.Equal(t, 2, depths["Edge(Uses, fn_c, mod_b)"])
	assert.Equal(t, 1, depths["LeaveNode(mod_b)"])
}

func TestWalk_Idempotent(t *testing.T) {
	g, err := FromCatalog(scenarioCatalog())
	require.NoError(t, err)

	w := NewWalker(g)
	first, err := Collect(w.Walk(context.Background()))
	require.NoError(t, err)
	second, err := Collect(w.Walk(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 4, g.NodeCount())
	assert.Equal(t, 4, g.EdgeCount())
}

func TestWalk_IsolatedNode(t *testing.T) {
	cat := scenarioCatalog()
	cat.Items = append(cat.Items, item("lonely", NodeKindFunc))
	g, err := FromCatalog(cat)
	require.NoError(t, err)

	got := walk(t, g)
	assert.Equal(t, []string{"EnterNode(lonely)", "LeaveNode(lonely)"}, got[len(got)-2:])
	assert.Equal(t, []ItemID{"root", "lonely"}, itemIDs(g.Roots()))
}

func TestWalk_Empty(t *testing.T) {
	g, err := FromCatalog(Catalog{})
	require.NoError(t, err)
	assert.Empty(t, walk(t, g))
}

func TestWalk_Order(t *testing.T) {
	cat := Catalog{
		Items: []Item{
			item("pkg", NodeKindPackage),
			item("zeta", NodeKindFunc),
			item("Alpha", NodeKindStruct),
			item("beta", NodeKindVar),
		},
		Relations: []Triple{
			rel("pkg", "zeta", Owns),
			rel("pkg", "Alpha", Owns),
			rel("pkg", "beta", Owns),
			rel("pkg", "zeta", Uses),
			rel("pkg", "beta", Uses),
		},
	}
	g, err := FromCatalog(cat)
	require.NoError(t, err)

	tests := []struct {
		name string
		opts []WalkOption
		want []string
	}{
		{
			name: "insertion",
			want: []string{
				"EnterNode(pkg)", "Edge(Uses, pkg, zeta)", "Edge(Uses, pkg, beta)",
				"EnterNode(zeta)", "LeaveNode(zeta)",
				"EnterNode(Alpha)", "LeaveNode(Alpha)",
				"EnterNode(beta)", "LeaveNode(beta)",
				"LeaveNode(pkg)",
			},
		},
		{
			name: "by name",
			opts: []WalkOption{WithOrder(ByName)},
			want: []string{
				"EnterNode(pkg)", "Edge(Uses, pkg, beta)", "Edge(Uses, pkg, zeta)",
				"EnterNode(Alpha)", "LeaveNode(Alpha)",
				"EnterNode(beta)", "LeaveNode(beta)",
				"EnterNode(zeta)", "LeaveNode(zeta)",
				"LeaveNode(pkg)",
			},
		},
		{
			name: "by kind",
			opts: []WalkOption{WithOrder(ByKind), WithUses(false)},
			want: []string{
				"EnterNode(pkg)",
				"EnterNode(Alpha)", "LeaveNode(Alpha)",
				"EnterNode(beta)", "LeaveNode(beta)",
				"EnterNode(zeta)", "LeaveNode(zeta)",
				"LeaveNode(pkg)",
			},
		},
		{
			name: "custom reverse",
			opts: []WalkOption{WithUses(false), WithCompare(func(a, b Node) int { return int(b.ID - a.ID) })},
			want: []string{
				"EnterNode(pkg)",
				"EnterNode(beta)", "LeaveNode(beta)",
				"EnterNode(Alpha)", "LeaveNode(Alpha)",
				"EnterNode(zeta)", "LeaveNode(zeta)",
				"LeaveNode(pkg)",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, walk(t, g, tt.opts...))
		})
	}
}

func TestWalk_RootsAndDepth(t *testing.T) {
	g, err := FromCatalog(scenarioCatalog())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"EnterNode(mod_a)", "EnterNode(fn_c)", "Edge(Uses, fn_c, mod_b)", "LeaveNode(fn_c)", "LeaveNode(mod_a)",
	}, walk(t, g, WithRoots("mod_a", "mod_a")))

	assert.Equal(t, []string{
		"EnterNode(root)", "EnterNode(mod_a)", "LeaveNode(mod_a)", "EnterNode(mod_b)", "LeaveNode(mod_b)", "LeaveNode(root)",
	}, walk(t, g, WithMaxDepth(1)))

	_, err = Collect(NewWalker(g, WithRoots("nope")).Walk(context.Background()))
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestWalk_EarlyStop(t *testing.T) {
	g, err := FromCatalog(scenarioCatalog())
	require.NoError(t, err)

	var seen []string
	for ev, err := range NewWalker(g).Walk(context.Background()) {
		require.NoError(t, err)
		seen = append(seen, ev.String())
		if len(seen) == 3 {
			break
		}
	}
	assert.Equal(t, []string{"EnterNode(root)", "EnterNode(mod_a)", "EnterNode(fn_c)"}, seen)
}

func TestWalk_Cancelled(t *testing.T) {
	g, err := FromCatalog(scenarioCatalog())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Collect(NewWalker(g).Walk(ctx))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWalk_StructuralCycle(t *testing.T) {
	// The builder rejects this shape, so assemble the store directly.
	s := newStore(2)
	a := s.addNode(item("a", NodeKindPackage))
	b := s.addNode(item("b", NodeKindPackage))
	s.addEdge(a, b, Owns)
	s.addEdge(b, a, Owns)
	g := &Graph{s: s}

	events, err := Collect(NewWalker(g, WithRoots("a")).Walk(context.Background()))
	var cycle *StructuralCycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, ItemID("a"), cycle.Item)
	assert.Equal(t, []ItemID{"a", "b", "a"}, cycle.Path)
	assert.ErrorIs(t, err, ErrStructuralCycle)
	assert.Equal(t, []string{"EnterNode(a)", "EnterNode(b)"}, eventStrings(events))
}

func TestParseOrder(t *testing.T) {
	for in, want := range map[string]Order{"": InsertionOrder, "insertion": InsertionOrder, "name": ByName, "kind": ByKind} {
		got, err := ParseOrder(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseOrder("random")
	assert.Error(t, err)
}
