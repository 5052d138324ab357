package graph

import (
	"slices"
)

// UsesCycles returns the strongly connected components of the Uses subgraph
// that contain a cycle. Members keep insertion order; components are ordered
// by their first member.
func UsesCycles(g *Graph) [][]ItemID {
	t := &tarjan{
		g:       g,
		index:   make(map[NodeID]int),
		lowlink: make(map[NodeID]int),
		onStack: make(map[NodeID]bool),
	}
	for _, n := range g.Nodes() {
		if _, seen := t.index[n.ID]; !seen {
			t.strongConnect(n.ID)
		}
	}

	var cycles [][]ItemID
	for _, comp := range t.components {
		if len(comp) == 1 && !hasSelfUse(g, comp[0]) {
			continue
		}
		slices.Sort(comp)
		ids := make([]ItemID, len(comp))
		for i, id := range comp {
			n, _ := g.Node(id)
			ids[i] = n.Item.ID
		}
		cycles = append(cycles, ids)
	}
	slices.SortFunc(cycles, func(a, b []ItemID) int {
		na, _ := g.Lookup(a[0])
		nb, _ := g.Lookup(b[0])
		return int(na.ID - nb.ID)
	})
	return cycles
}

func hasSelfUse(g *Graph, id NodeID) bool {
	for _, e := range g.Outgoing(id, Uses) {
		if e.ToID == id {
			return true
		}
	}
	return false
}

type tarjan struct {
	g          *Graph
	next       int
	index      map[NodeID]int
	lowlink    map[NodeID]int
	onStack    map[NodeID]bool
	stack      []NodeID
	components [][]NodeID
}

func (t *tarjan) strongConnect(v NodeID) {
	t.index[v] = t.next
	t.lowlink[v] = t.next
	t.next++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, e := range t.g.Outgoing(v, Uses) {
		w := e.ToID
		if _, seen := t.index[w]; !seen {
			t.strongConnect(w)
			t.lowlink[v] = min(t.lowlink[v], t.lowlink[w])
		} else if t.onStack[w] {
			t.lowlink[v] = min(t.lowlink[v], t.index[w])
		}
	}

	if t.lowlink[v] != t.index[v] {
		return
	}
	var comp []NodeID
	for {
		w := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[w] = false
		comp = append(comp, w)
		if w == v {
			break
		}
	}
	t.components = append(t.components, comp)
}

// Orphans returns non-package items that nothing owns or uses, in insertion order
func Orphans(g *Graph) []Node {
	var result []Node
	for _, n := range g.Nodes() {
		if n.Item.Kind == NodeKindPackage {
			continue
		}
		if in, _ := g.Degree(n.ID); in == 0 {
			result = append(result, n)
		}
	}
	return result
}

// Stats summarises a graph
type Stats struct {
	Nodes          int              `json:"nodes" yaml:"nodes"`
	Edges          int              `json:"edges" yaml:"edges"`
	Roots          int              `json:"roots" yaml:"roots"`
	MaxDepth       int              `json:"max_depth" yaml:"max_depth"`
	ByKind         map[NodeKind]int `json:"by_kind" yaml:"by_kind"`
	ByRelationship map[string]int   `json:"by_relationship" yaml:"by_relationship"`
}

// ComputeStats counts nodes by kind, edges by relationship and the ownership depth
func ComputeStats(g *Graph) Stats {
	st := Stats{
		Nodes:          g.NodeCount(),
		Edges:          g.EdgeCount(),
		ByKind:         make(map[NodeKind]int),
		ByRelationship: make(map[string]int),
	}
	for _, n := range g.Nodes() {
		st.ByKind[n.Item.Kind]++
	}
	for _, e := range g.Edges() {
		st.ByRelationship[e.Kind.DisplayName()]++
	}

	var depth func(id NodeID, d int)
	depth = func(id NodeID, d int) {
		st.MaxDepth = max(st.MaxDepth, d)
		for _, c := range g.Children(id) {
			depth(c.ID, d+1)
		}
	}
	roots := g.Roots()
	st.Roots = len(roots)
	for _, r := range roots {
		depth(r.ID, 0)
	}
	return st
}
