package graph

import "fmt"

// Graph is an immutable item graph produced by Builder.Build
type Graph struct {
	s *store
}

// Node returns the node stored at id
func (g *Graph) Node(id NodeID) (Node, bool) {
	slot, ok := g.s.node(id)
	if !ok {
		return Node{}, false
	}
	return Node{ID: id, Item: slot.item}, true
}

// Lookup returns the node holding the given item
func (g *Graph) Lookup(item ItemID) (Node, bool) {
	id, ok := g.s.byItem[item]
	if !ok {
		return Node{}, false
	}
	return g.Node(id)
}

// MustLookup is Lookup that fails with ErrNodeNotFound
func (g *Graph) MustLookup(item ItemID) (Node, error) {
	n, ok := g.Lookup(item)
	if !ok {
		return Node{}, fmt.Errorf("%w: %q", ErrNodeNotFound, item)
	}
	return n, nil
}

// Nodes returns all live nodes in insertion order
func (g *Graph) Nodes() []Node {
	result := make([]Node, 0, g.s.liveNodes)
	for i, slot := range g.s.nodes {
		if slot.alive {
			result = append(result, Node{ID: NodeID(i + 1), Item: slot.item})
		}
	}
	return result
}

// Edges returns all live edges in insertion order
func (g *Graph) Edges() []Edge {
	result := make([]Edge, 0, g.s.liveEdges)
	for _, slot := range g.s.edges {
		if slot.alive {
			result = append(result, slot.edge)
		}
	}
	return result
}

// Outgoing returns live edges of the given kind leaving id, in insertion order
func (g *Graph) Outgoing(id NodeID, kind Relationship) []Edge {
	slot, ok := g.s.node(id)
	if !ok {
		return nil
	}
	return g.s.adjacent(slot.out, kind, false)
}

// Incoming returns live edges of the given kind entering id, in insertion order
func (g *Graph) Incoming(id NodeID, kind Relationship) []Edge {
	slot, ok := g.s.node(id)
	if !ok {
		return nil
	}
	return g.s.adjacent(slot.in, kind, false)
}

// Degree returns the number of live incoming and outgoing edges of any kind
func (g *Graph) Degree(id NodeID) (in, out int) {
	slot, ok := g.s.node(id)
	if !ok {
		return 0, 0
	}
	return len(g.s.adjacent(slot.in, 0, true)), len(g.s.adjacent(slot.out, 0, true))
}

// Owner returns the node owning id, if any
func (g *Graph) Owner(id NodeID) (Node, bool) {
	owner, ok := g.s.owner(id)
	if !ok {
		return Node{}, false
	}
	return g.Node(owner)
}

// Children returns the nodes owned by id, in Owns edge insertion order
func (g *Graph) Children(id NodeID) []Node {
	edges := g.Outgoing(id, Owns)
	result := make([]Node, 0, len(edges))
	for _, e := range edges {
		if n, ok := g.Node(e.ToID); ok {
			result = append(result, n)
		}
	}
	return result
}

// Roots returns every node without an owner, in insertion order
func (g *Graph) Roots() []Node {
	var result []Node
	for _, n := range g.Nodes() {
		if _, owned := g.s.owner(n.ID); !owned {
			result = append(result, n)
		}
	}
	return result
}

// OwnerChain returns the owners of id from the nearest up to its root
func (g *Graph) OwnerChain(id NodeID) []Node {
	var chain []Node
	seen := map[NodeID]bool{id: true}
	for {
		owner, ok := g.Owner(id)
		if !ok || seen[owner.ID] {
			return chain
		}
		seen[owner.ID] = true
		chain = append(chain, owner)
		id = owner.ID
	}
}

// NodeCount returns the number of live nodes
func (g *Graph) NodeCount() int { return g.s.liveNodes }

// EdgeCount returns the number of live edges
func (g *Graph) EdgeCount() int { return g.s.liveEdges }

// Catalog reconstructs a catalog that rebuilds an equivalent graph
func (g *Graph) Catalog() Catalog {
	nodes := g.Nodes()
	cat := Catalog{
		Items:     make([]Item, 0, len(nodes)),
		Relations: make([]Triple, 0, g.s.liveEdges),
	}
	for _, n := range nodes {
		cat.Items = append(cat.Items, n.Item)
	}
	for _, e := range g.Edges() {
		from, _ := g.Node(e.FromID)
		to, _ := g.Node(e.ToID)
		cat.Relations = append(cat.Relations, Triple{Source: from.Item.ID, Target: to.Item.ID, Kind: e.Kind})
	}
	return cat
}
