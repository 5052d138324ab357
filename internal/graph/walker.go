package graph

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"
)

// EventKind distinguishes walk events
type EventKind uint8

const (
	EventEnter EventKind = iota
	EventEdge
	EventLeave
)

func (k EventKind) String() string {
	switch k {
	case EventEnter:
		return "EnterNode"
	case EventEdge:
		return "Edge"
	case EventLeave:
		return "LeaveNode"
	}
	return fmt.Sprintf("EventKind(%d)", uint8(k))
}

// Event is one step of a walk. For EventEdge, Node is the edge source and
// Target its destination.
type Event struct {
	Kind         EventKind
	Node         Node
	Target       Node
	Relationship Relationship
	Depth        int
}

// String renders the event as EnterNode(id), Edge(Kind, from, to) or LeaveNode(id)
func (e Event) String() string {
	if e.Kind == EventEdge {
		return fmt.Sprintf("Edge(%s, %s, %s)", e.Relationship, e.Node.Item.ID, e.Target.Item.ID)
	}
	return fmt.Sprintf("%s(%s)", e.Kind, e.Node.Item.ID)
}

// Order selects how siblings and Uses targets are sequenced
type Order int

const (
	// InsertionOrder follows edge insertion order
	InsertionOrder Order = iota
	// ByName sorts by item name, then path
	ByName
	// ByKind groups by kind, then sorts by name
	ByKind
)

// ParseOrder accepts "insertion", "name" or "kind"
func ParseOrder(s string) (Order, error) {
	switch s {
	case "", "insertion":
		return InsertionOrder, nil
	case "name":
		return ByName, nil
	case "kind":
		return ByKind, nil
	}
	return 0, fmt.Errorf("unknown order %q", s)
}

var kindRank = map[NodeKind]int{
	NodeKindPackage:   0,
	NodeKindInterface: 1,
	NodeKindStruct:    2,
	NodeKindType:      3,
	NodeKindConst:     4,
	NodeKindVar:       5,
	NodeKindField:     6,
	NodeKindFunc:      7,
	NodeKindMethod:    8,
}

func compareByName(a, b Node) int {
	return cmp.Or(cmp.Compare(a.Item.Name, b.Item.Name), cmp.Compare(a.Item.Path, b.Item.Path))
}

func compareByKind(a, b Node) int {
	ra, ok := kindRank[a.Item.Kind]
	if !ok {
		ra = len(kindRank)
	}
	rb, ok := kindRank[b.Item.Kind]
	if !ok {
		rb = len(kindRank)
	}
	return cmp.Or(cmp.Compare(ra, rb), compareByName(a, b))
}

// Walker streams the ownership forest of a graph as events
type Walker struct {
	g        *Graph
	roots    []ItemID
	compare  func(a, b Node) int
	uses     bool
	maxDepth int
}

// WalkOption configures a Walker
type WalkOption func(*Walker)

// WithRoots starts the walk at the given items instead of every unowned node
func WithRoots(roots ...ItemID) WalkOption {
	return func(w *Walker) {
		w.roots = append(w.roots, roots...)
	}
}

// WithOrder selects a built-in sibling order
func WithOrder(order Order) WalkOption {
	return func(w *Walker) {
		switch order {
		case ByName:
			w.compare = compareByName
		case ByKind:
			w.compare = compareByKind
		default:
			w.compare = nil
		}
	}
}

// WithCompare sets a custom sibling comparator. Ties keep insertion order.
func WithCompare(compare func(a, b Node) int) WalkOption {
	return func(w *Walker) {
		w.compare = compare
	}
}

// WithUses controls whether Uses edges are emitted
func WithUses(emit bool) WalkOption {
	return func(w *Walker) {
		w.uses = emit
	}
}

// WithMaxDepth stops descending below depth n. Roots are at depth 0; 0 means unlimited.
func WithMaxDepth(n int) WalkOption {
	return func(w *Walker) {
		w.maxDepth = n
	}
}

// NewWalker creates a walker over g
func NewWalker(g *Graph, opts ...WalkOption) *Walker {
	w := &Walker{g: g, uses: true}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type walkState struct {
	visited map[NodeID]bool
	path    []ItemID
}

// Walk returns a lazy event sequence. Each call starts a fresh traversal.
// On error the sequence yields a zero Event with the error and stops.
func (w *Walker) Walk(ctx context.Context) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		roots, err := w.resolveRoots()
		if err != nil {
			yield(Event{}, err)
			return
		}
		for _, root := range roots {
			st := &walkState{visited: make(map[NodeID]bool)}
			if !w.visit(ctx, root, 0, st, yield) {
				return
			}
		}
	}
}

func (w *Walker) resolveRoots() ([]Node, error) {
	if len(w.roots) == 0 {
		return w.g.Roots(), nil
	}
	seen := make(map[ItemID]bool, len(w.roots))
	roots := make([]Node, 0, len(w.roots))
	for _, id := range w.roots {
		if seen[id] {
			continue
		}
		seen[id] = true
		n, err := w.g.MustLookup(id)
		if err != nil {
			return nil, err
		}
		roots = append(roots, n)
	}
	return roots, nil
}

func (w *Walker) visit(ctx context.Context, n Node, depth int, st *walkState, yield func(Event, error) bool) bool {
	if err := ctx.Err(); err != nil {
		yield(Event{}, err)
		return false
	}
	if st.visited[n.ID] {
		path := append(slices.Clone(st.path), n.Item.ID)
		yield(Event{}, &StructuralCycleError{Item: n.Item.ID, Path: path})
		return false
	}
	st.visited[n.ID] = true
	st.path = append(st.path, n.Item.ID)

	if !yield(Event{Kind: EventEnter, Node: n, Depth: depth}, nil) {
		return false
	}

	if w.uses {
		for _, target := range w.sorted(w.targets(n.ID)) {
			ev := Event{Kind: EventEdge, Node: n, Target: target, Relationship: Uses, Depth: depth}
			if !yield(ev, nil) {
				return false
			}
		}
	}

	if w.maxDepth == 0 || depth < w.maxDepth {
		for _, child := range w.sorted(w.g.Children(n.ID)) {
			if !w.visit(ctx, child, depth+1, st, yield) {
				return false
			}
		}
	}

	st.path = st.path[:len(st.path)-1]
	return yield(Event{Kind: EventLeave, Node: n, Depth: depth}, nil)
}

func (w *Walker) targets(id NodeID) []Node {
	edges := w.g.Outgoing(id, Uses)
	result := make([]Node, 0, len(edges))
	for _, e := range edges {
		if n, ok := w.g.Node(e.ToID); ok {
			result = append(result, n)
		}
	}
	return result
}

func (w *Walker) sorted(nodes []Node) []Node {
	if w.compare != nil {
		slices.SortStableFunc(nodes, w.compare)
	}
	return nodes
}

// Collect drains seq into a slice, stopping at the first error
func Collect(seq iter.Seq2[Event, error]) ([]Event, error) {
	var events []Event
	for ev, err := range seq {
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	return events, nil
}
