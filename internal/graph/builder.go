package graph

import (
	"fmt"
	"log/slog"
)

type buildOptions struct {
	keepSelfLoops bool
	excludedKinds map[NodeKind]bool
	dropped       map[Relationship]bool
	pruneRoots    []ItemID
	logger        *slog.Logger
}

// BuilderOption configures normalisation performed by Build
type BuilderOption func(*buildOptions)

// WithSelfLoops controls whether a Uses relation from an item to itself is kept.
// Self-Owns relations are always rejected.
func WithSelfLoops(keep bool) BuilderOption {
	return func(o *buildOptions) {
		o.keepSelfLoops = keep
	}
}

// WithExcludedKinds removes items of the given kinds, and everything they own, at Build
func WithExcludedKinds(kinds ...NodeKind) BuilderOption {
	return func(o *buildOptions) {
		for _, k := range kinds {
			o.excludedKinds[k] = true
		}
	}
}

// WithoutRelationship drops every relation of the given kind
func WithoutRelationship(kind Relationship) BuilderOption {
	return func(o *buildOptions) {
		o.dropped[kind] = true
	}
}

// WithPruneFrom removes, at Build, every node not reachable from the given
// items along outgoing edges of either kind
func WithPruneFrom(roots ...ItemID) BuilderOption {
	return func(o *buildOptions) {
		o.pruneRoots = append(o.pruneRoots, roots...)
	}
}

// WithLogger sets the logger used for build diagnostics
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(o *buildOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Builder validates items and relations into a store and hands it off as a Graph.
// Items must be added before relations that name them.
type Builder struct {
	s    *store
	opts buildOptions
	err  error // first error, sticky
}

// NewBuilder creates a new graph builder
func NewBuilder(opts ...BuilderOption) *Builder {
	o := buildOptions{
		keepSelfLoops: true,
		excludedKinds: make(map[NodeKind]bool),
		dropped:       make(map[Relationship]bool),
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Builder{s: newStore(0), opts: o}
}

// FromCatalog builds a graph from a complete catalog
func FromCatalog(cat Catalog, opts ...BuilderOption) (*Graph, error) {
	b := NewBuilder(opts...)
	for _, item := range cat.Items {
		if err := b.AddItem(item); err != nil {
			return nil, err
		}
	}
	for _, t := range cat.Relations {
		if err := b.AddRelation(t); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

func (b *Builder) usable() error {
	if b.s == nil {
		return ErrBuilderConsumed
	}
	return b.err
}

func (b *Builder) fail(err error) error {
	b.err = err
	return err
}

// AddItem inserts one node for item
func (b *Builder) AddItem(item Item) error {
	if err := b.usable(); err != nil {
		return err
	}
	if prev, exists := b.s.byItem[item.ID]; exists {
		// nodes are only appended before Build, so slot order is input order
		return b.fail(&DuplicateItemError{Item: item.ID, First: int(prev) - 1, Second: len(b.s.nodes)})
	}
	b.s.addNode(item)
	return nil
}

// AddRelation validates and inserts one relation. Duplicate relations are merged.
func (b *Builder) AddRelation(t Triple) error {
	if err := b.usable(); err != nil {
		return err
	}
	if !t.Kind.Valid() {
		return b.fail(fmt.Errorf("relation %q -> %q: invalid relationship %d", t.Source, t.Target, uint8(t.Kind)))
	}
	from, ok := b.s.byItem[t.Source]
	if !ok {
		return b.fail(&DanglingReferenceError{Side: SideSource, Item: t.Source, Kind: t.Kind})
	}
	to, ok := b.s.byItem[t.Target]
	if !ok {
		return b.fail(&DanglingReferenceError{Side: SideTarget, Item: t.Target, Kind: t.Kind})
	}
	if b.opts.dropped[t.Kind] {
		return nil
	}

	if t.Kind == Owns {
		if err := b.checkOwnership(from, to, t); err != nil {
			return b.fail(err)
		}
	} else if from == to && !b.opts.keepSelfLoops {
		return nil
	}

	if _, added := b.s.addEdge(from, to, t.Kind); !added {
		b.opts.logger.Debug("merged duplicate relation",
			"source", t.Source, "target", t.Target, "kind", t.Kind.DisplayName())
	}
	return nil
}

// checkOwnership rejects a second owner and any Owns edge closing a loop
func (b *Builder) checkOwnership(from, to NodeID, t Triple) error {
	if from == to {
		return &MultipleOwnersError{Item: t.Target, Owner: t.Target, Candidate: t.Source}
	}
	if existing, ok := b.s.owner(to); ok {
		if existing == from {
			return nil
		}
		return &MultipleOwnersError{Item: t.Target, Owner: b.s.nodes[existing-1].item.ID, Candidate: t.Source}
	}
	// to already owns from transitively: to would become its own owner
	for cur, ok := b.s.owner(from); ok; cur, ok = b.s.owner(cur) {
		if cur == to {
			return &MultipleOwnersError{Item: t.Target, Owner: t.Target, Candidate: t.Source}
		}
	}
	return nil
}

// Build applies normalisation and returns the finished graph.
// After a successful Build the Builder refuses further use.
func (b *Builder) Build() (*Graph, error) {
	if err := b.usable(); err != nil {
		return nil, err
	}

	roots := make([]NodeID, 0, len(b.opts.pruneRoots))
	for _, item := range b.opts.pruneRoots {
		id, ok := b.s.byItem[item]
		if !ok {
			return nil, b.fail(&DanglingReferenceError{Side: SideRoot, Item: item})
		}
		roots = append(roots, id)
	}

	if len(b.opts.excludedKinds) > 0 {
		b.excludeKinds()
	}
	if len(roots) > 0 {
		b.prune(roots)
	}

	b.opts.logger.Debug("graph built", "nodes", b.s.liveNodes, "edges", b.s.liveEdges)

	g := &Graph{s: b.s}
	b.s = nil
	return g, nil
}

// excludeKinds removes matching nodes together with their owned subtrees
func (b *Builder) excludeKinds() {
	removed := 0
	for i := range b.s.nodes {
		slot := &b.s.nodes[i]
		if slot.alive && b.opts.excludedKinds[slot.item.Kind] {
			removed += b.removeSubtree(NodeID(i + 1))
		}
	}
	if removed > 0 {
		b.opts.logger.Debug("excluded items by kind", "removed", removed)
	}
}

func (b *Builder) removeSubtree(id NodeID) int {
	slot, ok := b.s.node(id)
	if !ok {
		return 0
	}
	var children []NodeID
	for _, e := range b.s.adjacent(slot.out, Owns, false) {
		children = append(children, e.ToID)
	}
	b.s.removeNode(id)
	removed := 1
	for _, child := range children {
		removed += b.removeSubtree(child)
	}
	return removed
}

// prune removes nodes unreachable from roots along outgoing edges
func (b *Builder) prune(roots []NodeID) {
	reachable := make(map[NodeID]bool, b.s.liveNodes)
	queue := make([]NodeID, 0, len(roots))
	for _, r := range roots {
		if _, ok := b.s.node(r); ok && !reachable[r] {
			reachable[r] = true
			queue = append(queue, r)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		slot, _ := b.s.node(cur)
		for _, e := range b.s.adjacent(slot.out, 0, true) {
			if !reachable[e.ToID] {
				reachable[e.ToID] = true
				queue = append(queue, e.ToID)
			}
		}
	}

	removed := 0
	for i := range b.s.nodes {
		id := NodeID(i + 1)
		if b.s.nodes[i].alive && !reachable[id] {
			b.s.removeNode(id)
			removed++
		}
	}
	b.opts.logger.Debug("pruned unreachable items", "roots", len(roots), "removed", removed)
}
