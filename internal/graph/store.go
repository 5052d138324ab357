package graph

// nodeSlot is one arena cell. Dead slots keep their position.
type nodeSlot struct {
	item  Item
	alive bool
	out   []EdgeID
	in    []EdgeID
}

type edgeSlot struct {
	edge  Edge
	alive bool
}

// store is a slot arena: NodeID n lives at nodes[n-1], EdgeID e at edges[e-1].
// Removal tombstones a slot; nothing is ever compacted.
type store struct {
	nodes     []nodeSlot
	edges     []edgeSlot
	byItem    map[ItemID]NodeID
	edgeSet   map[edgeKey]EdgeID
	liveNodes int
	liveEdges int
}

func newStore(sizeHint int) *store {
	return &store{
		nodes:   make([]nodeSlot, 0, sizeHint),
		byItem:  make(map[ItemID]NodeID, sizeHint),
		edgeSet: make(map[edgeKey]EdgeID),
	}
}

// addNode appends a node for item. Callers check item uniqueness first.
func (s *store) addNode(item Item) NodeID {
	s.nodes = append(s.nodes, nodeSlot{item: item, alive: true})
	id := NodeID(len(s.nodes))
	s.byItem[item.ID] = id
	s.liveNodes++
	return id
}

// addEdge appends an edge unless an identical live edge exists.
// It returns the existing edge ID and false in that case.
func (s *store) addEdge(from, to NodeID, kind Relationship) (EdgeID, bool) {
	e := Edge{FromID: from, ToID: to, Kind: kind}
	if id, ok := s.edgeSet[e.key()]; ok {
		return id, false
	}
	s.edges = append(s.edges, edgeSlot{alive: true})
	e.ID = EdgeID(len(s.edges))
	s.edges[e.ID-1].edge = e
	s.edgeSet[e.key()] = e.ID
	s.nodes[from-1].out = append(s.nodes[from-1].out, e.ID)
	s.nodes[to-1].in = append(s.nodes[to-1].in, e.ID)
	s.liveEdges++
	return e.ID, true
}

func (s *store) node(id NodeID) (*nodeSlot, bool) {
	if id < 1 || int(id) > len(s.nodes) {
		return nil, false
	}
	slot := &s.nodes[id-1]
	return slot, slot.alive
}

func (s *store) edge(id EdgeID) (Edge, bool) {
	if id < 1 || int(id) > len(s.edges) {
		return Edge{}, false
	}
	slot := s.edges[id-1]
	return slot.edge, slot.alive
}

// removeEdge tombstones an edge. Adjacency lists keep the dead ID and
// readers skip it.
func (s *store) removeEdge(id EdgeID) {
	if id < 1 || int(id) > len(s.edges) || !s.edges[id-1].alive {
		return
	}
	slot := &s.edges[id-1]
	slot.alive = false
	delete(s.edgeSet, slot.edge.key())
	s.liveEdges--
}

// removeNode tombstones a node and every edge touching it
func (s *store) removeNode(id NodeID) {
	slot, ok := s.node(id)
	if !ok {
		return
	}
	for _, eid := range slot.out {
		s.removeEdge(eid)
	}
	for _, eid := range slot.in {
		s.removeEdge(eid)
	}
	slot.alive = false
	delete(s.byItem, slot.item.ID)
	s.liveNodes--
}

// adjacent returns live edges from ids, optionally filtered by kind
func (s *store) adjacent(ids []EdgeID, kind Relationship, anyKind bool) []Edge {
	var result []Edge
	for _, eid := range ids {
		e, ok := s.edge(eid)
		if !ok {
			continue
		}
		if !anyKind && e.Kind != kind {
			continue
		}
		result = append(result, e)
	}
	return result
}

// owner returns the source of the single live incoming Owns edge, if any
func (s *store) owner(id NodeID) (NodeID, bool) {
	slot, ok := s.node(id)
	if !ok {
		return 0, false
	}
	for _, eid := range slot.in {
		if e, ok := s.edge(eid); ok && e.Kind == Owns {
			return e.FromID, true
		}
	}
	return 0, false
}
