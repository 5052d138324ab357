package graph

// EdgeID addresses an edge slot in a graph. IDs start at 1 and are never reused.
type EdgeID int64

// Edge represents a relationship between two nodes
type Edge struct {
	ID     EdgeID       `json:"edge_id" yaml:"edge_id"`
	FromID NodeID       `json:"from_id" yaml:"from_id"`
	ToID   NodeID       `json:"to_id" yaml:"to_id"`
	Kind   Relationship `json:"kind" yaml:"kind"`
}

// edgeKey identifies an edge for deduplication
type edgeKey struct {
	from, to NodeID
	kind     Relationship
}

func (e Edge) key() edgeKey {
	return edgeKey{from: e.FromID, to: e.ToID, kind: e.Kind}
}
