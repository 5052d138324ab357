package export

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/zheng/modgraph/internal/graph"
)

// Neo4jConfig holds connection settings for a Neo4j sink
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

// Neo4jSink stores graphs in Neo4j as (:Item) nodes with OWNS and USES relationships
type Neo4jSink struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jSink connects to Neo4j and verifies connectivity
func NewNeo4jSink(ctx context.Context, cfg Neo4jConfig) (*Neo4jSink, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return &Neo4jSink{driver: driver, database: cfg.Database}, nil
}

// Close releases the driver
func (s *Neo4jSink) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

const (
	mergeItems = `UNWIND $items AS it
MERGE (i:Item {id: it.id})
SET i.name = it.name, i.path = it.path, i.kind = it.kind, i.visibility = it.visibility,
    i.file = it.file, i.line = it.line, i.signature = it.signature, i.doc = it.doc`

	mergeOwns = `UNWIND $rels AS r
MATCH (a:Item {id: r.from}), (b:Item {id: r.to})
MERGE (a)-[:OWNS]->(b)`

	mergeUses = `UNWIND $rels AS r
MATCH (a:Item {id: r.from}), (b:Item {id: r.to})
MERGE (a)-[:USES]->(b)`
)

// Store MERGEs every node and edge of g in one write transaction
func (s *Neo4jSink) Store(ctx context.Context, g *graph.Graph) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, mergeItems, map[string]any{"items": itemParams(g)}); err != nil {
			return nil, fmt.Errorf("store items: %w", err)
		}
		if _, err := tx.Run(ctx, mergeOwns, map[string]any{"rels": relationParams(g, graph.Owns)}); err != nil {
			return nil, fmt.Errorf("store owns: %w", err)
		}
		if _, err := tx.Run(ctx, mergeUses, map[string]any{"rels": relationParams(g, graph.Uses)}); err != nil {
			return nil, fmt.Errorf("store uses: %w", err)
		}
		return nil, nil
	})
	return err
}

// Clear deletes every stored item and its relationships
func (s *Neo4jSink) Clear(ctx context.Context) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, "MATCH (i:Item) DETACH DELETE i", nil)
		return nil, err
	})
	return err
}

func itemParams(g *graph.Graph) []map[string]any {
	nodes := g.Nodes()
	params := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		it := n.Item
		params = append(params, map[string]any{
			"id":         string(it.ID),
			"name":       it.Name,
			"path":       it.Path,
			"kind":       string(it.Kind),
			"visibility": string(it.Visibility),
			"file":       it.File,
			"line":       int64(it.Line),
			"signature":  it.Signature,
			"doc":        it.Doc,
		})
	}
	return params
}

func relationParams(g *graph.Graph, kind graph.Relationship) []map[string]any {
	params := []map[string]any{}
	for _, e := range g.Edges() {
		if e.Kind != kind {
			continue
		}
		from, _ := g.Node(e.FromID)
		to, _ := g.Node(e.ToID)
		params = append(params, map[string]any{
			"from": string(from.Item.ID),
			"to":   string(to.Item.ID),
		})
	}
	return params
}
