package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zheng/modgraph/internal/display"
	"github.com/zheng/modgraph/internal/export"
	"github.com/zheng/modgraph/internal/graph"
	"github.com/zheng/modgraph/internal/impact"
	"github.com/zheng/modgraph/internal/observability"
)

// Server serves the JSON API over the current graph
type Server struct {
	current atomic.Pointer[graph.Graph]
	port    int
	logger  *slog.Logger
}

// NewServer creates a new web server
func NewServer(g *graph.Graph, port int, logger *slog.Logger) *Server {
	s := &Server{port: port, logger: logger}
	s.current.Store(g)
	return s
}

// SetGraph swaps in a rebuilt graph; requests in flight keep the old one
func (s *Server) SetGraph(g *graph.Graph) {
	s.current.Store(g)
}

// Graph returns the graph currently served
func (s *Server) Graph() *graph.Graph {
	return s.current.Load()
}

// API response types
type GraphData struct {
	Nodes []NodeData `json:"nodes"`
	Edges []EdgeData `json:"edges"`
}

type NodeData struct {
	ID         graph.NodeID     `json:"id"`
	ItemID     graph.ItemID     `json:"itemId"`
	Label      string           `json:"label"`
	Path       string           `json:"path"`
	Kind       graph.NodeKind   `json:"kind"`
	Visibility graph.Visibility `json:"visibility,omitempty"`
	File       string           `json:"file,omitempty"`
	Line       int              `json:"line,omitempty"`
	Signature  string           `json:"signature,omitempty"`
	Doc        string           `json:"doc,omitempty"`
	Group      string           `json:"group"`
}

type EdgeData struct {
	ID   graph.EdgeID `json:"id"`
	From graph.NodeID `json:"from"`
	To   graph.NodeID `json:"to"`
	Kind string       `json:"kind"`
}

type NodeDetail struct {
	Node     NodeData   `json:"node"`
	Owner    *NodeData  `json:"owner,omitempty"`
	Children []NodeData `json:"children"`
	Users    []NodeData `json:"users"`
	Uses     []NodeData `json:"uses"`
}

type ImpactData struct {
	Target        NodeData   `json:"target"`
	Owners        []NodeData `json:"owners"`
	DirectUsers   []NodeData `json:"directUsers"`
	IndirectUsers []NodeData `json:"indirectUsers"`
	DirectDeps    []NodeData `json:"directDeps"`
	IndirectDeps  []NodeData `json:"indirectDeps"`
	Risk          string     `json:"risk"`
}

// ChainNode is a node in a hierarchical users or uses chain
type ChainNode struct {
	NodeData
	Children []ChainNode `json:"children,omitempty"`
}

// ChainData holds both directions of the Uses chain around a target
type ChainData struct {
	Target NodeData    `json:"target"`
	Users  []ChainNode `json:"users"`
	Uses   []ChainNode `json:"uses"`
}

// Handler builds the API mux
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	route := func(pattern, name string, h http.HandlerFunc) {
		mux.Handle(pattern, observability.InstrumentHandler(name, h))
	}

	route("GET /api/graph", "/api/graph", s.handleGraph)
	route("GET /api/nodes", "/api/nodes", s.handleNodes)
	route("GET /api/node/{id...}", "/api/node", s.handleNode)
	route("GET /api/tree", "/api/tree", s.handleTree)
	route("GET /api/impact/{id...}", "/api/impact", s.handleImpact)
	route("GET /api/chain/{id...}", "/api/chain", s.handleChain)
	route("GET /api/search", "/api/search", s.handleSearch)
	route("GET /api/cycles", "/api/cycles", s.handleCycles)
	route("GET /api/orphans", "/api/orphans", s.handleOrphans)
	route("GET /api/stats", "/api/stats", s.handleStats)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("web API listening", "addr", "http://localhost"+srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// handleGraph returns the complete graph data
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	g := s.Graph()
	data := GraphData{
		Nodes: nodesToData(g, g.Nodes()),
		Edges: make([]EdgeData, 0, g.EdgeCount()),
	}
	for _, e := range g.Edges() {
		data.Edges = append(data.Edges, EdgeData{ID: e.ID, From: e.FromID, To: e.ToID, Kind: e.Kind.DisplayName()})
	}
	writeJSON(w, data)
}

// handleNodes returns all nodes, optionally filtered by kind
func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	g := s.Graph()
	kind := graph.NodeKind(r.URL.Query().Get("kind"))
	var nodes []graph.Node
	for _, n := range g.Nodes() {
		if kind == "" || n.Item.Kind == kind {
			nodes = append(nodes, n)
		}
	}
	writeJSON(w, nodesToData(g, nodes))
}

// lookup resolves an item ID, falling back to a numeric node ID
func lookup(g *graph.Graph, id string) (graph.Node, bool) {
	if n, ok := g.Lookup(graph.ItemID(id)); ok {
		return n, true
	}
	if nid, err := strconv.ParseInt(id, 10, 64); err == nil {
		return g.Node(graph.NodeID(nid))
	}
	return graph.Node{}, false
}

// handleNode returns a single node with its connections
func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	g := s.Graph()
	node, ok := lookup(g, r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}

	detail := NodeDetail{
		Node:     nodeToData(g, node),
		Children: nodesToData(g, g.Children(node.ID)),
		Users:    nodesToData(g, endpoints(g, g.Incoming(node.ID, graph.Uses), true)),
		Uses:     nodesToData(g, endpoints(g, g.Outgoing(node.ID, graph.Uses), false)),
	}
	if owner, ok := g.Owner(node.ID); ok {
		od := nodeToData(g, owner)
		detail.Owner = &od
	}
	writeJSON(w, detail)
}

// handleTree returns the walk events for the query's root, order, depth and uses
func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	order, err := graph.ParseOrder(q.Get("order"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts := []graph.WalkOption{graph.WithOrder(order)}
	if roots := q["root"]; len(roots) > 0 {
		ids := make([]graph.ItemID, 0, len(roots))
		for _, root := range roots {
			ids = append(ids, graph.ItemID(root))
		}
		opts = append(opts, graph.WithRoots(ids...))
	}
	if d := q.Get("depth"); d != "" {
		depth, err := strconv.Atoi(d)
		if err != nil || depth < 0 {
			writeError(w, http.StatusBadRequest, "invalid depth")
			return
		}
		opts = append(opts, graph.WithMaxDepth(depth))
	}
	if u := q.Get("uses"); u != "" {
		uses, err := strconv.ParseBool(u)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid uses flag")
			return
		}
		opts = append(opts, graph.WithUses(uses))
	}

	events, err := graph.Collect(graph.NewWalker(s.Graph(), opts...).Walk(r.Context()))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, graph.ErrNodeNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, export.EventRecords(events))
}

func depthParam(r *http.Request, def int) int {
	if d := r.URL.Query().Get("depth"); d != "" {
		if parsed, err := strconv.Atoi(d); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return def
}

// handleImpact returns impact analysis for a node
func (s *Server) handleImpact(w http.ResponseWriter, r *http.Request) {
	g := s.Graph()
	report, err := impact.Analyze(g, r.PathValue("id"), depthParam(r, 3))
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, graph.ErrNodeNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, ImpactData{
		Target:        nodeToData(g, report.Target),
		Owners:        nodesToData(g, report.Owners),
		DirectUsers:   nodesToData(g, report.DirectUsers),
		IndirectUsers: nodesToData(g, report.IndirectUsers),
		DirectDeps:    nodesToData(g, report.DirectDeps),
		IndirectDeps:  nodesToData(g, report.IndirectDeps),
		Risk:          string(report.Risk),
	})
}

// handleChain returns the hierarchical users and uses chains of a node
func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	g := s.Graph()
	node, ok := lookup(g, r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	depth := depthParam(r, 2)

	writeJSON(w, ChainData{
		Target: nodeToData(g, node),
		Users:  buildChain(g, node.ID, depth, true, map[graph.NodeID]bool{node.ID: true}),
		Uses:   buildChain(g, node.ID, depth, false, map[graph.NodeID]bool{node.ID: true}),
	})
}

// buildChain recursively follows Uses edges backwards (users) or forwards
func buildChain(g *graph.Graph, id graph.NodeID, depth int, users bool, visited map[graph.NodeID]bool) []ChainNode {
	if depth <= 0 {
		return nil
	}

	var next []graph.Node
	if users {
		next = endpoints(g, g.Incoming(id, graph.Uses), true)
	} else {
		next = endpoints(g, g.Outgoing(id, graph.Uses), false)
	}

	result := make([]ChainNode, 0, len(next))
	for _, n := range next {
		if visited[n.ID] {
			continue // avoid cycles
		}
		visited[n.ID] = true

		chainNode := ChainNode{NodeData: nodeToData(g, n)}
		if depth > 1 {
			chainNode.Children = buildChain(g, n.ID, depth-1, users, visited)
		}
		result = append(result, chainNode)
	}
	return result
}

// handleSearch searches for nodes whose item ID contains q
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("q")
	g := s.Graph()
	if pattern == "" {
		writeJSON(w, []NodeData{})
		return
	}

	var nodes []graph.Node
	for _, n := range g.Nodes() {
		if strings.Contains(string(n.Item.ID), pattern) {
			nodes = append(nodes, n)
		}
	}
	writeJSON(w, nodesToData(g, nodes))
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	cycles := graph.UsesCycles(s.Graph())
	if cycles == nil {
		cycles = [][]graph.ItemID{}
	}
	writeJSON(w, cycles)
}

func (s *Server) handleOrphans(w http.ResponseWriter, r *http.Request) {
	g := s.Graph()
	writeJSON(w, nodesToData(g, graph.Orphans(g)))
}

// handleStats returns graph statistics
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, graph.ComputeStats(s.Graph()))
}

// Helper functions

func endpoints(g *graph.Graph, edges []graph.Edge, from bool) []graph.Node {
	nodes := make([]graph.Node, 0, len(edges))
	for _, e := range edges {
		id := e.ToID
		if from {
			id = e.FromID
		}
		if n, ok := g.Node(id); ok {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func nodeToData(g *graph.Graph, n graph.Node) NodeData {
	it := n.Item
	return NodeData{
		ID:         n.ID,
		ItemID:     it.ID,
		Label:      it.Name,
		Path:       it.Path,
		Kind:       it.Kind,
		Visibility: it.Visibility,
		File:       it.File,
		Line:       it.Line,
		Signature:  display.ShortSignature(it.Signature),
		Doc:        it.Doc,
		Group:      packageGroup(g, n),
	}
}

func nodesToData(g *graph.Graph, nodes []graph.Node) []NodeData {
	result := make([]NodeData, 0, len(nodes))
	for _, n := range nodes {
		result = append(result, nodeToData(g, n))
	}
	return result
}

// packageGroup is the item ID of the nearest owning package
func packageGroup(g *graph.Graph, n graph.Node) string {
	if n.Item.Kind == graph.NodeKindPackage {
		return string(n.Item.ID)
	}
	for _, o := range g.OwnerChain(n.ID) {
		if o.Item.Kind == graph.NodeKindPackage {
			return string(o.Item.ID)
		}
	}
	return "other"
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
