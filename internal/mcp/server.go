package mcp

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/zheng/modgraph/internal/display"
	"github.com/zheng/modgraph/internal/graph"
	"github.com/zheng/modgraph/internal/impact"
)

const defaultLimit = 50

// Server exposes graph queries as MCP tools
type Server struct {
	current   atomic.Pointer[graph.Graph]
	mcpServer *mcp.Server
}

// Tool arguments

type TreeArgs struct {
	Root     string `json:"root,omitempty" jsonschema:"item ID to start from; defaults to every root"`
	Order    string `json:"order,omitempty" jsonschema:"sibling order: insertion, name or kind"`
	MaxDepth int    `json:"max_depth,omitempty" jsonschema:"deepest ownership level to descend to; 0 means unlimited"`
	NoUses   bool   `json:"no_uses,omitempty" jsonschema:"omit uses lines"`
}

type ImpactArgs struct {
	Item  string `json:"item" jsonschema:"item ID or a unique part of it"`
	Depth int    `json:"depth,omitempty" jsonschema:"how many uses hops to follow; 0 means unlimited"`
	Limit int    `json:"limit,omitempty" jsonschema:"max rows per table, default 50"`
}

type SearchArgs struct {
	Pattern string `json:"pattern" jsonschema:"substring of the item ID"`
	Kind    string `json:"kind,omitempty" jsonschema:"only items of this kind"`
	Limit   int    `json:"limit,omitempty" jsonschema:"max results, default 50"`
}

type ListArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"max results, default 50"`
}

type StatsArgs struct{}

// NewServer creates a new MCP server over g
func NewServer(g *graph.Graph, version string) *Server {
	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{Name: "modgraph", Version: version}, nil),
	}
	s.current.Store(g)
	s.registerTools()
	return s
}

// SetGraph swaps in a rebuilt graph
func (s *Server) SetGraph(g *graph.Graph) {
	s.current.Store(g)
}

// Run serves over stdio until the client disconnects or ctx is done
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: isError,
	}
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "tree",
		Description: "Ownership tree of the project items with the items each one uses. Use it to see how packages, types and members nest.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args TreeArgs) (*mcp.CallToolResult, any, error) {
		text, isErr := s.toolTree(ctx, args)
		return textResult(text, isErr), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "impact",
		Description: "Impact of changing an item: who uses it directly and indirectly, what it uses, and a risk level. Run this before modifying an item.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ImpactArgs) (*mcp.CallToolResult, any, error) {
		text, isErr := s.toolImpact(args)
		return textResult(text, isErr), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "search",
		Description: "Find items whose ID contains a pattern.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, any, error) {
		text, isErr := s.toolSearch(args)
		return textResult(text, isErr), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "cycles",
		Description: "Groups of items that use each other in a cycle.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ListArgs) (*mcp.CallToolResult, any, error) {
		text, isErr := s.toolCycles(args)
		return textResult(text, isErr), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "orphans",
		Description: "Items that nothing owns or uses. These are candidates for dead code.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ListArgs) (*mcp.CallToolResult, any, error) {
		text, isErr := s.toolOrphans(args)
		return textResult(text, isErr), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "stats",
		Description: "Item and relation counts by kind.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args StatsArgs) (*mcp.CallToolResult, any, error) {
		return textResult(s.toolStats(), false), nil, nil
	})
}

func limitOr(limit int) int {
	if limit > 0 {
		return limit
	}
	return defaultLimit
}

func (s *Server) toolTree(ctx context.Context, args TreeArgs) (string, bool) {
	order, err := graph.ParseOrder(args.Order)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), true
	}
	opts := []graph.WalkOption{
		graph.WithOrder(order),
		graph.WithMaxDepth(args.MaxDepth),
		graph.WithUses(!args.NoUses),
	}
	if args.Root != "" {
		opts = append(opts, graph.WithRoots(graph.ItemID(args.Root)))
	}

	var sb strings.Builder
	err = display.RenderTree(&sb, graph.NewWalker(s.current.Load(), opts...).Walk(ctx), display.TreeOptions{
		ShowLocation: true,
		ShowUses:     !args.NoUses,
	})
	if err != nil {
		return fmt.Sprintf("Error: %v", err), true
	}
	if sb.Len() == 0 {
		return "The graph is empty", false
	}
	return "```\n" + sb.String() + "```\n", false
}

func (s *Server) toolImpact(args ImpactArgs) (string, bool) {
	if args.Item == "" {
		return "Error: an item is required", true
	}
	report, err := impact.Analyze(s.current.Load(), args.Item, args.Depth)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), true
	}
	return formatImpactWithLimit(report, limitOr(args.Limit)), false
}

func formatImpactWithLimit(report *impact.ImpactReport, limit int) string {
	var sb strings.Builder
	t := report.Target.Item

	sb.WriteString(fmt.Sprintf("## Impact of changing %s\n\n", t.ID))
	if t.File != "" {
		sb.WriteString(fmt.Sprintf("**Location:** %s:%d\n\n", t.File, t.Line))
	}
	if t.Signature != "" {
		sb.WriteString(fmt.Sprintf("**Signature:** `%s`\n\n", display.ShortSignature(t.Signature)))
	}
	if t.Doc != "" {
		sb.WriteString(fmt.Sprintf("**Doc:** %s\n\n", t.Doc))
	}
	sb.WriteString(fmt.Sprintf("**Risk:** %s %s\n\n", report.Risk.Icon(), report.Risk))

	section := func(title, empty string, nodes []graph.Node) {
		if len(nodes) == 0 {
			if empty != "" {
				sb.WriteString(title + "\n\n" + empty + "\n\n")
			}
			return
		}
		sb.WriteString(title + "\n\n")
		writeNodeTable(&sb, nodes, limit)
	}
	section("### Direct users (check whether they need the same change)", "_No direct users_", report.DirectUsers)
	section("### Indirect users (may be affected)", "", report.IndirectUsers)
	section("### Dependencies (used by this item)", "_No dependencies_", report.DirectDeps)
	section("### Indirect dependencies", "", report.IndirectDeps)

	return sb.String()
}

func writeNodeTable(sb *strings.Builder, nodes []graph.Node, limit int) {
	total := len(nodes)
	if total > limit {
		nodes = nodes[:limit]
	}
	sb.WriteString("| Item | Kind | File | Line |\n")
	sb.WriteString("|------|------|------|------|\n")
	for _, n := range nodes {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d |\n", n.Item.ID, n.Item.Kind, n.Item.File, n.Item.Line))
	}
	if total > limit {
		sb.WriteString(fmt.Sprintf("\n_(%d in total, showing the first %d)_\n", total, limit))
	}
	sb.WriteString("\n")
}

func (s *Server) toolSearch(args SearchArgs) (string, bool) {
	if args.Pattern == "" {
		return "Error: a search pattern is required", true
	}
	limit := limitOr(args.Limit)

	var nodes []graph.Node
	for _, n := range s.current.Load().Nodes() {
		if args.Kind != "" && string(n.Item.Kind) != args.Kind {
			continue
		}
		if strings.Contains(string(n.Item.ID), args.Pattern) {
			nodes = append(nodes, n)
		}
	}

	if len(nodes) == 0 {
		return fmt.Sprintf("No items match '%s'\n\nIf the code changed recently, rerun:\n```bash\nmodgraph analyze\n```", args.Pattern), false
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Search results: %s\n\nFound %d matches", args.Pattern, len(nodes)))
	if len(nodes) > limit {
		sb.WriteString(fmt.Sprintf(" (showing the first %d)", limit))
	}
	sb.WriteString("\n\n")
	writeNodeTable(&sb, nodes, limit)
	return sb.String(), false
}

func (s *Server) toolCycles(args ListArgs) (string, bool) {
	cycles := graph.UsesCycles(s.current.Load())
	if len(cycles) == 0 {
		return "No uses cycles", false
	}
	limit := limitOr(args.Limit)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Uses cycles (%d)\n\n", len(cycles)))
	for i, c := range cycles {
		if i == limit {
			sb.WriteString(fmt.Sprintf("\n_(%d in total, showing the first %d)_\n", len(cycles), limit))
			break
		}
		ids := make([]string, len(c))
		for j, id := range c {
			ids[j] = string(id)
		}
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, strings.Join(ids, " ↔ ")))
	}
	return sb.String(), false
}

func (s *Server) toolOrphans(args ListArgs) (string, bool) {
	orphans := graph.Orphans(s.current.Load())
	if len(orphans) == 0 {
		return "No orphan items", false
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Orphan items (%d)\n\n", len(orphans)))
	writeNodeTable(&sb, orphans, limitOr(args.Limit))
	return sb.String(), false
}

func (s *Server) toolStats() string {
	st := graph.ComputeStats(s.current.Load())
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Nodes: %d\nEdges: %d\nRoots: %d\nMax depth: %d\n", st.Nodes, st.Edges, st.Roots, st.MaxDepth))
	for _, rel := range graph.Relationships {
		sb.WriteString(fmt.Sprintf("  %s: %d\n", rel.DisplayName(), st.ByRelationship[rel.DisplayName()]))
	}
	sb.WriteString("By kind:\n")
	for _, kind := range kindOrder {
		if n := st.ByKind[kind]; n > 0 {
			sb.WriteString(fmt.Sprintf("  %s: %d\n", kind, n))
		}
	}
	return sb.String()
}

var kindOrder = []graph.NodeKind{
	graph.NodeKindPackage, graph.NodeKindInterface, graph.NodeKindStruct, graph.NodeKindType,
	graph.NodeKindFunc, graph.NodeKindMethod, graph.NodeKindField, graph.NodeKindVar, graph.NodeKindConst,
}
