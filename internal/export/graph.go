// Package export renders a built graph for other tools: Graphviz, Mermaid,
// JSON, YAML, Markdown and Neo4j.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zheng/modgraph/internal/graph"
)

// Format is an output format name
type Format string

const (
	FormatDOT      Format = "dot"
	FormatMermaid  Format = "mermaid"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// Formats lists every supported format
var Formats = []Format{FormatDOT, FormatMermaid, FormatJSON, FormatYAML, FormatMarkdown}

// ParseFormat accepts a format name or a common alias
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dot", "graphviz", "gv":
		return FormatDOT, nil
	case "mermaid", "mmd":
		return FormatMermaid, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// EdgeRecord is an edge addressed by item IDs
type EdgeRecord struct {
	ID   graph.EdgeID       `json:"edge_id" yaml:"edge_id"`
	From graph.ItemID       `json:"from" yaml:"from"`
	To   graph.ItemID       `json:"to" yaml:"to"`
	Kind graph.Relationship `json:"kind" yaml:"kind"`
}

// Document is the JSON/YAML form of a graph
type Document struct {
	Nodes []graph.Node   `json:"nodes" yaml:"nodes"`
	Edges []EdgeRecord   `json:"edges" yaml:"edges"`
	Stats graph.Stats    `json:"stats" yaml:"stats"`
	Roots []graph.ItemID `json:"roots" yaml:"roots"`
}

// NewDocument snapshots g into a Document
func NewDocument(g *graph.Graph) Document {
	doc := Document{
		Nodes: g.Nodes(),
		Edges: make([]EdgeRecord, 0, g.EdgeCount()),
		Stats: graph.ComputeStats(g),
	}
	for _, e := range g.Edges() {
		from, _ := g.Node(e.FromID)
		to, _ := g.Node(e.ToID)
		doc.Edges = append(doc.Edges, EdgeRecord{ID: e.ID, From: from.Item.ID, To: to.Item.ID, Kind: e.Kind})
	}
	for _, r := range g.Roots() {
		doc.Roots = append(doc.Roots, r.Item.ID)
	}
	return doc
}

// Write renders g in the given format
func Write(w io.Writer, g *graph.Graph, format Format, opts MarkdownOptions) error {
	switch format {
	case FormatDOT:
		_, err := io.WriteString(w, ExportDOT(g))
		return err
	case FormatMermaid:
		_, err := io.WriteString(w, ExportMermaid(g))
		return err
	case FormatJSON:
		return encodeJSON(w, NewDocument(g))
	case FormatYAML:
		return encodeYAML(w, NewDocument(g))
	case FormatMarkdown:
		return WriteMarkdown(w, g, opts)
	}
	return fmt.Errorf("unknown export format %q", format)
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func encodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// ExportDOT generates a Graphviz DOT representation of the graph.
func ExportDOT(g *graph.Graph) string {
	var b strings.Builder
	b.WriteString("digraph modgraph {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\" fontsize=10];\n\n")

	for _, n := range g.Nodes() {
		b.WriteString(fmt.Sprintf("  %s [label=%s shape=%s style=filled fillcolor=\"%s\"];\n",
			dotQuote(string(n.Item.ID)), dotQuote(label(n)), nodeShape(n.Item.Kind), nodeColor(n.Item.Kind)))
	}
	if g.EdgeCount() > 0 {
		b.WriteString("\n")
	}

	for _, e := range g.Edges() {
		from, _ := g.Node(e.FromID)
		to, _ := g.Node(e.ToID)
		b.WriteString(fmt.Sprintf("  %s -> %s [style=%s color=\"%s\" label=\"%s\"];\n",
			dotQuote(string(from.Item.ID)), dotQuote(string(to.Item.ID)),
			edgeStyle(e.Kind), edgeColor(e.Kind), e.Kind.DisplayName()))
	}

	b.WriteString("}\n")
	return b.String()
}

// ExportMermaid generates a Mermaid flowchart of the graph.
func ExportMermaid(g *graph.Graph) string {
	var b strings.Builder
	b.WriteString("graph LR\n")

	for _, n := range g.Nodes() {
		b.WriteString(fmt.Sprintf("  %s%s\n", mermaidID(n.ID), mermaidNodeShape(n)))
	}
	for _, e := range g.Edges() {
		b.WriteString(fmt.Sprintf("  %s %s %s\n", mermaidID(e.FromID), mermaidArrow(e.Kind), mermaidID(e.ToID)))
	}

	return b.String()
}

func label(n graph.Node) string {
	if n.Item.Name != "" {
		return n.Item.Name
	}
	return string(n.Item.ID)
}

func dotQuote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

func mermaidID(id graph.NodeID) string {
	return fmt.Sprintf("n%d", id)
}

func mermaidText(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}

func nodeShape(kind graph.NodeKind) string {
	switch kind {
	case graph.NodeKindPackage:
		return "box3d"
	case graph.NodeKindFunc, graph.NodeKindMethod:
		return "box"
	case graph.NodeKindStruct, graph.NodeKindType:
		return "ellipse"
	case graph.NodeKindInterface:
		return "diamond"
	case graph.NodeKindField, graph.NodeKindVar, graph.NodeKindConst:
		return "note"
	default:
		return "box"
	}
}

func nodeColor(kind graph.NodeKind) string {
	switch kind {
	case graph.NodeKindPackage:
		return "#1f6feb"
	case graph.NodeKindFunc, graph.NodeKindMethod:
		return "#238636"
	case graph.NodeKindStruct, graph.NodeKindType:
		return "#8957e5"
	case graph.NodeKindInterface:
		return "#d29922"
	default:
		return "#30363d"
	}
}

func edgeStyle(kind graph.Relationship) string {
	if kind == graph.Owns {
		return "dashed"
	}
	return "solid"
}

func edgeColor(kind graph.Relationship) string {
	if kind == graph.Owns {
		return "#8b949e"
	}
	return "#3fb950"
}

func mermaidNodeShape(n graph.Node) string {
	text := mermaidText(label(n))
	switch n.Item.Kind {
	case graph.NodeKindPackage:
		return fmt.Sprintf("[[\"%s\"]]", text)
	case graph.NodeKindStruct, graph.NodeKindType:
		return fmt.Sprintf("([\"%s\"])", text)
	case graph.NodeKindInterface:
		return fmt.Sprintf("{\"%s\"}", text)
	default:
		return fmt.Sprintf("[\"%s\"]", text)
	}
}

func mermaidArrow(kind graph.Relationship) string {
	if kind == graph.Owns {
		return "-.->"
	}
	return "-->"
}
