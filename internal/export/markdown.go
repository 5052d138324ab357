package export

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/zheng/modgraph/internal/display"
	"github.com/zheng/modgraph/internal/graph"
	"github.com/zheng/modgraph/internal/impact"
)

// MarkdownOptions configures the Markdown document
type MarkdownOptions struct {
	ProjectName    string
	IncludeMermaid bool
	IncludeUses    bool
	GeneratedAt    time.Time
}

// DefaultMarkdownOptions returns default Markdown options
func DefaultMarkdownOptions() MarkdownOptions {
	return MarkdownOptions{
		ProjectName:    "Project",
		IncludeMermaid: true,
		IncludeUses:    true,
	}
}

type packageItems struct {
	pkg   graph.Node
	items []graph.Node
}

// WriteMarkdown writes a document with one section per package
func WriteMarkdown(w io.Writer, g *graph.Graph, opts MarkdownOptions) error {
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}
	groups := groupByPackage(g)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s item graph\n\n", opts.ProjectName)
	fmt.Fprintf(&b, "> Generated: %s\n", opts.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "> Items: %d | Relations: %d\n\n", g.NodeCount(), g.EdgeCount())

	writePackageList(&b, groups)
	if opts.IncludeMermaid && len(groups) > 1 {
		writePackageDiagram(&b, g, groups)
	}

	b.WriteString("---\n\n## Packages\n\n")
	for _, grp := range groups {
		writePackageSection(&b, g, grp, opts)
	}
	writeImpactTable(&b, g)

	_, err := io.WriteString(w, b.String())
	return err
}

// packageOf returns the nearest package owning n, or n itself
func packageOf(g *graph.Graph, n graph.Node) (graph.Node, bool) {
	if n.Item.Kind == graph.NodeKindPackage {
		return n, true
	}
	for _, o := range g.OwnerChain(n.ID) {
		if o.Item.Kind == graph.NodeKindPackage {
			return o, true
		}
	}
	return graph.Node{}, false
}

func groupByPackage(g *graph.Graph) []*packageItems {
	var groups []*packageItems
	index := make(map[graph.NodeID]*packageItems)
	for _, n := range g.Nodes() {
		pkg, ok := packageOf(g, n)
		if !ok || pkg.Item.Visibility == graph.VisibilityExternal {
			continue
		}
		grp, ok := index[pkg.ID]
		if !ok {
			grp = &packageItems{pkg: pkg}
			index[pkg.ID] = grp
			groups = append(groups, grp)
		}
		if n.ID != pkg.ID {
			grp.items = append(grp.items, n)
		}
	}
	slices.SortStableFunc(groups, func(a, b *packageItems) int {
		return cmp.Compare(a.pkg.Item.Path, b.pkg.Item.Path)
	})
	return groups
}

func writePackageList(b *strings.Builder, groups []*packageItems) {
	b.WriteString("## Structure\n\n```\n")
	for _, grp := range groups {
		fmt.Fprintf(b, "├── %s (%d items)\n", pkgPath(grp.pkg), len(grp.items))
	}
	b.WriteString("```\n\n")
}

// writePackageDiagram draws package-to-package Uses aggregated from items
func writePackageDiagram(b *strings.Builder, g *graph.Graph, groups []*packageItems) {
	b.WriteString("## Package dependencies\n\n```mermaid\nflowchart TB\n")
	for _, grp := range groups {
		fmt.Fprintf(b, "    %s[\"%s\"]\n", mermaidID(grp.pkg.ID), mermaidText(display.ShortName(pkgPath(grp.pkg))))
	}

	type pair struct{ from, to graph.NodeID }
	seen := make(map[pair]bool)
	for _, e := range g.Edges() {
		if e.Kind != graph.Uses {
			continue
		}
		from, _ := g.Node(e.FromID)
		to, _ := g.Node(e.ToID)
		fp, ok1 := packageOf(g, from)
		tp, ok2 := packageOf(g, to)
		if !ok1 || !ok2 || fp.ID == tp.ID || tp.Item.Visibility == graph.VisibilityExternal {
			continue
		}
		p := pair{fp.ID, tp.ID}
		if seen[p] {
			continue
		}
		seen[p] = true
		fmt.Fprintf(b, "    %s --> %s\n", mermaidID(fp.ID), mermaidID(tp.ID))
	}
	b.WriteString("```\n\n")
}

func writePackageSection(b *strings.Builder, g *graph.Graph, grp *packageItems, opts MarkdownOptions) {
	fmt.Fprintf(b, "### 📦 %s\n\n", pkgPath(grp.pkg))
	if doc := truncateDoc(grp.pkg.Item.Doc, 120); doc != "" {
		fmt.Fprintf(b, "%s\n\n", doc)
	}
	if len(grp.items) == 0 {
		b.WriteString("_No items_\n\n")
		return
	}

	items := slices.Clone(grp.items)
	// exported first, then by name
	slices.SortStableFunc(items, func(x, y graph.Node) int {
		xp, yp := x.Item.Visibility == graph.VisibilityPublic, y.Item.Visibility == graph.VisibilityPublic
		if xp != yp {
			if xp {
				return -1
			}
			return 1
		}
		return cmp.Compare(x.Item.Path, y.Item.Path)
	})

	b.WriteString("| Item | Kind | Doc | Used by | Uses |\n")
	b.WriteString("|------|------|-----|---------|------|\n")
	for _, n := range items {
		doc := truncateDoc(n.Item.Doc, 30)
		if doc == "" {
			doc = "-"
		}
		fmt.Fprintf(b, "| `%s` | %s | %s | %d | %d |\n", itemName(grp.pkg, n), n.Item.Kind, doc,
			len(g.Incoming(n.ID, graph.Uses)), len(g.Outgoing(n.ID, graph.Uses)))
	}
	b.WriteString("\n")

	for _, n := range items {
		if n.Item.Visibility != graph.VisibilityPublic {
			continue
		}
		fmt.Fprintf(b, "#### `%s`\n\n", itemName(grp.pkg, n))
		if n.Item.File != "" {
			fmt.Fprintf(b, "- **Location**: `%s:%d`\n", n.Item.File, n.Item.Line)
		}
		if n.Item.Signature != "" {
			fmt.Fprintf(b, "- **Signature**: `%s`\n", display.ShortSignature(n.Item.Signature))
		}
		if n.Item.Doc != "" {
			fmt.Fprintf(b, "- **Doc**: %s\n", truncateDoc(n.Item.Doc, 200))
		}
		if opts.IncludeUses {
			if users := neighbours(g, g.Incoming(n.ID, graph.Uses), true); len(users) > 0 {
				fmt.Fprintf(b, "- **Used by**: %s\n", users)
			}
			if deps := neighbours(g, g.Outgoing(n.ID, graph.Uses), false); len(deps) > 0 {
				fmt.Fprintf(b, "- **Uses**: %s\n", deps)
			}
		}
		b.WriteString("\n")
	}
}

func neighbours(g *graph.Graph, edges []graph.Edge, from bool) string {
	var names []string
	for _, e := range edges {
		id := e.ToID
		if from {
			id = e.FromID
		}
		if n, ok := g.Node(id); ok {
			names = append(names, "`"+display.ShortName(n.Item.Path)+"`")
		}
	}
	return strings.Join(names, ", ")
}

// writeImpactTable writes the items with users, most used first
func writeImpactTable(b *strings.Builder, g *graph.Graph) {
	type usage struct {
		node  graph.Node
		users int
		uses  int
	}
	var stats []usage
	for _, n := range g.Nodes() {
		users := 0
		for _, e := range g.Incoming(n.ID, graph.Uses) {
			if e.FromID != n.ID {
				users++
			}
		}
		if users > 0 && n.Item.Visibility != graph.VisibilityExternal {
			stats = append(stats, usage{n, users, len(g.Outgoing(n.ID, graph.Uses))})
		}
	}
	if len(stats) == 0 {
		return
	}
	slices.SortStableFunc(stats, func(a, b usage) int { return cmp.Compare(b.users, a.users) })

	b.WriteString("---\n\n## Change impact reference\n\n")
	b.WriteString("| Item | Location | Used by | Uses | Risk |\n")
	b.WriteString("|------|----------|---------|------|------|\n")
	for _, s := range stats {
		risk := impact.CalculateRiskLevel(s.users, s.users)
		loc := "-"
		if s.node.Item.File != "" {
			loc = fmt.Sprintf("%s:%d", s.node.Item.File, s.node.Item.Line)
		}
		fmt.Fprintf(b, "| `%s` | %s | %d | %d | %s %s |\n",
			display.ShortName(s.node.Item.Path), loc, s.users, s.uses, risk.Icon(), risk)
	}
	b.WriteString("\n")
}

// WriteIncremental writes the users of every item in the changed packages
func WriteIncremental(w io.Writer, g *graph.Graph, changed []graph.ItemID, opts MarkdownOptions) error {
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}
	var b strings.Builder
	b.WriteString("# Incremental update report\n\n")
	if len(changed) == 0 {
		b.WriteString("> No changes detected\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	var changedItems []graph.Node
	for _, grp := range groupByPackage(g) {
		if slices.Contains(changed, grp.pkg.Item.ID) {
			changedItems = append(changedItems, grp.items...)
		}
	}

	fmt.Fprintf(&b, "> Generated: %s\n", opts.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "> Changed packages: %d | Items in them: %d\n\n", len(changed), len(changedItems))
	b.WriteString("## Changed packages\n\n")
	for _, id := range changed {
		fmt.Fprintf(&b, "- `%s`\n", id)
	}
	b.WriteString("\n")

	if len(changedItems) == 0 {
		b.WriteString("_No affected items_\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString("## Impact\n\n")
	for _, n := range changedItems {
		users := g.Incoming(n.ID, graph.Uses)
		if len(users) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### ⚠️ `%s`\n\n", display.ShortName(n.Item.Path))
		if n.Item.File != "" {
			fmt.Fprintf(&b, "**Location**: `%s:%d`\n\n", n.Item.File, n.Item.Line)
		}
		fmt.Fprintf(&b, "**%d items use this one and may need a look:**\n\n", len(users))
		b.WriteString("| User | File | Line |\n")
		b.WriteString("|------|------|------|\n")
		for _, e := range users {
			u, _ := g.Node(e.FromID)
			fmt.Fprintf(&b, "| `%s` | %s | %d |\n", display.ShortName(u.Item.Path), u.Item.File, u.Item.Line)
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func pkgPath(n graph.Node) string {
	if n.Item.Path != "" {
		return n.Item.Path
	}
	return string(n.Item.ID)
}

// itemName is the item path relative to its package
func itemName(pkg, n graph.Node) string {
	if rest, ok := strings.CutPrefix(n.Item.Path, pkgPath(pkg)+"."); ok {
		return rest
	}
	return display.ShortName(n.Item.Path)
}

func truncateDoc(doc string, maxLen int) string {
	doc = strings.TrimSpace(doc)
	// first line only
	if idx := strings.Index(doc, "\n"); idx >= 0 {
		doc = doc[:idx]
	}
	return display.Truncate(doc, maxLen)
}
