package impact

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/zheng/modgraph/internal/display"
	"github.com/zheng/modgraph/internal/graph"
)

// ErrAmbiguous is returned when a query matches more than one item
var ErrAmbiguous = errors.New("ambiguous item name")

// RiskLevel grades how far a change to an item spreads
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// CalculateRiskLevel determines risk level based on user counts
func CalculateRiskLevel(directUsers, totalUsers int) RiskLevel {
	// Primary factor: direct users
	// Secondary factor: total impact
	if directUsers >= 50 || totalUsers >= 200 {
		return RiskCritical
	}
	if directUsers >= 20 || totalUsers >= 100 {
		return RiskHigh
	}
	if directUsers >= 5 || totalUsers >= 30 {
		return RiskMedium
	}
	return RiskLow
}

// Icon returns the marker printed next to a risk level
func (r RiskLevel) Icon() string {
	switch r {
	case RiskCritical:
		return "🔴"
	case RiskHigh:
		return "🟠"
	case RiskMedium:
		return "🟡"
	default:
		return "🟢"
	}
}

// ImpactReport represents the impact analysis of changing an item
type ImpactReport struct {
	Target        graph.Node   `json:"target"`
	Owners        []graph.Node `json:"owners"`
	DirectUsers   []graph.Node `json:"direct_users"`
	IndirectUsers []graph.Node `json:"indirect_users"`
	DirectDeps    []graph.Node `json:"direct_deps"`
	IndirectDeps  []graph.Node `json:"indirect_deps"`
	Risk          RiskLevel    `json:"risk"`
}

// Resolve finds an item by exact ID, or by a unique substring of its ID
func Resolve(g *graph.Graph, query string) (graph.Node, error) {
	if n, ok := g.Lookup(graph.ItemID(query)); ok {
		return n, nil
	}

	var matches []graph.Node
	for _, n := range g.Nodes() {
		if strings.Contains(string(n.Item.ID), query) {
			matches = append(matches, n)
		}
	}
	switch len(matches) {
	case 0:
		return graph.Node{}, fmt.Errorf("%w: %q", graph.ErrNodeNotFound, query)
	case 1:
		return matches[0], nil
	}

	var names []string
	for i, n := range matches {
		if i == 10 {
			names = append(names, "...")
			break
		}
		names = append(names, string(n.Item.ID))
	}
	return graph.Node{}, fmt.Errorf("%w, found %d matches: %s", ErrAmbiguous, len(matches), strings.Join(names, ", "))
}

// Analyze reports who uses the item and what it uses, up to depth hops.
// depth 0 means unlimited.
func Analyze(g *graph.Graph, query string, depth int) (*ImpactReport, error) {
	target, err := Resolve(g, query)
	if err != nil {
		return nil, err
	}

	report := &ImpactReport{
		Target: target,
		Owners: g.OwnerChain(target.ID),
	}
	report.DirectUsers, report.IndirectUsers = reach(g, target.ID, depth, func(id graph.NodeID) []graph.NodeID {
		var ids []graph.NodeID
		for _, e := range g.Incoming(id, graph.Uses) {
			ids = append(ids, e.FromID)
		}
		return ids
	})
	report.DirectDeps, report.IndirectDeps = reach(g, target.ID, depth, func(id graph.NodeID) []graph.NodeID {
		var ids []graph.NodeID
		for _, e := range g.Outgoing(id, graph.Uses) {
			ids = append(ids, e.ToID)
		}
		return ids
	})
	report.Risk = CalculateRiskLevel(len(report.DirectUsers), len(report.DirectUsers)+len(report.IndirectUsers))
	return report, nil
}

// reach runs a BFS from start and splits the visited nodes into the first
// level and everything beyond it
func reach(g *graph.Graph, start graph.NodeID, depth int, next func(graph.NodeID) []graph.NodeID) (direct, indirect []graph.Node) {
	seen := map[graph.NodeID]bool{start: true}
	frontier := []graph.NodeID{start}
	for level := 1; len(frontier) > 0 && (depth == 0 || level <= depth); level++ {
		var upcoming []graph.NodeID
		for _, id := range frontier {
			for _, nid := range next(id) {
				if seen[nid] {
					continue
				}
				seen[nid] = true
				upcoming = append(upcoming, nid)
				n, _ := g.Node(nid)
				if level == 1 {
					direct = append(direct, n)
				} else {
					indirect = append(indirect, n)
				}
			}
		}
		frontier = upcoming
	}
	return direct, indirect
}

// Users returns direct and indirect users together
func (r *ImpactReport) Users() []graph.Node {
	return slices.Concat(r.DirectUsers, r.IndirectUsers)
}

// Deps returns direct and indirect dependencies together
func (r *ImpactReport) Deps() []graph.Node {
	return slices.Concat(r.DirectDeps, r.IndirectDeps)
}

func name(n graph.Node) string {
	if n.Item.Path == "" {
		return string(n.Item.ID)
	}
	return display.ShortName(n.Item.Path)
}

func location(n graph.Node) string {
	if n.Item.File == "" {
		return "-"
	}
	return fmt.Sprintf("%s:%d", shortPath(n.Item.File), n.Item.Line)
}

func writeTable(sb *strings.Builder, nodes []graph.Node) {
	sb.WriteString("| Item | Kind | Location |\n")
	sb.WriteString("|------|------|----------|\n")
	for _, n := range nodes {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", name(n), n.Item.Kind, location(n)))
	}
	sb.WriteString("\n")
}

// FormatMarkdown formats the impact report as markdown
func (r *ImpactReport) FormatMarkdown() string {
	var sb strings.Builder
	t := r.Target.Item

	sb.WriteString(fmt.Sprintf("## Impact of changing %s\n\n", name(r.Target)))
	sb.WriteString(fmt.Sprintf("**Kind:** %s\n\n", t.Kind))
	if t.File != "" {
		sb.WriteString(fmt.Sprintf("**Location:** %s:%d\n\n", t.File, t.Line))
	}
	if t.Signature != "" {
		sb.WriteString(fmt.Sprintf("**Signature:** `%s`\n\n", display.ShortSignature(t.Signature)))
	}
	if t.Doc != "" {
		sb.WriteString(fmt.Sprintf("**Doc:** %s\n\n", t.Doc))
	}
	if len(r.Owners) > 0 {
		var owners []string
		for _, o := range r.Owners {
			owners = append(owners, name(o))
		}
		sb.WriteString(fmt.Sprintf("**Owned by:** %s\n\n", strings.Join(owners, " ← ")))
	}
	sb.WriteString(fmt.Sprintf("**Risk:** %s %s\n\n", r.Risk.Icon(), r.Risk))

	sb.WriteString("### Direct users (check whether they need the same change)\n\n")
	if len(r.DirectUsers) == 0 {
		sb.WriteString("_No direct users_\n\n")
	} else {
		writeTable(&sb, r.DirectUsers)
	}

	if len(r.IndirectUsers) > 0 {
		sb.WriteString("### Indirect users (may be affected)\n\n")
		writeTable(&sb, r.IndirectUsers)
	}

	sb.WriteString("### Dependencies (used by this item)\n\n")
	if len(r.DirectDeps) == 0 {
		sb.WriteString("_No dependencies_\n\n")
	} else {
		writeTable(&sb, r.DirectDeps)
	}

	if len(r.IndirectDeps) > 0 {
		sb.WriteString("### Indirect dependencies\n\n")
		writeTable(&sb, r.IndirectDeps)
	}

	return sb.String()
}

// FormatTree formats the impact report as a tree structure
func (r *ImpactReport) FormatTree() string {
	var sb strings.Builder

	users := r.Users()
	deps := r.Deps()

	maxWidth := len(location(r.Target))
	for _, n := range slices.Concat(users, deps) {
		maxWidth = max(maxWidth, len(location(n)))
	}

	sb.WriteString("📍 Target\n")
	sb.WriteString(fmt.Sprintf("%-*s  %s\n", maxWidth, location(r.Target), name(r.Target)))
	if r.Target.Item.Signature != "" {
		sb.WriteString(fmt.Sprintf("   %s\n", display.ShortSignature(r.Target.Item.Signature)))
	}
	sb.WriteString("\n")

	section := func(title string, nodes []graph.Node) {
		if len(nodes) == 0 {
			sb.WriteString(title + "\n")
			sb.WriteString("└── (none)\n")
			return
		}
		sb.WriteString(fmt.Sprintf("%s (%d total)\n", title, len(nodes)))
		for i, n := range nodes {
			prefix := "├──"
			if i == len(nodes)-1 {
				prefix = "└──"
			}
			sb.WriteString(fmt.Sprintf("%s %-*s  %s\n", prefix, maxWidth, location(n), name(n)))
		}
	}

	section("⬆️ Used by", users)
	sb.WriteString("\n")
	section("⬇️ Uses", deps)

	return sb.String()
}

// shortPath extracts the last two path components
// e.g., "internal/livepk/livepk.go" -> "livepk/livepk.go"
func shortPath(fullPath string) string {
	parts := strings.Split(fullPath, "/")
	if len(parts) <= 2 {
		return fullPath
	}
	return strings.Join(parts[len(parts)-2:], "/")
}

// Summary returns a brief summary of the impact report
func (r *ImpactReport) Summary() string {
	return fmt.Sprintf(
		"Target: %s, Direct Users: %d, Indirect Users: %d, Direct Deps: %d, Indirect Deps: %d, Risk: %s",
		name(r.Target),
		len(r.DirectUsers),
		len(r.IndirectUsers),
		len(r.DirectDeps),
		len(r.IndirectDeps),
		r.Risk,
	)
}
