package display

import (
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zheng/modgraph/internal/graph"
)

// TreeNode is one node of a walk folded back into a tree
type TreeNode struct {
	Node     graph.Node
	Depth    int
	Uses     []graph.Node
	Children []*TreeNode
}

// BuildTree folds a walk's event sequence into root trees
func BuildTree(seq iter.Seq2[graph.Event, error]) ([]*TreeNode, error) {
	var roots []*TreeNode
	var stack []*TreeNode
	for ev, err := range seq {
		if err != nil {
			return roots, err
		}
		switch ev.Kind {
		case graph.EventEnter:
			tn := &TreeNode{Node: ev.Node, Depth: ev.Depth}
			if len(stack) == 0 {
				roots = append(roots, tn)
			} else {
				top := stack[len(stack)-1]
				top.Children = append(top.Children, tn)
			}
			stack = append(stack, tn)
		case graph.EventEdge:
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				top.Uses = append(top.Uses, ev.Target)
			}
		case graph.EventLeave:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return roots, nil
}

// TreeOptions controls tree rendering
type TreeOptions struct {
	Color          bool
	ShowLocation   bool
	ShowVisibility bool
	ShowUses       bool
	Styles         *Styles
}

type treeFormatter struct {
	opts     TreeOptions
	styles   *Styles
	maxWidth int
	maxDepth int
	sb       strings.Builder
}

// FormatTree renders trees with box-drawing characters
func FormatTree(roots []*TreeNode, opts TreeOptions) string {
	f := &treeFormatter{opts: opts, styles: opts.Styles}
	if f.styles == nil {
		f.styles = DefaultStyles()
	}
	for _, r := range roots {
		f.measure(r)
	}
	for _, r := range roots {
		f.node(r, "", "", "")
	}
	return f.sb.String()
}

// RenderTree folds a walk and writes it to w as a tree. On a walk error
// the partial tree is still written.
func RenderTree(w io.Writer, seq iter.Seq2[graph.Event, error], opts TreeOptions) error {
	roots, walkErr := BuildTree(seq)
	if _, err := io.WriteString(w, FormatTree(roots, opts)); err != nil {
		return err
	}
	return walkErr
}

func (f *treeFormatter) label(tn *TreeNode) string {
	it := tn.Node.Item
	name := it.Name
	if tn.Depth == 0 || name == "" {
		name = it.Path
		if name == "" {
			name = string(it.ID)
		}
	}
	return name
}

func (f *treeFormatter) plain(tn *TreeNode) string {
	text := fmt.Sprintf("%s (%s)", f.label(tn), tn.Node.Item.Kind)
	if f.opts.ShowVisibility && tn.Node.Item.Visibility != "" {
		text += " " + string(tn.Node.Item.Visibility)
	}
	return text
}

func (f *treeFormatter) measure(tn *TreeNode) {
	f.maxDepth = max(f.maxDepth, tn.Depth)
	f.maxWidth = max(f.maxWidth, len(f.plain(tn)))
	for _, c := range tn.Children {
		f.measure(c)
	}
}

func (f *treeFormatter) paint(style lipgloss.Style, s string) string {
	if !f.opts.Color {
		return s
	}
	return style.Render(s)
}

func (f *treeFormatter) styled(tn *TreeNode) string {
	it := tn.Node.Item
	nameStyle := f.styles.Name
	if tn.Depth == 0 {
		nameStyle = f.styles.Root
	}
	text := f.paint(nameStyle, f.label(tn)) + " " + f.paint(f.styles.Kinds[it.Kind], "("+string(it.Kind)+")")
	if f.opts.ShowVisibility && it.Visibility != "" {
		text += " " + f.paint(f.styles.Visibility, string(it.Visibility))
	}
	return text
}

func (f *treeFormatter) node(tn *TreeNode, indent, prefix, childIndent string) {
	f.sb.WriteString(indent + prefix)
	f.sb.WriteString(f.styled(tn))

	it := tn.Node.Item
	if f.opts.ShowLocation && it.File != "" {
		padding := f.maxWidth + (f.maxDepth-tn.Depth)*4 - len(f.plain(tn))
		loc := fmt.Sprintf("%s:%d", it.File, it.Line)
		f.sb.WriteString(strings.Repeat(" ", padding+2))
		f.sb.WriteString(f.paint(f.styles.Location, loc))
	}
	f.sb.WriteString("\n")

	inner := indent + childIndent
	if f.opts.ShowUses {
		for _, u := range tn.Uses {
			bar := "    "
			if len(tn.Children) > 0 {
				bar = "│   "
			}
			f.sb.WriteString(inner + bar + f.paint(f.styles.Uses, "→ uses "+targetName(u)) + "\n")
		}
	}

	for i, c := range tn.Children {
		if i == len(tn.Children)-1 {
			f.node(c, inner, "└── ", "    ")
		} else {
			f.node(c, inner, "├── ", "│   ")
		}
	}
}

func targetName(n graph.Node) string {
	if n.Item.Path == "" {
		return string(n.Item.ID)
	}
	return ShortName(n.Item.Path)
}

// FormatEvents renders one event per line, indented by depth
func FormatEvents(events []graph.Event) string {
	var sb strings.Builder
	for _, ev := range events {
		sb.WriteString(strings.Repeat("  ", ev.Depth))
		sb.WriteString(ev.String())
		sb.WriteString("\n")
	}
	return sb.String()
}
