package display

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/zheng/modgraph/internal/graph"
)

const (
	ColorBlue   = "#58a6ff"
	ColorGreen  = "#3fb950"
	ColorRed    = "#f85149"
	ColorYellow = "#d29922"
	ColorPurple = "#bc8cff"
	ColorGray   = "#8b949e"
	ColorBright = "#f0f6fc"
)

// Styles holds the lipgloss styles used by the tree renderer
type Styles struct {
	Root       lipgloss.Style
	Name       lipgloss.Style
	Location   lipgloss.Style
	Uses       lipgloss.Style
	Visibility lipgloss.Style
	Kinds      map[graph.NodeKind]lipgloss.Style
}

// DefaultStyles creates the default style set
func DefaultStyles() *Styles {
	kind := func(c string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(c))
	}
	return &Styles{
		Root:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorBright)),
		Name:       lipgloss.NewStyle().Foreground(lipgloss.Color(ColorBright)),
		Location:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Uses:       lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)).Italic(true),
		Visibility: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Kinds: map[graph.NodeKind]lipgloss.Style{
			graph.NodeKindPackage:   kind(ColorBlue).Bold(true),
			graph.NodeKindStruct:    kind(ColorGreen),
			graph.NodeKindInterface: kind(ColorPurple),
			graph.NodeKindType:      kind(ColorGreen),
			graph.NodeKindFunc:      kind(ColorYellow),
			graph.NodeKindMethod:    kind(ColorYellow),
			graph.NodeKindField:     kind(ColorGray),
			graph.NodeKindVar:       kind(ColorRed),
			graph.NodeKindConst:     kind(ColorRed),
		},
	}
}

// ColorEnabled reports whether w is a terminal and NO_COLOR is unset
func ColorEnabled(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
