package analyzer

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/zheng/modgraph/internal/graph"
)

// GitChanges lists the non-test Go files changed relative to Base, with
// paths relative to the project directory
type GitChanges struct {
	Base  string
	Files []string
	Dirs  []string // sorted, "." for the project root
}

// GetGitChanges diffs the working tree against base ("HEAD" when empty) and
// adds untracked Go files. In a repository without commits only untracked
// and modified files are reported. An unknown base or a directory outside
// any git repository is an error.
func GetGitChanges(ctx context.Context, projectPath string, base string) (*GitChanges, error) {
	if base == "" {
		base = "HEAD"
	}
	changes := &GitChanges{Base: base}

	diff, err := runGit(ctx, projectPath, "diff", "--name-only", "--relative", base, "--", "*.go")
	if err != nil {
		// HEAD only fails to resolve before the first commit
		if base != "HEAD" {
			return nil, fmt.Errorf("cannot diff against %s: %w", base, err)
		}
		diff, err = runGit(ctx, projectPath, "ls-files", "--modified", "--", "*.go")
		if err != nil {
			return nil, err
		}
	}
	untracked, err := runGit(ctx, projectPath, "ls-files", "--others", "--exclude-standard", "--", "*.go")
	if err != nil {
		return nil, err
	}

	dirs := make(map[string]bool)
	for _, file := range append(diff, untracked...) {
		if !strings.HasSuffix(file, ".go") || strings.HasSuffix(file, "_test.go") {
			continue
		}
		if slices.Contains(changes.Files, file) {
			continue
		}
		changes.Files = append(changes.Files, file)
		dirs[filepath.Dir(file)] = true
	}
	for dir := range dirs {
		changes.Dirs = append(changes.Dirs, dir)
	}
	slices.Sort(changes.Dirs)
	return changes, nil
}

func runGit(ctx context.Context, dir string, args ...string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s: %w", args[0], err)
	}
	var lines []string
	for line := range strings.Lines(string(out)) {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func (g *GitChanges) HasChanges() bool {
	return len(g.Files) > 0
}

func (g *GitChanges) String() string {
	return fmt.Sprintf("%d files changed in %d packages since %s", len(g.Files), len(g.Dirs), g.Base)
}

// PackageIDs maps the changed directories onto the loaded packages and
// returns their item IDs in package order
func (g *GitChanges) PackageIDs(projectPath string, pkgs []*packages.Package) []graph.ItemID {
	root, err := filepath.Abs(projectPath)
	if err != nil {
		return nil
	}
	changed := make(map[string]bool, len(g.Dirs))
	for _, dir := range g.Dirs {
		changed[filepath.Join(root, dir)] = true
	}

	var ids []graph.ItemID
	for _, pkg := range pkgs {
		if len(pkg.GoFiles) == 0 || !changed[filepath.Dir(pkg.GoFiles[0])] {
			continue
		}
		id := graph.ItemID(pkg.PkgPath)
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// GetRemoteTrackingBranch returns the upstream of the current branch,
// e.g. "origin/main"
func GetRemoteTrackingBranch(ctx context.Context, projectPath string) (string, error) {
	out, err := runGit(ctx, projectPath, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{u}")
	if err != nil {
		return "", fmt.Errorf("failed to resolve upstream branch: %w", err)
	}
	if len(out) == 0 {
		return "", fmt.Errorf("current branch has no upstream")
	}
	return out[0], nil
}
