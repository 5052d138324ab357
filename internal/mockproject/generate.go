// Package mockproject writes synthetic Go modules of configurable size, used
// to exercise analysis and graph building on large inputs.
package mockproject

import (
	"fmt"
	"go/format"
	"maps"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Config represents the mock project configuration
type Config struct {
	Dir         string
	Module      string
	Packages    int
	FuncsPerPkg int
	TypesPerPkg int // struct types, each with one method
	MaxDepth    int
	Density     float64 // average calls per function
	Seed        uint64
}

// DefaultConfig returns a mid-sized project
func DefaultConfig() Config {
	return Config{
		Dir:         "./mock-project",
		Module:      "example.com/mockproject",
		Packages:    20,
		FuncsPerPkg: 100,
		TypesPerPkg: 5,
		MaxDepth:    10,
		Density:     3.0,
		Seed:        1,
	}
}

// Summary counts what Generate wrote
type Summary struct {
	Packages int
	Funcs    int
	Types    int
	Methods  int
	Calls    int
}

// Items is the number of catalog items analysis should produce without fields
func (s Summary) Items() int {
	return s.Packages + s.Funcs + s.Types + s.Methods
}

type funcInfo struct {
	pkg    int
	name   string
	depth  int
	global int
}

type call struct {
	pkg  int
	name string
}

type generator struct {
	cfg     Config
	rng     *rand.Rand
	funcs   []*funcInfo
	byDepth [][]*funcInfo
	sum     Summary
}

// Generate writes the project under cfg.Dir. The same seed gives the same files.
func Generate(cfg Config) (Summary, error) {
	if cfg.Module == "" {
		cfg.Module = DefaultConfig().Module
	}
	if cfg.Packages <= 0 || cfg.FuncsPerPkg <= 0 {
		return Summary{}, fmt.Errorf("need at least one package and one function per package")
	}
	cfg.MaxDepth = max(cfg.MaxDepth, 0)
	cfg.Density = max(cfg.Density, 1)

	g := &generator{cfg: cfg, rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return Summary{}, err
	}
	gomod := fmt.Sprintf("module %s\n\ngo 1.21\n", cfg.Module)
	if err := os.WriteFile(filepath.Join(cfg.Dir, "go.mod"), []byte(gomod), 0o644); err != nil {
		return Summary{}, err
	}

	g.registerFuncs()
	for p := range cfg.Packages {
		if err := g.writePackage(p); err != nil {
			return Summary{}, fmt.Errorf("package %s: %w", pkgName(p), err)
		}
		g.sum.Packages++
	}
	return g.sum, nil
}

func pkgName(p int) string { return fmt.Sprintf("pkg%02d", p) }

// registerFuncs spreads functions evenly over the depth levels
func (g *generator) registerFuncs() {
	g.byDepth = make([][]*funcInfo, g.cfg.MaxDepth+1)
	for p := range g.cfg.Packages {
		for f := range g.cfg.FuncsPerPkg {
			fn := &funcInfo{pkg: p, name: fmt.Sprintf("Func%04d", f), global: len(g.funcs)}
			fn.depth = fn.global % (g.cfg.MaxDepth + 1)
			g.funcs = append(g.funcs, fn)
			g.byDepth[fn.depth] = append(g.byDepth[fn.depth], fn)
		}
	}
}

// calls picks deeper targets in the same or a higher-numbered package, so
// there are neither import cycles nor call cycles
func (g *generator) calls(fn *funcInfo) []call {
	next := fn.depth + 1
	if next >= len(g.byDepth) || len(g.byDepth[next]) == 0 {
		return nil
	}

	n := g.rng.IntN(int(g.cfg.Density*2)) + 1
	if n > int(g.cfg.Density*1.5) {
		n = int(g.cfg.Density)
	}

	var deeper []*funcInfo
	for d := next; d < len(g.byDepth); d++ {
		deeper = append(deeper, g.byDepth[d]...)
	}

	var result []call
	seen := make(map[int]bool)
	for range n {
		pool := deeper
		if g.rng.Float64() < 0.8 {
			pool = g.byDepth[next]
		}
		target := pool[g.rng.IntN(len(pool))]
		if seen[target.global] || target.pkg < fn.pkg {
			continue
		}
		seen[target.global] = true
		result = append(result, call{pkg: target.pkg, name: target.name})
	}
	return result
}

func (g *generator) writePackage(p int) error {
	name := pkgName(p)
	dir := filepath.Join(g.cfg.Dir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	pkgFuncs := g.funcs[p*g.cfg.FuncsPerPkg : (p+1)*g.cfg.FuncsPerPkg]
	callMap := make(map[string][]call, len(pkgFuncs))
	imports := make(map[string]bool)
	for _, fn := range pkgFuncs {
		cs := g.calls(fn)
		callMap[fn.name] = cs
		for _, c := range cs {
			if c.pkg != p {
				imports[pkgName(c.pkg)] = true
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "// Package %s is generated.\npackage %s\n\n", name, name)
	if len(imports) > 0 {
		b.WriteString("import (\n")
		for _, imp := range slices.Sorted(maps.Keys(imports)) {
			fmt.Fprintf(&b, "\t%q\n", g.cfg.Module+"/"+imp)
		}
		b.WriteString(")\n\n")
	}

	for _, fn := range pkgFuncs {
		fmt.Fprintf(&b, "// %s is a mock function at depth %d\n", fn.name, fn.depth)
		fmt.Fprintf(&b, "func %s(input int) int {\n\tresult := input\n", fn.name)
		for i, c := range callMap[fn.name] {
			expr := c.name
			if c.pkg != p {
				expr = pkgName(c.pkg) + "." + c.name
			}
			fmt.Fprintf(&b, "\tresult += %s(result + %d)\n", expr, i)
			g.sum.Calls++
		}
		b.WriteString("\treturn result\n}\n\n")
		g.sum.Funcs++
	}

	for t := range g.cfg.TypesPerPkg {
		target := pkgFuncs[g.rng.IntN(len(pkgFuncs))]
		fmt.Fprintf(&b, "// Type%02d is a mock type\ntype Type%02d struct {\n\tn int\n}\n\n", t, t)
		fmt.Fprintf(&b, "// Apply is a mock method\nfunc (t *Type%02d) Apply(input int) int {\n\treturn %s(input + t.n)\n}\n\n", t, target.name)
		g.sum.Types++
		g.sum.Methods++
		g.sum.Calls++
	}

	src, err := format.Source([]byte(b.String()))
	if err != nil {
		return fmt.Errorf("format: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "code.go"), src, 0o644)
}
