package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/zheng/modgraph/internal/mockproject"
)

func main() {
	cfg := mockproject.DefaultConfig()
	flag.StringVar(&cfg.Dir, "o", cfg.Dir, "output directory")
	flag.StringVar(&cfg.Module, "module", cfg.Module, "module path")
	flag.IntVar(&cfg.Packages, "pkgs", cfg.Packages, "number of packages")
	flag.IntVar(&cfg.FuncsPerPkg, "funcs", cfg.FuncsPerPkg, "functions per package")
	flag.IntVar(&cfg.TypesPerPkg, "types", cfg.TypesPerPkg, "struct types per package")
	flag.IntVar(&cfg.MaxDepth, "depth", cfg.MaxDepth, "maximum call depth")
	flag.Float64Var(&cfg.Density, "density", cfg.Density, "average calls per function")
	flag.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	flag.Parse()

	fmt.Printf("Generating mock project...\n")
	fmt.Printf("  packages:      %d\n", cfg.Packages)
	fmt.Printf("  funcs per pkg: %d\n", cfg.FuncsPerPkg)
	fmt.Printf("  types per pkg: %d\n", cfg.TypesPerPkg)
	fmt.Printf("  max depth:     %d\n", cfg.MaxDepth)
	fmt.Printf("  density:       %.1f\n", cfg.Density)

	sum, err := mockproject.Generate(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n✓ Wrote %s: %d items, %d calls\n", cfg.Dir, sum.Items(), sum.Calls)
	fmt.Printf("\nNext:\n")
	fmt.Printf("  modgraph analyze -C %s\n", cfg.Dir)
	fmt.Printf("  modgraph stats -s latest -C %s\n", cfg.Dir)
}
