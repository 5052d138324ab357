package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"
)

// LoadConfig controls package loading
type LoadConfig struct {
	Dir      string
	Patterns []string
	Tests    bool
	Logger   *slog.Logger
}

// LoadPackages loads all Go packages matching the patterns under Dir
func LoadPackages(ctx context.Context, lc LoadConfig) ([]*packages.Package, error) {
	patterns := lc.Patterns
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	logger := lc.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg := &packages.Config{
		Context: ctx,
		Mode: packages.NeedName |
			packages.NeedFiles |
			packages.NeedSyntax |
			packages.NeedTypes |
			packages.NeedTypesInfo |
			packages.NeedDeps |
			packages.NeedImports,
		Dir:   lc.Dir,
		Tests: lc.Tests,
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load packages: %w", err)
	}

	// Log errors but continue - some packages may still be usable
	var errCount int
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		for _, perr := range pkg.Errors {
			errCount++
			logger.Warn("package error", "package", pkg.PkgPath, "error", perr.Error())
		}
	})
	if errCount > 0 {
		logger.Warn("packages loaded with errors", "errors", errCount)
	}

	return pkgs, nil
}

// FilterSourcePackages keeps packages with parsed source and drops the
// generated test main packages. Plain variants sort before test variants.
func FilterSourcePackages(pkgs []*packages.Package) []*packages.Package {
	var result []*packages.Package
	for _, pkg := range pkgs {
		if len(pkg.Syntax) == 0 || pkg.Types == nil {
			continue
		}
		if strings.HasSuffix(pkg.PkgPath, ".test") {
			continue
		}
		result = append(result, pkg)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].PkgPath != result[j].PkgPath {
			return result[i].PkgPath < result[j].PkgPath
		}
		return isTestVariant(result[j]) && !isTestVariant(result[i])
	})
	return result
}

// isTestVariant reports whether pkg is a package recompiled with its _test.go files, e.g. "p [p.test]"
func isTestVariant(pkg *packages.Package) bool {
	return strings.Contains(pkg.ID, " [")
}
