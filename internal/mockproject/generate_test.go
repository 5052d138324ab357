package mockproject

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig(dir string) Config {
	return Config{
		Dir:         dir,
		Module:      "example.com/mock",
		Packages:    3,
		FuncsPerPkg: 8,
		TypesPerPkg: 2,
		MaxDepth:    3,
		Density:     2,
		Seed:        7,
	}
}

func TestGenerate_Files(t *testing.T) {
	dir := t.TempDir()
	sum, err := Generate(smallConfig(dir))
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Packages)
	assert.Equal(t, 24, sum.Funcs)
	assert.Equal(t, 6, sum.Types)
	assert.Equal(t, 6, sum.Methods)
	assert.Equal(t, 39, sum.Items())
	assert.GreaterOrEqual(t, sum.Calls, sum.Methods)

	gomod, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	require.NoError(t, err)
	assert.Contains(t, string(gomod), "module example.com/mock")

	fset := token.NewFileSet()
	for _, pkg := range []string{"pkg00", "pkg01", "pkg02"} {
		f, err := parser.ParseFile(fset, filepath.Join(dir, pkg, "code.go"), nil, parser.ParseComments)
		require.NoError(t, err, pkg)
		assert.Equal(t, pkg, f.Name.Name)
		assert.Len(t, f.Decls, 8+2*2+boolToInt(len(f.Imports) > 0), pkg)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func TestGenerate_Deterministic(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	_, err := Generate(smallConfig(a))
	require.NoError(t, err)
	_, err = Generate(smallConfig(b))
	require.NoError(t, err)

	for _, pkg := range []string{"pkg00", "pkg01", "pkg02"} {
		x, err := os.ReadFile(filepath.Join(a, pkg, "code.go"))
		require.NoError(t, err)
		y, err := os.ReadFile(filepath.Join(b, pkg, "code.go"))
		require.NoError(t, err)
		assert.Equal(t, string(x), string(y), pkg)
	}
}

func TestGenerate_InvalidConfig(t *testing.T) {
	_, err := Generate(Config{Dir: t.TempDir()})
	assert.Error(t, err)
}
