package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/modgraph/internal/graph"
	"github.com/zheng/modgraph/internal/logging"
	"github.com/zheng/modgraph/internal/mockproject"
)

func testContext() context.Context {
	return logging.WithLogger(context.Background(), logging.Discard())
}

func TestRun_Sample(t *testing.T) {
	dir, err := filepath.Abs(filepath.Join("..", "analyzer", "testdata", "sample"))
	require.NoError(t, err)

	res, err := Run(testContext(), Options{Dir: dir, Implements: true})
	require.NoError(t, err)
	assert.Equal(t, len(res.Catalog.Items), res.Graph.NodeCount())
	assert.Positive(t, res.Duration)

	_, ok := res.Graph.Lookup("example.com/sample/store.Memory")
	assert.True(t, ok)
}

func TestRun_WithBuilderOptions(t *testing.T) {
	dir, err := filepath.Abs(filepath.Join("..", "analyzer", "testdata", "sample"))
	require.NoError(t, err)

	res, err := Run(testContext(), Options{
		Dir:   dir,
		Build: []graph.BuilderOption{graph.WithExcludedKinds(graph.NodeKindMethod), graph.WithPruneFrom("example.com/sample/app")},
	})
	require.NoError(t, err)
	for _, n := range res.Graph.Nodes() {
		assert.NotEqual(t, graph.NodeKindMethod, n.Item.Kind)
	}
	_, ok := res.Graph.Lookup("example.com/sample/store.unused")
	assert.False(t, ok, "pruned")
}

func TestRun_MockProject(t *testing.T) {
	if testing.Short() {
		t.Skip("loads a generated module")
	}
	cfg := mockproject.Config{
		Dir:         t.TempDir(),
		Module:      "example.com/mock",
		Packages:    4,
		FuncsPerPkg: 20,
		TypesPerPkg: 2,
		MaxDepth:    4,
		Density:     2,
		Seed:        3,
	}
	sum, err := mockproject.Generate(cfg)
	require.NoError(t, err)

	res, err := Run(testContext(), Options{Dir: cfg.Dir})
	require.NoError(t, err)
	assert.Equal(t, sum.Items(), res.Graph.NodeCount())

	stats := graph.ComputeStats(res.Graph)
	assert.Equal(t, sum.Packages, stats.ByKind[graph.NodeKindPackage])
	assert.Equal(t, sum.Methods, stats.ByKind[graph.NodeKindMethod])
	assert.GreaterOrEqual(t, stats.ByRelationship[graph.Uses.DisplayName()], sum.Calls)
	assert.Empty(t, graph.UsesCycles(res.Graph))
}

func TestRun_ChangedSinceUnknownBase(t *testing.T) {
	dir, err := filepath.Abs(filepath.Join("..", "analyzer", "testdata", "sample"))
	require.NoError(t, err)

	res, err := Run(testContext(), Options{Dir: dir, ChangedSince: "no-such-ref-7f3a"})
	assert.Nil(t, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get changes since no-such-ref-7f3a")
}

func TestRun_NoPackages(t *testing.T) {
	_, err := Run(testContext(), Options{Dir: t.TempDir()})
	assert.Error(t, err)
}

func TestBuild_WrapsErrors(t *testing.T) {
	cat := graph.Catalog{
		Items:     []graph.Item{{ID: "a", Kind: graph.NodeKindPackage}},
		Relations: []graph.Triple{{Source: "a", Target: "b", Kind: graph.Uses}},
	}
	_, err := Build(testContext(), cat)
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrDanglingReference)
	assert.Contains(t, err.Error(), "failed to build graph")
}
