package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/modgraph/internal/config"
	"github.com/zheng/modgraph/internal/graph"
	"github.com/zheng/modgraph/internal/storage"
)

func sampleCatalog() graph.Catalog {
	return graph.Catalog{
		Items: []graph.Item{
			{ID: "ex.com/app", Name: "app", Path: "ex.com/app", Kind: graph.NodeKindPackage},
			{ID: "ex.com/app.Store", Name: "Store", Path: "ex.com/app.Store", Kind: graph.NodeKindInterface},
			{ID: "ex.com/app.memStore", Name: "memStore", Path: "ex.com/app.memStore", Kind: graph.NodeKindStruct},
			{ID: "ex.com/app.fileStore", Name: "fileStore", Path: "ex.com/app.fileStore", Kind: graph.NodeKindStruct},
			{ID: "ex.com/app.Run", Name: "Run", Path: "ex.com/app.Run", Kind: graph.NodeKindFunc},
		},
		Relations: []graph.Triple{
			{Source: "ex.com/app", Target: "ex.com/app.Store", Kind: graph.Owns},
			{Source: "ex.com/app", Target: "ex.com/app.memStore", Kind: graph.Owns},
			{Source: "ex.com/app", Target: "ex.com/app.fileStore", Kind: graph.Owns},
			{Source: "ex.com/app", Target: "ex.com/app.Run", Kind: graph.Owns},
			{Source: "ex.com/app.memStore", Target: "ex.com/app.Store", Kind: graph.Uses},
			{Source: "ex.com/app.fileStore", Target: "ex.com/app.Store", Kind: graph.Uses},
			{Source: "ex.com/app.Run", Target: "ex.com/app.Store", Kind: graph.Uses},
		},
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCmd("test")

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"analyze", "tree", "impact", "search", "cycles", "orphans",
		"stats", "risk", "implements", "export", "snapshots", "watch", "serve", "mcp"} {
		assert.Contains(t, names, want)
	}
}

func TestProjectFlags_Options(t *testing.T) {
	cfg = config.Default()
	cfg.Analysis.Externs = true

	var pf projectFlags
	c := &cobra.Command{Use: "x"}
	pf.register(c)
	require.NoError(t, c.ParseFlags([]string{"--tests", "--dir", "proj", "--externs=false"}))

	opts := pf.options(c, []string{"./api/..."})
	assert.Equal(t, "proj", opts.Dir)
	assert.Equal(t, []string{"./api/..."}, opts.Patterns)
	assert.True(t, opts.Tests)
	assert.False(t, opts.Externs)
	assert.False(t, opts.Fields)

	opts = pf.options(c, nil)
	assert.Equal(t, []string{"./..."}, opts.Patterns)
}

func TestResolveSnapshot(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = resolveSnapshot(ctx, db, "latest", "/proj")
	assert.ErrorIs(t, err, storage.ErrSnapshotNotFound)

	id, err := db.SaveSnapshot(ctx, "/proj", sampleCatalog())
	require.NoError(t, err)

	got, err := resolveSnapshot(ctx, db, "latest", "/proj")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = resolveSnapshot(ctx, db, id, "/elsewhere")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = resolveSnapshot(ctx, db, "no-such-id", "/proj")
	assert.ErrorIs(t, err, storage.ErrSnapshotNotFound)
}

func TestImplementsHelpers(t *testing.T) {
	g, err := graph.FromCatalog(sampleCatalog())
	require.NoError(t, err)

	iface, ok := firstOfKind(g, "Store", graph.NodeKindInterface)
	require.True(t, ok)
	assert.Equal(t, graph.ItemID("ex.com/app.Store"), iface.Item.ID)

	// Run is a func, so only the two structs are implementations
	impls := linked(g, g.Incoming(iface.ID, graph.Uses), true)
	var ids []graph.ItemID
	for _, n := range impls {
		ids = append(ids, n.Item.ID)
	}
	assert.Equal(t, []graph.ItemID{"ex.com/app.memStore", "ex.com/app.fileStore"}, ids)

	typ, ok := firstOfKind(g, "memStore", graph.NodeKindStruct, graph.NodeKindType)
	require.True(t, ok)
	ifaces := linked(g, g.Outgoing(typ.ID, graph.Uses), false)
	require.Len(t, ifaces, 1)
	assert.Equal(t, iface.ID, ifaces[0].ID)

	_, ok = firstOfKind(g, "Run", graph.NodeKindInterface)
	assert.False(t, ok)

	assert.Len(t, candidates(g, "Store"), 3)
}

func TestCommands_FromSnapshot(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "snap.db")

	db, err := storage.Open(dbPath)
	require.NoError(t, err)
	id, err := db.SaveSnapshot(ctx, "/proj", sampleCatalog())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	for _, args := range [][]string{
		{"tree", "-s", id},
		{"tree", "-s", id, "--events", "json", "--root", "ex.com/app.Run"},
		{"stats", "-s", id, "--json"},
		{"cycles", "-s", id},
		{"orphans", "-s", id},
		{"impact", "-s", id, "app.Run", "--format", "summary"},
		{"export", "-s", id, "-f", "dot", "-o", filepath.Join(t.TempDir(), "g.dot")},
		{"search", "-s", id, "Store"},
		{"snapshots"},
	} {
		t.Run(args[0], func(t *testing.T) {
			DbPath = ""
			root := NewRootCmd("test")
			root.SetArgs(append([]string{"--db", dbPath, "--log-level", "error"}, args...))
			require.NoError(t, root.ExecuteContext(ctx))
		})
	}
}

func TestCommands_Errors(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")

	// a module outside any git repository
	project := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(project, "go.mod"), []byte("module example.com/nogit\n\ngo 1.21\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(project, "a.go"), []byte("package nogit\n\nfunc A() {}\n"), 0o644))

	for _, tt := range []struct {
		args []string
		want string
	}{
		{[]string{"tree", "-s", "latest", "-C", t.TempDir()}, "snapshot not found"},
		{[]string{"tree", "-s", "latest", "--changed", "HEAD"}, "--changed cannot be combined with --snapshot"},
		{[]string{"tree", "-C", project, "--changed", "main"}, "failed to get changes since main"},
		{[]string{"serve", "-s", "latest", "--watch"}, "--watch cannot be combined with --snapshot"},
		{[]string{"mcp", "-s", "latest", "--watch"}, "--watch cannot be combined with --snapshot"},
		{[]string{"impact"}, ""},
		{[]string{"export", "-f", "png"}, ""},
		{[]string{"snapshots", "delete", "missing"}, ""},
	} {
		t.Run(tt.args[0], func(t *testing.T) {
			root := NewRootCmd("test")
			root.SetArgs(append([]string{"--db", dbPath}, tt.args...))
			err := root.ExecuteContext(context.Background())
			require.Error(t, err)
			if tt.want != "" {
				assert.Contains(t, err.Error(), tt.want)
			}
		})
	}
}

func TestShutdown_AfterFailedCommand(t *testing.T) {
	root := NewRootCmd("test")
	root.SetArgs([]string{"--db", filepath.Join(t.TempDir(), "x.db"), "export", "-f", "png"})
	require.Error(t, root.ExecuteContext(context.Background()))
	require.NotNil(t, tracer, "setup ran before the command failed")

	require.NoError(t, Shutdown(context.Background()))
	assert.Nil(t, tracer)
	assert.NoError(t, Shutdown(context.Background()))
}
