package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/modgraph/internal/export"
	"github.com/zheng/modgraph/internal/graph"
	"github.com/zheng/modgraph/internal/logging"
)

func testGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.FromCatalog(graph.Catalog{
		Items: []graph.Item{
			{ID: "ex.com/app", Name: "app", Path: "ex.com/app", Kind: graph.NodeKindPackage},
			{ID: "ex.com/app.Run", Name: "Run", Path: "ex.com/app.Run", Kind: graph.NodeKindFunc},
			{ID: "ex.com/app.load", Name: "load", Path: "ex.com/app.load", Kind: graph.NodeKindFunc},
			{ID: "ex.com/app.parse", Name: "parse", Path: "ex.com/app.parse", Kind: graph.NodeKindFunc},
			{ID: "ex.com/app.stray", Name: "stray", Path: "ex.com/app.stray", Kind: graph.NodeKindVar},
		},
		Relations: []graph.Triple{
			{Source: "ex.com/app", Target: "ex.com/app.Run", Kind: graph.Owns},
			{Source: "ex.com/app", Target: "ex.com/app.load", Kind: graph.Owns},
			{Source: "ex.com/app", Target: "ex.com/app.parse", Kind: graph.Owns},
			{Source: "ex.com/app.Run", Target: "ex.com/app.load", Kind: graph.Uses},
			{Source: "ex.com/app.load", Target: "ex.com/app.parse", Kind: graph.Uses},
			{Source: "ex.com/app.parse", Target: "ex.com/app.load", Kind: graph.Uses},
		},
	})
	require.NoError(t, err)
	return g
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(testGraph(t), 0, logging.Discard())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func getJSON(t *testing.T, url string, status int, v any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, status, resp.StatusCode)
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
}

func TestHandleGraph(t *testing.T) {
	_, ts := newTestServer(t)
	var data GraphData
	getJSON(t, ts.URL+"/api/graph", http.StatusOK, &data)
	assert.Len(t, data.Nodes, 5)
	require.Len(t, data.Edges, 6)
	assert.Equal(t, "owns", data.Edges[0].Kind)
	assert.Equal(t, "ex.com/app", data.Nodes[1].Group)
}

func TestHandleNodes_KindFilter(t *testing.T) {
	_, ts := newTestServer(t)
	var nodes []NodeData
	getJSON(t, ts.URL+"/api/nodes?kind=var", http.StatusOK, &nodes)
	require.Len(t, nodes, 1)
	assert.Equal(t, graph.ItemID("ex.com/app.stray"), nodes[0].ItemID)
}

func TestHandleNode(t *testing.T) {
	_, ts := newTestServer(t)
	var detail NodeDetail
	getJSON(t, ts.URL+"/api/node/ex.com/app.load", http.StatusOK, &detail)
	assert.Equal(t, "load", detail.Node.Label)
	require.NotNil(t, detail.Owner)
	assert.Equal(t, graph.ItemID("ex.com/app"), detail.Owner.ItemID)
	require.Len(t, detail.Users, 2)
	assert.Equal(t, graph.ItemID("ex.com/app.Run"), detail.Users[0].ItemID)
	require.Len(t, detail.Uses, 1)

	getJSON(t, ts.URL+"/api/node/2", http.StatusOK, &detail)
	assert.Equal(t, graph.ItemID("ex.com/app.Run"), detail.Node.ItemID)

	getJSON(t, ts.URL+"/api/node/missing", http.StatusNotFound, nil)
}

func TestHandleTree(t *testing.T) {
	_, ts := newTestServer(t)
	var events []export.EventRecord
	getJSON(t, ts.URL+"/api/tree?root=ex.com/app&depth=1&uses=false&order=name", http.StatusOK, &events)
	require.Len(t, events, 8)
	assert.Equal(t, "EnterNode", events[0].Event)
	assert.Equal(t, graph.ItemID("ex.com/app.Run"), events[1].Item, "ByName puts Run before load")

	getJSON(t, ts.URL+"/api/tree?root=nope", http.StatusNotFound, nil)
	getJSON(t, ts.URL+"/api/tree?order=random", http.StatusBadRequest, nil)
	getJSON(t, ts.URL+"/api/tree?depth=x", http.StatusBadRequest, nil)
}

func TestHandleImpact(t *testing.T) {
	_, ts := newTestServer(t)
	var data ImpactData
	getJSON(t, ts.URL+"/api/impact/ex.com/app.parse", http.StatusOK, &data)
	assert.Equal(t, graph.ItemID("ex.com/app.parse"), data.Target.ItemID)
	require.Len(t, data.DirectUsers, 1)
	require.Len(t, data.IndirectUsers, 1)
	assert.Equal(t, graph.ItemID("ex.com/app.Run"), data.IndirectUsers[0].ItemID)
	assert.Equal(t, "low", data.Risk)

	getJSON(t, ts.URL+"/api/impact/ex.com/app.", http.StatusBadRequest, nil)
	getJSON(t, ts.URL+"/api/impact/zzz", http.StatusNotFound, nil)
}

func TestHandleChain(t *testing.T) {
	_, ts := newTestServer(t)
	var data ChainData
	getJSON(t, ts.URL+"/api/chain/ex.com/app.Run?depth=3", http.StatusOK, &data)
	assert.Empty(t, data.Users)
	require.Len(t, data.Uses, 1)
	require.Len(t, data.Uses[0].Children, 1)
	assert.Equal(t, graph.ItemID("ex.com/app.parse"), data.Uses[0].Children[0].ItemID)
	assert.Empty(t, data.Uses[0].Children[0].Children, "load is already visited")
}

func TestHandleReports(t *testing.T) {
	_, ts := newTestServer(t)

	var cycles [][]graph.ItemID
	getJSON(t, ts.URL+"/api/cycles", http.StatusOK, &cycles)
	assert.Equal(t, [][]graph.ItemID{{"ex.com/app.load", "ex.com/app.parse"}}, cycles)

	var orphans []NodeData
	getJSON(t, ts.URL+"/api/orphans", http.StatusOK, &orphans)
	require.Len(t, orphans, 1)
	assert.Equal(t, graph.ItemID("ex.com/app.stray"), orphans[0].ItemID)

	var stats graph.Stats
	getJSON(t, ts.URL+"/api/stats", http.StatusOK, &stats)
	assert.Equal(t, 5, stats.Nodes)
	assert.Equal(t, 2, stats.Roots)

	var found []NodeData
	getJSON(t, ts.URL+"/api/search?q=app.p", http.StatusOK, &found)
	require.Len(t, found, 1)
}

func TestSetGraph(t *testing.T) {
	s, ts := newTestServer(t)
	empty, err := graph.NewBuilder().Build()
	require.NoError(t, err)
	s.SetGraph(empty)

	var data GraphData
	getJSON(t, ts.URL+"/api/graph", http.StatusOK, &data)
	assert.Empty(t, data.Nodes)
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	getJSON(t, ts.URL+"/api/stats", http.StatusOK, nil)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
