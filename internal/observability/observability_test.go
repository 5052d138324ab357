package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracing_NoEndpoint(t *testing.T) {
	tp, err := InitTracing(context.Background(), TracingConfig{ServiceName: "modgraph"})
	require.NoError(t, err)
	require.NotNil(t, tp.Tracer())

	ctx, span := StartPhaseSpan(context.Background(), "build")
	RecordGraphSize(span, 3, 2)
	RecordError(span, errors.New("boom"))
	span.End()
	assert.NotNil(t, ctx)
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestObserveBuild(t *testing.T) {
	before := testutil.ToFloat64(buildTotal.WithLabelValues("error"))
	ObserveBuild(errors.New("dangling"), 0, nil)
	assert.Equal(t, before+1, testutil.ToFloat64(buildTotal.WithLabelValues("error")))

	ObserveBuild(nil, 12, map[string]int{"owns": 11, "uses": 5})
	assert.Equal(t, float64(12), testutil.ToFloat64(graphNodes))
	assert.Equal(t, float64(5), testutil.ToFloat64(graphEdges.WithLabelValues("uses")))

	ObservePhase("load", 20*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(phaseDuration))
}

func TestInstrumentHandler(t *testing.T) {
	h := InstrumentHandler("/api/test", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/test", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(httpRequests.WithLabelValues("/api/test", "get", "418")))
}
