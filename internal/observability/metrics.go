package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// phaseDuration tracks pipeline phase latency
	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "modgraph_phase_duration_seconds",
		Help:    "Pipeline phase duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	}, []string{"phase"})

	// buildTotal counts graph builds by result
	buildTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modgraph_build_total",
		Help: "Total graph builds by result",
	}, []string{"result"})

	graphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "modgraph_graph_nodes",
		Help: "Live nodes in the most recently built graph",
	})

	graphEdges = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "modgraph_graph_edges",
		Help: "Live edges in the most recently built graph by relationship",
	}, []string{"relationship"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modgraph_http_requests_total",
		Help: "HTTP API requests by route, method and status code",
	}, []string{"route", "method", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "modgraph_http_request_duration_seconds",
		Help:    "HTTP API request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})
)

// ObservePhase records how long a phase took.
func ObservePhase(phase string, d time.Duration) {
	phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// ObserveBuild records a build result and, on success, the graph size.
func ObserveBuild(err error, nodes int, edgesByRelationship map[string]int) {
	if err != nil {
		buildTotal.WithLabelValues("error").Inc()
		return
	}
	buildTotal.WithLabelValues("ok").Inc()
	graphNodes.Set(float64(nodes))
	for rel, n := range edgesByRelationship {
		graphEdges.WithLabelValues(rel).Set(float64(n))
	}
}

// InstrumentHandler wraps h with request count and latency metrics for route.
func InstrumentHandler(route string, h http.Handler) http.Handler {
	labels := prometheus.Labels{"route": route}
	return promhttp.InstrumentHandlerDuration(httpDuration.MustCurryWith(labels),
		promhttp.InstrumentHandlerCounter(httpRequests.MustCurryWith(labels), h))
}
