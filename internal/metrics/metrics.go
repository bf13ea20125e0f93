package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BuildTotal counts bulk graph rebuilds by outcome.
	BuildTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casegraph_build_total",
		Help: "Bulk graph rebuilds, labeled by status.",
	}, []string{"status"})

	// BuildDuration observes bulk rebuild latency.
	BuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "casegraph_build_duration_seconds",
		Help:    "Duration of bulk graph rebuilds.",
		Buckets: prometheus.DefBuckets,
	})

	// NodesCreated counts graph nodes persisted by rebuilds and updates.
	NodesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "casegraph_nodes_created_total",
		Help: "Graph nodes created.",
	})

	// EdgesCreated counts graph edges persisted by rebuilds and updates.
	EdgesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "casegraph_edges_created_total",
		Help: "Graph edges created.",
	})

	// EventsProcessed counts timeline events consumed from the queue.
	EventsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "casegraph_events_processed_total",
		Help: "Timeline events processed by the incremental updater.",
	})

	// EventFailures counts events that could not be parsed or applied.
	EventFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "casegraph_event_failures_total",
		Help: "Timeline events dropped after parse or apply failures.",
	})
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
