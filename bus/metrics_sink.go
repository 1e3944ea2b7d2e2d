package bus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsSink projects the event stream onto a small set of Prometheus
// metrics, namespaced "flowgraph_" after this codebase's convention of a
// per-engine metrics namespace.
type MetricsSink struct {
	nodeLatency  *prometheus.HistogramVec
	retries      *prometheus.CounterVec
	rateWaits    *prometheus.CounterVec
	graphResults *prometheus.CounterVec
}

// NewMetricsSink registers its metrics against reg (use
// prometheus.NewRegistry() for an isolated registry in tests).
func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	factory := promauto.With(reg)
	return &MetricsSink{
		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flowgraph_node_duration_ms",
			Help:    "Node execution duration in milliseconds.",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"node_id", "status"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgraph_retries_total",
			Help: "Cumulative retry attempts across all nodes.",
		}, []string{"node_id"}),
		rateWaits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgraph_rate_limit_waits_total",
			Help: "Cumulative rate-limit waits.",
		}, []string{"scope", "target"}),
		graphResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgraph_graph_finish_total",
			Help: "Cumulative graph.finish events by status.",
		}, []string{"status"}),
	}
}

func (s *MetricsSink) Emit(e Event) error {
	switch e.Event {
	case EventNodeFinish:
		nodeID, _ := e.Fields["node_id"].(string)
		status, _ := e.Fields["status"].(string)
		durationMS, _ := e.Fields["duration_ms"].(float64)
		s.nodeLatency.WithLabelValues(nodeID, status).Observe(durationMS)
	case EventRetryAttempt:
		nodeID, _ := e.Fields["node_id"].(string)
		s.retries.WithLabelValues(nodeID).Inc()
	case EventRateLimitWait:
		scope, _ := e.Fields["scope"].(string)
		target, _ := e.Fields["target"].(string)
		s.rateWaits.WithLabelValues(scope, target).Inc()
	case EventGraphFinish:
		status, _ := e.Fields["status"].(string)
		s.graphResults.WithLabelValues(status).Inc()
	}
	return nil
}
