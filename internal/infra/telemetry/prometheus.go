package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mcpdesk/internal/domain"
)

type PrometheusMetrics struct {
	remoteDuration *prometheus.HistogramVec
	fetches        *prometheus.CounterVec
	mutations      *prometheus.CounterVec
	mutationSize   *prometheus.HistogramVec
	treeNodes      *prometheus.GaugeVec
	treeEnabled    prometheus.Gauge
	treeOrphans    prometheus.Gauge
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		remoteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mcpdesk_remote_call_duration_seconds",
				Help:    "Duration of calls to the management service in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"op", "status"},
		),
		fetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcpdesk_fetches_total",
				Help: "Collection fetches by outcome",
			},
			[]string{"collection", "outcome"},
		),
		mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcpdesk_mutations_total",
				Help: "Optimistic mutations by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		mutationSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mcpdesk_mutation_tools",
				Help:    "Number of tools affected by a mutation",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
			},
			[]string{"kind"},
		),
		treeNodes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mcpdesk_tree_nodes",
				Help: "Number of nodes in the current tree by level",
			},
			[]string{"level"},
		),
		treeEnabled: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mcpdesk_tree_enabled_tools",
			Help: "Number of enabled tools in the current tree",
		}),
		treeOrphans: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mcpdesk_tree_orphan_tools",
			Help: "Number of loaded tools whose server is not on the current page",
		}),
	}
}

func (p *PrometheusMetrics) ObserveRemoteCall(op string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		if code, ok := domain.CodeFrom(err); ok {
			status = string(code)
		}
	}
	p.remoteDuration.WithLabelValues(op, status).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveFetch(collection string, outcome domain.FetchOutcome) {
	p.fetches.WithLabelValues(collection, string(outcome)).Inc()
}

func (p *PrometheusMetrics) ObserveMutation(kind domain.MutationKind, outcome domain.MutationOutcome, size int) {
	p.mutations.WithLabelValues(string(kind), string(outcome)).Inc()
	if size > 0 {
		p.mutationSize.WithLabelValues(string(kind)).Observe(float64(size))
	}
}

func (p *PrometheusMetrics) SetTreeStats(stats domain.TreeStats) {
	p.treeNodes.WithLabelValues("server").Set(float64(stats.Servers))
	p.treeNodes.WithLabelValues("category").Set(float64(stats.Categories))
	p.treeNodes.WithLabelValues("tool").Set(float64(stats.Tools))
	p.treeEnabled.Set(float64(stats.Enabled))
	p.treeOrphans.Set(float64(stats.Orphans))
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)
