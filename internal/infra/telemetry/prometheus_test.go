package telemetry

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpdesk/internal/domain"
)

func TestNewPrometheusMetrics(t *testing.T) {
	m := NewPrometheusMetrics(prometheus.NewRegistry())
	assert.NotNil(t, m)
	assert.NotNil(t, m.remoteDuration)
	assert.NotNil(t, m.fetches)
	assert.NotNil(t, m.mutations)
	assert.NotNil(t, m.mutationSize)
	assert.NotNil(t, m.treeNodes)
}

func TestNewPrometheusMetrics_UsesProvidedRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := NewPrometheusMetrics(registry)
	m.ObserveRemoteCall("server.list", 10*time.Millisecond, nil)
	m.ObserveRemoteCall("tool.batch_update", 5*time.Millisecond, domain.Transport("tool.batch_update", errors.New("refused")))
	m.ObserveFetch("servers", domain.FetchApplied)
	m.ObserveMutation(domain.MutationCategory, domain.MutationRolledBack, 4)
	m.SetTreeStats(domain.TreeStats{Servers: 2, Categories: 3, Tools: 9, Enabled: 5, Orphans: 1})

	metrics, err := registry.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(metrics))
	for _, m := range metrics {
		names = append(names, m.GetName())
	}

	assert.Contains(t, names, "mcpdesk_remote_call_duration_seconds")
	assert.Contains(t, names, "mcpdesk_fetches_total")
	assert.Contains(t, names, "mcpdesk_mutations_total")
	assert.Contains(t, names, "mcpdesk_mutation_tools")
	assert.Contains(t, names, "mcpdesk_tree_nodes")
	assert.Contains(t, names, "mcpdesk_tree_enabled_tools")
	assert.Contains(t, names, "mcpdesk_tree_orphan_tools")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.mutations.WithLabelValues("category", "rolled_back")))
	assert.Equal(t, float64(9), testutil.ToFloat64(m.treeNodes.WithLabelValues("tool")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.remoteDuration))

	statuses := map[string]string{}
	for _, family := range metrics {
		if family.GetName() != "mcpdesk_remote_call_duration_seconds" {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			statuses[labels["op"]] = labels["status"]
			assert.Equal(t, uint64(1), metric.GetHistogram().GetSampleCount())
		}
	}
	assert.Equal(t, map[string]string{"server.list": "success", "tool.batch_update": "TRANSPORT"}, statuses)
}

func TestWriteAndDumpMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewPrometheusMetrics(registry).ObserveFetch("tools", domain.FetchFailed)

	var buf bytes.Buffer
	require.NoError(t, WriteMetrics(&buf, registry))
	assert.Contains(t, buf.String(), `mcpdesk_fetches_total{collection="tools",outcome="failed"} 1`)

	path := filepath.Join(t.TempDir(), "nested", "metrics.prom")
	require.NoError(t, DumpMetrics(path, registry))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, buf.String(), string(data))
}
