package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/dshills/undoledger/internal/ledger"
)

var _ ledger.Observer = (*LedgerObserver)(nil)

func TestObserverCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "test")
	obs := m.Observer("tasks")

	obs.Appended(1)
	obs.Appended(2)
	obs.Evicted(1)
	obs.Pruned(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.appends.WithLabelValues("tasks")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evictions.WithLabelValues("tasks")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.pruned.WithLabelValues("tasks")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.length.WithLabelValues("tasks")))
}

func TestNavigationOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "")

	m.Navigation("settings", "undo", OutcomeApplied)
	m.Navigation("settings", "undo", OutcomeUnavailable)
	m.Navigation("settings", "undo", OutcomeUnavailable)
	m.Navigation("settings", "jump", OutcomeFailed)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.navigations.WithLabelValues("settings", "undo", "applied")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.navigations.WithLabelValues("settings", "undo", "unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.navigations.WithLabelValues("settings", "jump", "failed")))
}

func TestFailureCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "test")

	m.ListenerFailure("tasks")
	m.IntegrityFailure("settings")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.listenerFailures.WithLabelValues("tasks")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.integrityFailures.WithLabelValues("settings")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Navigation("x", "redo", OutcomeApplied)
	m.ListenerFailure("x")
	m.IntegrityFailure("x")
	m.SetLength("x", 3)

	obs := m.Observer("x")
	obs.Appended(1)
	obs.Evicted(1)
	obs.Pruned(1)
}

func TestRegistersWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "test")
	m.Observer("tasks").Appended(1)

	families, err := reg.Gather()
	assert.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "test_appends_total")
	assert.Contains(t, names, "test_length")
}
