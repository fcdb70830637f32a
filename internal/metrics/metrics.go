// Package metrics exposes Prometheus instrumentation for history ledgers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "undoledger"

// Metrics holds the collectors for one registry. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	appends           *prometheus.CounterVec
	evictions         *prometheus.CounterVec
	pruned            *prometheus.CounterVec
	navigations       *prometheus.CounterVec
	listenerFailures  *prometheus.CounterVec
	integrityFailures *prometheus.CounterVec
	length            *prometheus.GaugeVec
}

// New registers the collectors with reg. An empty namespace selects
// DefaultNamespace.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Metrics{
		appends: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appends_total",
			Help:      "Entries appended to a history ledger.",
		}, []string{"ledger"}),
		evictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Oldest entries evicted to respect ledger capacity.",
		}, []string{"ledger"}),
		pruned: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pruned_entries_total",
			Help:      "Redo entries discarded by appending from a rewound cursor.",
		}, []string{"ledger"}),
		navigations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "navigations_total",
			Help:      "Undo, redo and jump operations by outcome.",
		}, []string{"ledger", "direction", "outcome"}),
		listenerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_failures_total",
			Help:      "Change listeners that returned an error or panicked.",
		}, []string{"ledger"}),
		integrityFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integrity_failures_total",
			Help:      "Snapshot fingerprint verification failures.",
		}, []string{"ledger"}),
		length: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "length",
			Help:      "Current number of entries in a history ledger.",
		}, []string{"ledger"}),
	}
}

// Outcome labels a navigation attempt.
type Outcome string

// Navigation outcomes.
const (
	OutcomeApplied     Outcome = "applied"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeFailed      Outcome = "failed"
)

// Navigation records an undo, redo or jump attempt.
func (m *Metrics) Navigation(ledger, direction string, outcome Outcome) {
	if m == nil {
		return
	}
	m.navigations.WithLabelValues(ledger, direction, string(outcome)).Inc()
}

// ListenerFailure records a failed change listener.
func (m *Metrics) ListenerFailure(ledger string) {
	if m == nil {
		return
	}
	m.listenerFailures.WithLabelValues(ledger).Inc()
}

// IntegrityFailure records a snapshot that failed verification.
func (m *Metrics) IntegrityFailure(ledger string) {
	if m == nil {
		return
	}
	m.integrityFailures.WithLabelValues(ledger).Inc()
}

// SetLength records the current ledger length.
func (m *Metrics) SetLength(ledger string, n int) {
	if m == nil {
		return
	}
	m.length.WithLabelValues(ledger).Set(float64(n))
}

// Observer returns a ledger observer that records into m under the
// given ledger label.
func (m *Metrics) Observer(ledger string) *LedgerObserver {
	return &LedgerObserver{metrics: m, ledger: ledger}
}

// LedgerObserver adapts Metrics to ledger.Observer.
type LedgerObserver struct {
	metrics *Metrics
	ledger  string
}

// Appended implements ledger.Observer.
func (o *LedgerObserver) Appended(length int) {
	if o.metrics == nil {
		return
	}
	o.metrics.appends.WithLabelValues(o.ledger).Inc()
	o.metrics.SetLength(o.ledger, length)
}

// Evicted implements ledger.Observer.
func (o *LedgerObserver) Evicted(count int) {
	if o.metrics == nil {
		return
	}
	o.metrics.evictions.WithLabelValues(o.ledger).Add(float64(count))
}

// Pruned implements ledger.Observer.
func (o *LedgerObserver) Pruned(count int) {
	if o.metrics == nil {
		return
	}
	o.metrics.pruned.WithLabelValues(o.ledger).Add(float64(count))
}
