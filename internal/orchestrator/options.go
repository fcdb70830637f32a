package orchestrator

import (
	"log/slog"

	"github.com/dshills/undoledger/internal/ledger"
	"github.com/dshills/undoledger/internal/metrics"
)

// Option configures an orchestrator.
type Option func(*options)

type options struct {
	name            string
	capacity        int
	logger          *slog.Logger
	metrics         *metrics.Metrics
	verifyOnRestore bool
	baseline        string
	hasBaseline     bool
}

func defaultOptions(name string) options {
	return options{
		name:            name,
		capacity:        ledger.DefaultCapacity,
		verifyOnRestore: true,
	}
}

// WithName sets the ledger label used in logs and metrics.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithCapacity sets the ledger capacity.
func WithCapacity(n int) Option {
	return func(o *options) {
		o.capacity = n
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics records ledger activity into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithVerifyOnRestore toggles fingerprint checks when a snapshot is restored.
// Only snapshot-backed orchestrators use it.
func WithVerifyOnRestore(v bool) Option {
	return func(o *options) {
		o.verifyOnRestore = v
	}
}

// WithBaseline records the subject's initial state as the first snapshot,
// so the first change can be undone. Only snapshot-backed orchestrators
// use it.
func WithBaseline(description string) Option {
	return func(o *options) {
		o.baseline = description
		o.hasBaseline = true
	}
}
