// Package orchestrator binds a subject to a history ledger.
//
// An orchestrator is the only writer of its subject. Every mutating verb
// runs to completion under a per-subject semaphore, so concurrent callers
// queue in order and a ledger append always follows the action it records.
// Waiting for the semaphore honors context cancellation; once an action
// has started it is not interrupted.
//
// Two flavors are provided:
//
//   - Commands records reversible commands and undoes them by applying
//     their inverse.
//   - Snapshots records full-state snapshots and undoes by restoring the
//     previous one.
//
// Listeners registered with Subscribe run after each successful mutation.
// A listener that fails or panics is logged and counted; it never affects
// the outcome of the mutation or the other listeners.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/dshills/undoledger/internal/ledger"
	"github.com/dshills/undoledger/internal/logging"
	"github.com/dshills/undoledger/internal/metrics"
	"github.com/dshills/undoledger/internal/notify"
)

// core holds what both orchestrators share.
type core struct {
	// sem serializes mutating verbs against the subject.
	sem *semaphore.Weighted

	// mu guards the ledger for readers outside the semaphore.
	mu sync.RWMutex

	name     string
	notifier *notify.Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func (c *core) init(o options) {
	c.sem = semaphore.NewWeighted(1)
	c.name = o.name
	c.notifier = notify.New()
	c.logger = logging.WithComponent(o.logger, "orchestrator").With(slog.String("ledger", o.name))
	c.metrics = o.metrics
}

func (c *core) ledgerOptions() []ledger.Option {
	if c.metrics == nil {
		return nil
	}
	return []ledger.Option{ledger.WithObserver(c.metrics.Observer(c.name))}
}

// acquire waits for exclusive use of the subject.
func (c *core) acquire(ctx context.Context) error {
	return c.sem.Acquire(ctx, 1)
}

func (c *core) release() {
	c.sem.Release(1)
}

// Subscribe registers a change listener and returns a function that
// removes it.
func (c *core) Subscribe(l notify.Listener) func() {
	return c.notifier.Subscribe(l)
}

// publish notifies listeners and reports their failures.
func (c *core) publish(change notify.Change) {
	for _, f := range c.notifier.Notify(change) {
		c.metrics.ListenerFailure(c.name)
		attrs := []any{
			slog.String("change", change.Kind.String()),
			slog.Uint64("listener", f.ID),
			slog.Any("error", f.Err),
		}
		if f.Panicked {
			attrs = append(attrs, slog.String("stack", string(f.Stack)))
		}
		c.logger.Warn("change listener failed", attrs...)
	}
}

// navigated counts a navigation. An error counts as failed even if some
// steps were applied.
func (c *core) navigated(direction string, ok bool, err error) {
	outcome := metrics.OutcomeApplied
	switch {
	case err != nil:
		outcome = metrics.OutcomeFailed
	case !ok:
		outcome = metrics.OutcomeUnavailable
	}
	c.metrics.Navigation(c.name, direction, outcome)
}
