package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dshills/undoledger/internal/ledger"
	"github.com/dshills/undoledger/internal/notify"
	"github.com/dshills/undoledger/internal/snapshot"
)

// Subject is mutable state that can be read and replaced wholesale.
// State must return a copy the caller may keep.
type Subject[T any] interface {
	State() T
	Replace(state T)
}

// Snapshots records full-state snapshots of one subject.
type Snapshots[T any] struct {
	core
	subject Subject[T]
	ledger  *ledger.Ledger[*snapshot.Snapshot[T]]
	verify  bool
}

// NewSnapshots creates a snapshot-backed orchestrator for subject.
// With WithBaseline the current state is captured immediately.
func NewSnapshots[T any](subject Subject[T], opts ...Option) (*Snapshots[T], error) {
	o := defaultOptions("snapshots")
	for _, opt := range opts {
		opt(&o)
	}

	s := &Snapshots[T]{
		subject: subject,
		verify:  o.verifyOnRestore,
	}
	s.core.init(o)
	s.ledger = ledger.New[*snapshot.Snapshot[T]](o.capacity, s.ledgerOptions()...)

	if o.hasBaseline {
		snap, err := snapshot.Capture(subject.State(), o.baseline)
		if err != nil {
			return nil, fmt.Errorf("capture baseline: %w", err)
		}
		s.ledger.Append(snap)
	}
	return s, nil
}

// Mutate runs fn and then records the resulting subject state. If fn
// fails nothing is recorded. If the new state cannot be captured the
// subject is put back to its state before fn ran.
func (s *Snapshots[T]) Mutate(ctx context.Context, description string, fn func(ctx context.Context) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	before := s.subject.State()
	if err := fn(ctx); err != nil {
		s.logger.Debug("mutation failed", slog.String("description", description), slog.Any("error", err))
		return err
	}

	snap, err := snapshot.Capture(s.subject.State(), description)
	if err != nil {
		s.subject.Replace(before)
		s.logger.Error("capture failed", slog.String("description", description), slog.Any("error", err))
		return err
	}

	s.record(notify.KindDo, snap)
	return nil
}

// Save records the current subject state without changing it.
func (s *Snapshots[T]) Save(ctx context.Context, description string) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	snap, err := snapshot.Capture(s.subject.State(), description)
	if err != nil {
		return err
	}
	s.record(notify.KindSave, snap)
	return nil
}

func (s *Snapshots[T]) record(kind notify.Kind, snap *snapshot.Snapshot[T]) {
	s.mu.Lock()
	length := s.ledger.Append(snap)
	cursor := s.ledger.Cursor()
	s.mu.Unlock()

	s.logger.Debug("snapshot recorded",
		slog.String("description", snap.Description()),
		slog.String("fingerprint", snap.Fingerprint()),
		slog.Int("length", length),
	)
	s.publish(notify.Change{Kind: kind, Description: snap.Description(), Cursor: cursor, Length: length})
}

// Undo restores the snapshot before the current one. It reports false
// when there is no earlier snapshot.
func (s *Snapshots[T]) Undo(ctx context.Context) (bool, error) {
	if err := s.acquire(ctx); err != nil {
		return false, err
	}
	defer s.release()

	s.mu.RLock()
	cursor := s.ledger.Cursor()
	target, ok := s.ledger.At(cursor - 1)
	s.mu.RUnlock()
	if !ok {
		s.navigated("undo", false, nil)
		return false, nil
	}

	if err := s.restore(target); err != nil {
		s.navigated("undo", false, err)
		return false, err
	}

	s.mu.Lock()
	s.ledger.Undo()
	s.mu.Unlock()

	s.navigated("undo", true, nil)
	s.publish(s.change(notify.KindUndo, target.Description()))
	return true, nil
}

// Redo restores the snapshot after the current one. It reports false
// when there is nothing to redo.
func (s *Snapshots[T]) Redo(ctx context.Context) (bool, error) {
	if err := s.acquire(ctx); err != nil {
		return false, err
	}
	defer s.release()

	s.mu.RLock()
	target, ok := s.ledger.PeekRedo()
	s.mu.RUnlock()
	if !ok {
		s.navigated("redo", false, nil)
		return false, nil
	}

	if err := s.restore(target); err != nil {
		s.navigated("redo", false, err)
		return false, err
	}

	s.mu.Lock()
	s.ledger.Redo()
	s.mu.Unlock()

	s.navigated("redo", true, nil)
	s.publish(s.change(notify.KindRedo, target.Description()))
	return true, nil
}

// JumpTo restores the snapshot at index and makes it current.
func (s *Snapshots[T]) JumpTo(ctx context.Context, index int) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	s.mu.RLock()
	target, ok := s.ledger.At(index)
	length := s.ledger.Len()
	s.mu.RUnlock()
	if !ok {
		s.navigated("jump", false, nil)
		return fmt.Errorf("jump to %d of %d: %w", index, length, ledger.ErrIndexOutOfRange)
	}

	if err := s.restore(target); err != nil {
		s.navigated("jump", false, err)
		return err
	}

	s.mu.Lock()
	_, err := s.ledger.JumpTo(index)
	s.mu.Unlock()
	if err != nil {
		s.navigated("jump", false, err)
		return err
	}

	s.navigated("jump", true, nil)
	s.publish(s.change(notify.KindJump, target.Description()))
	return nil
}

// restore replaces the subject with the state held by snap.
func (s *Snapshots[T]) restore(snap *snapshot.Snapshot[T]) error {
	if s.verify {
		if err := snap.Check(); err != nil {
			return s.integrityFailure(err)
		}
	}

	state, err := snap.Restore()
	if err != nil {
		return err
	}
	s.subject.Replace(state)

	if s.verify {
		if err := s.verifySubject(snap); err != nil {
			return s.integrityFailure(err)
		}
	}
	return nil
}

// Verify checks that the subject still matches the current snapshot.
// It returns an *snapshot.IntegrityError when the subject has drifted.
func (s *Snapshots[T]) Verify(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	s.mu.RLock()
	snap, ok := s.ledger.Current()
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	if err := snap.Check(); err != nil {
		return s.integrityFailure(err)
	}
	if err := s.verifySubject(snap); err != nil {
		return s.integrityFailure(err)
	}
	return nil
}

func (s *Snapshots[T]) verifySubject(snap *snapshot.Snapshot[T]) error {
	state := s.subject.State()
	if snap.Verify(state) {
		return nil
	}
	actual, err := snapshot.Fingerprint(state)
	if err != nil {
		actual = "unserializable"
	}
	return &snapshot.IntegrityError{
		Description: snap.Description(),
		Expected:    snap.Fingerprint(),
		Actual:      actual,
	}
}

func (s *Snapshots[T]) integrityFailure(err error) error {
	s.metrics.IntegrityFailure(s.name)
	s.logger.Error("snapshot integrity check failed", slog.Any("error", err))
	return err
}

// Clear discards all snapshots. The subject is left as is.
func (s *Snapshots[T]) Clear(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	s.mu.Lock()
	s.ledger.Clear()
	s.mu.Unlock()
	s.metrics.SetLength(s.name, 0)

	s.publish(notify.Change{Kind: notify.KindClear, Cursor: -1})
	return nil
}

// CanUndo returns true if an earlier snapshot can be restored.
func (s *Snapshots[T]) CanUndo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Cursor() > 0
}

// CanRedo returns true if redo is available.
func (s *Snapshots[T]) CanRedo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.CanRedo()
}

// History returns the recorded snapshots, oldest first.
func (s *Snapshots[T]) History() []ledger.Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.History()
}

// Len returns the number of recorded snapshots.
func (s *Snapshots[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Len()
}

// Cursor returns the index of the current snapshot, -1 if none.
func (s *Snapshots[T]) Cursor() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Cursor()
}

// Capacity returns the ledger capacity.
func (s *Snapshots[T]) Capacity() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Capacity()
}

// SetCapacity changes the ledger capacity, evicting the oldest snapshots
// if needed. It waits for any running verb to finish.
func (s *Snapshots[T]) SetCapacity(ctx context.Context, n int) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	s.mu.Lock()
	s.ledger.SetCapacity(n)
	length := s.ledger.Len()
	s.mu.Unlock()
	s.metrics.SetLength(s.name, length)
	s.logger.Info("capacity changed", slog.Int("capacity", n), slog.Int("length", length))
	return nil
}

// Snapshot returns the snapshot at index.
func (s *Snapshots[T]) Snapshot(index int) (*snapshot.Snapshot[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.At(index)
}

func (s *Snapshots[T]) change(kind notify.Kind, desc string) notify.Change {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return notify.Change{Kind: kind, Description: desc, Cursor: s.ledger.Cursor(), Length: s.ledger.Len()}
}
