package ledger

import (
	"errors"
	"fmt"
	"time"
)

// DefaultCapacity is used when a non-positive capacity is requested.
const DefaultCapacity = 100

// ErrIndexOutOfRange indicates a jump target outside the recorded history.
var ErrIndexOutOfRange = errors.New("history index out of range")

// Entry is a single recorded item. Entries of one ledger share a type.
type Entry interface {
	// Description returns a human-readable label for history display.
	Description() string

	// CreatedAt returns when the entry was recorded.
	CreatedAt() time.Time
}

// State describes where the cursor sits relative to the recorded entries.
type State int

const (
	// StateEmpty means nothing has been recorded.
	StateEmpty State = iota
	// StateAtHead means the cursor is on the newest entry.
	StateAtHead
	// StateAtMid means there are entries after the cursor that can be
	// redone, including a cursor of -1 after everything was undone.
	StateAtMid
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateAtHead:
		return "at-head"
	case StateAtMid:
		return "at-mid"
	default:
		return "unknown"
	}
}

// Info is a read-only projection of one entry for display and audit.
type Info struct {
	Index       int       `json:"index" yaml:"index"`
	Description string    `json:"description" yaml:"description"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
	IsCurrent   bool      `json:"is_current" yaml:"is_current"`
}

// Observer receives structural notifications from a ledger.
type Observer interface {
	// Appended is called after an entry is added.
	Appended(length int)
	// Evicted is called for each entry removed to respect capacity.
	Evicted(count int)
	// Pruned is called with the number of future entries discarded by an append.
	Pruned(count int)
}

// Option configures a Ledger.
type Option func(*options)

type options struct {
	observer Observer
}

// WithObserver attaches an observer for appends, evictions and prunes.
func WithObserver(o Observer) Option {
	return func(opts *options) {
		opts.observer = o
	}
}

// Ledger is an ordered, cursor-addressed history with a capacity bound.
type Ledger[E Entry] struct {
	entries  []E
	cursor   int
	capacity int
	observer Observer
}

// New creates an empty ledger. A non-positive capacity selects DefaultCapacity.
func New[E Entry](capacity int, opts ...Option) *Ledger[E] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Ledger[E]{
		cursor:   -1,
		capacity: capacity,
		observer: o.observer,
	}
}

// Append records an entry at the cursor and returns the new length.
// Entries after the cursor are discarded first.
func (l *Ledger[E]) Append(e E) int {
	if l.cursor < len(l.entries)-1 {
		pruned := len(l.entries) - 1 - l.cursor
		clear(l.entries[l.cursor+1:])
		l.entries = l.entries[:l.cursor+1]
		if l.observer != nil {
			l.observer.Pruned(pruned)
		}
	}

	l.entries = append(l.entries, e)
	l.cursor = len(l.entries) - 1

	if len(l.entries) > l.capacity {
		l.evictOldest()
		if l.observer != nil {
			l.observer.Evicted(1)
		}
	}

	if l.observer != nil {
		l.observer.Appended(len(l.entries))
	}
	return len(l.entries)
}

// evictOldest drops index 0. A cursor on index 0 becomes -1.
func (l *Ledger[E]) evictOldest() {
	var zero E
	l.entries[0] = zero
	l.entries = l.entries[1:]
	if l.cursor >= 0 {
		l.cursor--
	}
}

// Undo returns the entry at the cursor and moves the cursor back one step.
// It reports false when there is nothing to undo.
func (l *Ledger[E]) Undo() (E, bool) {
	var zero E
	if l.cursor < 0 {
		return zero, false
	}
	e := l.entries[l.cursor]
	l.cursor--
	return e, true
}

// Redo moves the cursor forward one step and returns the entry there.
// It reports false when there is nothing to redo.
func (l *Ledger[E]) Redo() (E, bool) {
	var zero E
	if l.cursor >= len(l.entries)-1 {
		return zero, false
	}
	l.cursor++
	return l.entries[l.cursor], true
}

// JumpTo moves the cursor to index and returns the entry there.
func (l *Ledger[E]) JumpTo(index int) (E, error) {
	var zero E
	if index < 0 || index >= len(l.entries) {
		return zero, fmt.Errorf("jump to %d of %d: %w", index, len(l.entries), ErrIndexOutOfRange)
	}
	l.cursor = index
	return l.entries[index], nil
}

// Clear removes all entries.
func (l *Ledger[E]) Clear() {
	clear(l.entries)
	l.entries = nil
	l.cursor = -1
}

// SetCapacity changes the capacity bound.
// If the ledger holds more entries, the oldest are evicted one at a time.
func (l *Ledger[E]) SetCapacity(capacity int) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l.capacity = capacity

	evicted := 0
	for len(l.entries) > l.capacity {
		l.evictOldest()
		evicted++
	}
	if evicted > 0 && l.observer != nil {
		l.observer.Evicted(evicted)
	}
}

// Capacity returns the capacity bound.
func (l *Ledger[E]) Capacity() int {
	return l.capacity
}

// Len returns the number of recorded entries.
func (l *Ledger[E]) Len() int {
	return len(l.entries)
}

// Cursor returns the cursor position, -1 when there is no current entry.
func (l *Ledger[E]) Cursor() int {
	return l.cursor
}

// State returns the cursor state.
func (l *Ledger[E]) State() State {
	switch {
	case len(l.entries) == 0:
		return StateEmpty
	case l.cursor < len(l.entries)-1:
		return StateAtMid
	default:
		return StateAtHead
	}
}

// CanUndo returns true if Undo would succeed.
func (l *Ledger[E]) CanUndo() bool {
	return l.cursor >= 0
}

// CanRedo returns true if Redo would succeed.
func (l *Ledger[E]) CanRedo() bool {
	return l.cursor < len(l.entries)-1
}

// Current returns the entry at the cursor.
func (l *Ledger[E]) Current() (E, bool) {
	return l.At(l.cursor)
}

// PeekUndo returns the entry the next Undo would return, without moving.
func (l *Ledger[E]) PeekUndo() (E, bool) {
	return l.At(l.cursor)
}

// PeekRedo returns the entry the next Redo would return, without moving.
func (l *Ledger[E]) PeekRedo() (E, bool) {
	return l.At(l.cursor + 1)
}

// At returns the entry at index.
func (l *Ledger[E]) At(index int) (E, bool) {
	var zero E
	if index < 0 || index >= len(l.entries) {
		return zero, false
	}
	return l.entries[index], true
}

// Entries returns a copy of the recorded entries, oldest first.
func (l *Ledger[E]) Entries() []E {
	result := make([]E, len(l.entries))
	copy(result, l.entries)
	return result
}

// History returns a display projection of the recorded entries, oldest first.
func (l *Ledger[E]) History() []Info {
	result := make([]Info, len(l.entries))
	for i, e := range l.entries {
		result[i] = Info{
			Index:       i,
			Description: e.Description(),
			Timestamp:   e.CreatedAt(),
			IsCurrent:   i == l.cursor,
		}
	}
	return result
}
