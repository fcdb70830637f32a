// Package notify delivers history change notifications to listeners.
//
// The Notifier implements an observer pattern. Each listener runs in
// isolation: a returned error or a panic is captured and reported back to
// the caller, and the remaining listeners still run.
package notify

import (
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
)

// Kind identifies what happened to the history.
type Kind int

const (
	// KindDo indicates a new action was applied and recorded.
	KindDo Kind = iota

	// KindUndo indicates the current entry was reversed.
	KindUndo

	// KindRedo indicates an undone entry was applied again.
	KindRedo

	// KindJump indicates the cursor moved to an arbitrary entry.
	KindJump

	// KindClear indicates the history was cleared.
	KindClear

	// KindSave indicates a snapshot was recorded without a mutation.
	KindSave
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindDo:
		return "do"
	case KindUndo:
		return "undo"
	case KindRedo:
		return "redo"
	case KindJump:
		return "jump"
	case KindClear:
		return "clear"
	case KindSave:
		return "save"
	default:
		return "unknown"
	}
}

// Change describes a completed mutation.
type Change struct {
	// Kind is the type of change.
	Kind Kind

	// Description is the description of the entry involved. Empty for clears.
	Description string

	// Cursor is the ledger cursor after the change.
	Cursor int

	// Length is the ledger length after the change.
	Length int
}

// Listener is called after each successful mutation.
type Listener func(change Change) error

// ListenerError reports a listener that failed or panicked.
type ListenerError struct {
	ID       uint64
	Err      error
	Panicked bool
	Stack    []byte
}

// Error implements the error interface.
func (e *ListenerError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("listener %d panicked: %v", e.ID, e.Err)
	}
	return fmt.Sprintf("listener %d: %v", e.ID, e.Err)
}

// Unwrap returns the underlying error.
func (e *ListenerError) Unwrap() error {
	return e.Err
}

// Notifier manages listener subscriptions.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[uint64]Listener
	nextID    uint64
}

// New creates a new Notifier.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[uint64]Listener),
	}
}

// Subscribe registers a listener and returns a function that removes it.
func (n *Notifier) Subscribe(listener Listener) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = listener
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { n.unsubscribe(id) })
	}
}

// Count returns the number of registered listeners.
func (n *Notifier) Count() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}

// Notify delivers change to every listener in subscription order and
// returns the failures. Listeners are called outside the lock.
func (n *Notifier) Notify(change Change) []*ListenerError {
	n.mu.RLock()
	ids := make([]uint64, 0, len(n.listeners))
	for id := range n.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	listeners := make([]Listener, len(ids))
	for i, id := range ids {
		listeners[i] = n.listeners[id]
	}
	n.mu.RUnlock()

	var failures []*ListenerError
	for i, l := range listeners {
		if lerr := deliver(ids[i], l, change); lerr != nil {
			failures = append(failures, lerr)
		}
	}
	return failures
}

func deliver(id uint64, l Listener, change Change) (lerr *ListenerError) {
	defer func() {
		if r := recover(); r != nil {
			lerr = &ListenerError{
				ID:       id,
				Err:      fmt.Errorf("%v", r),
				Panicked: true,
				Stack:    debug.Stack(),
			}
		}
	}()

	if err := l(change); err != nil {
		return &ListenerError{ID: id, Err: err}
	}
	return nil
}

func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.listeners, id)
}
