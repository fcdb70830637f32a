// Package tasks is a keyed task list whose changes can be undone.
//
// The List is the subject. It is read by anyone but changed only through
// the commands in this package, which a Manager runs through a
// command-backed orchestrator so every change lands in the undo history.
package tasks

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Priority bounds.
const (
	MinPriority     = 1
	MaxPriority     = 5
	DefaultPriority = 3
)

// Task is a single to-do item.
type Task struct {
	ID        uuid.UUID `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title" validate:"required,max=200"`
	Priority  int       `json:"priority" yaml:"priority" validate:"min=1,max=5"`
	Done      bool      `json:"done" yaml:"done"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// List is an ordered collection of tasks keyed by ID.
// It is safe for concurrent use.
type List struct {
	mu    sync.RWMutex
	order []uuid.UUID
	items map[uuid.UUID]Task
}

// NewList creates an empty list.
func NewList() *List {
	return &List{items: make(map[uuid.UUID]Task)}
}

// Get returns the task with the given ID.
func (l *List) Get(id uuid.UUID) (Task, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.items[id]
	return t, ok
}

// All returns the tasks in list order.
func (l *List) All() []Task {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Task, len(l.order))
	for i, id := range l.order {
		out[i] = l.items[id]
	}
	return out
}

// Len returns the number of tasks.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

// IndexOf returns the position of the task, or -1.
func (l *List) IndexOf(id uuid.UUID) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Index(l.order, id)
}

// FindByTitle returns the first task with the given title.
func (l *List) FindByTitle(title string) (Task, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, id := range l.order {
		if t := l.items[id]; t.Title == title {
			return t, true
		}
	}
	return Task{}, false
}

// insert places t at index, clamped to the list bounds.
// It reports false if a task with the same ID already exists.
func (l *List) insert(index int, t Task) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.items[t.ID]; exists {
		return false
	}
	index = max(0, min(index, len(l.order)))
	l.order = slices.Insert(l.order, index, t.ID)
	l.items[t.ID] = t
	return true
}

// remove deletes the task and returns it with its former position.
func (l *List) remove(id uuid.UUID) (Task, int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.items[id]
	if !ok {
		return Task{}, -1, false
	}
	index := slices.Index(l.order, id)
	l.order = slices.Delete(l.order, index, index+1)
	delete(l.items, id)
	return t, index, true
}

// update applies fn to the task and returns the task before and after.
func (l *List) update(id uuid.UUID, fn func(*Task)) (before, after Task, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.items[id]
	if !ok {
		return Task{}, Task{}, false
	}
	before = t
	fn(&t)
	l.items[id] = t
	return before, t, true
}
