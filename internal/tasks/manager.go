package tasks

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dshills/undoledger/internal/command"
	"github.com/dshills/undoledger/internal/ledger"
	"github.com/dshills/undoledger/internal/notify"
	"github.com/dshills/undoledger/internal/orchestrator"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type titleInput struct {
	Title string `json:"title" validate:"required,max=200"`
}

type priorityInput struct {
	Priority int `json:"priority" validate:"min=1,max=5"`
}

// Manager is the entry point for changing a task list with undo support.
type Manager struct {
	list    *List
	history *orchestrator.Commands
}

// NewManager creates a manager over an empty list.
func NewManager(opts ...orchestrator.Option) *Manager {
	return &Manager{
		list:    NewList(),
		history: orchestrator.NewCommands(append([]orchestrator.Option{orchestrator.WithName("tasks")}, opts...)...),
	}
}

// Add creates a task. Priority 0 selects DefaultPriority.
func (m *Manager) Add(ctx context.Context, title string, priority int) (Task, error) {
	if priority == 0 {
		priority = DefaultPriority
	}
	task := Task{
		ID:        uuid.New(),
		Title:     title,
		Priority:  priority,
		CreatedAt: time.Now(),
	}
	if err := validate.Struct(task); err != nil {
		return Task{}, command.FromValidator("add task", err)
	}

	cmd := NewAddCommand(m.list, task)
	if _, err := m.history.Do(ctx, cmd); err != nil {
		return Task{}, err
	}
	return cmd.Task(), nil
}

// Remove deletes a task. It reports false if the task does not exist.
func (m *Manager) Remove(ctx context.Context, id uuid.UUID) (bool, error) {
	return m.history.Do(ctx, NewRemoveCommand(m.list, id))
}

// Rename sets a task's title and returns the updated task.
func (m *Manager) Rename(ctx context.Context, id uuid.UUID, title string) (Task, bool, error) {
	if err := validate.Struct(titleInput{Title: title}); err != nil {
		return Task{}, false, command.FromValidator("rename task", err)
	}
	return m.apply(ctx, id, NewRenameCommand(m.list, id, title))
}

// SetPriority sets a task's priority and returns the updated task.
func (m *Manager) SetPriority(ctx context.Context, id uuid.UUID, priority int) (Task, bool, error) {
	if err := validate.Struct(priorityInput{Priority: priority}); err != nil {
		return Task{}, false, command.FromValidator("set priority", err)
	}
	return m.apply(ctx, id, NewPriorityCommand(m.list, id, priority))
}

// Toggle flips a task's done flag and returns the updated task.
func (m *Manager) Toggle(ctx context.Context, id uuid.UUID) (Task, bool, error) {
	return m.apply(ctx, id, NewToggleCommand(m.list, id))
}

func (m *Manager) apply(ctx context.Context, id uuid.UUID, cmd command.Command) (Task, bool, error) {
	ok, err := m.history.Do(ctx, cmd)
	if err != nil || !ok {
		return Task{}, false, err
	}
	t, _ := m.list.Get(id)
	return t, true, nil
}

// Undo reverses the most recent change.
func (m *Manager) Undo(ctx context.Context) (bool, error) {
	return m.history.Undo(ctx)
}

// Redo re-applies the most recently undone change.
func (m *Manager) Redo(ctx context.Context) (bool, error) {
	return m.history.Redo(ctx)
}

// JumpTo moves the list to the state right after history entry index.
func (m *Manager) JumpTo(ctx context.Context, index int) error {
	return m.history.JumpTo(ctx, index)
}

// Clear forgets the undo history. The tasks are kept.
func (m *Manager) Clear(ctx context.Context) error {
	return m.history.Clear(ctx)
}

// CanUndo returns true if undo is available.
func (m *Manager) CanUndo() bool { return m.history.CanUndo() }

// CanRedo returns true if redo is available.
func (m *Manager) CanRedo() bool { return m.history.CanRedo() }

// History returns the undo history, oldest first.
func (m *Manager) History() []ledger.Info { return m.history.History() }

// SetCapacity changes how many changes are remembered.
func (m *Manager) SetCapacity(ctx context.Context, n int) error {
	return m.history.SetCapacity(ctx, n)
}

// Subscribe registers a listener called after every change.
func (m *Manager) Subscribe(l notify.Listener) func() { return m.history.Subscribe(l) }

// Tasks returns all tasks in order.
func (m *Manager) Tasks() []Task { return m.list.All() }

// Get returns a task by ID.
func (m *Manager) Get(id uuid.UUID) (Task, bool) { return m.list.Get(id) }

// Find returns the first task with the given title.
func (m *Manager) Find(title string) (Task, bool) { return m.list.FindByTitle(title) }
