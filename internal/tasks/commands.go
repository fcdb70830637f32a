package tasks

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dshills/undoledger/internal/command"
)

// AddCommand appends a new task.
type AddCommand struct {
	command.Meta
	list *List
	task Task

	applied bool
}

// NewAddCommand creates a command that adds task to list. The task ID is
// fixed here so redo re-adds the same task.
func NewAddCommand(list *List, task Task) *AddCommand {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	return &AddCommand{
		Meta: command.NewMeta(fmt.Sprintf("add %q", task.Title)),
		list: list,
		task: task,
	}
}

// Execute appends the task.
func (c *AddCommand) Execute(context.Context) (bool, error) {
	if !c.list.insert(c.list.Len(), c.task) {
		return false, fmt.Errorf("add task %s: duplicate id", c.task.ID)
	}
	c.applied = true
	return true, nil
}

// Undo removes the added task. It does nothing unless Execute added it.
func (c *AddCommand) Undo(context.Context) error {
	if !c.applied {
		return nil
	}
	if _, _, ok := c.list.remove(c.task.ID); !ok {
		return fmt.Errorf("undo add task %s: task missing", c.task.ID)
	}
	c.applied = false
	return nil
}

// Task returns the task this command adds.
func (c *AddCommand) Task() Task {
	return c.task
}

// RemoveCommand deletes a task.
type RemoveCommand struct {
	command.Meta
	list *List
	id   uuid.UUID

	removed Task
	index   int
	applied bool
}

// NewRemoveCommand creates a command that removes the task with id.
func NewRemoveCommand(list *List, id uuid.UUID) *RemoveCommand {
	return &RemoveCommand{
		Meta: command.NewMeta(describe("remove", list, id)),
		list: list,
		id:   id,
	}
}

// Execute removes the task. It reports false if the task does not exist.
func (c *RemoveCommand) Execute(context.Context) (bool, error) {
	t, index, ok := c.list.remove(c.id)
	if !ok {
		return false, nil
	}
	c.removed, c.index, c.applied = t, index, true
	return true, nil
}

// Undo puts the task back at its former position.
func (c *RemoveCommand) Undo(context.Context) error {
	if !c.applied {
		return nil
	}
	if !c.list.insert(c.index, c.removed) {
		return fmt.Errorf("restore task %s: duplicate id", c.id)
	}
	c.applied = false
	return nil
}

// updateCommand changes one task in place and remembers its prior value.
type updateCommand struct {
	command.Meta
	list  *List
	id    uuid.UUID
	apply func(*Task)

	before  Task
	applied bool
}

// Execute applies the change. It reports false if the task does not exist.
func (c *updateCommand) Execute(context.Context) (bool, error) {
	before, _, ok := c.list.update(c.id, c.apply)
	if !ok {
		return false, nil
	}
	c.before, c.applied = before, true
	return true, nil
}

// Undo restores the task's prior value.
func (c *updateCommand) Undo(context.Context) error {
	if !c.applied {
		return nil
	}
	before := c.before
	if _, _, ok := c.list.update(c.id, func(t *Task) { *t = before }); !ok {
		return fmt.Errorf("undo %s: task %s missing", c.Description(), c.id)
	}
	c.applied = false
	return nil
}

// NewRenameCommand creates a command that sets a task's title.
func NewRenameCommand(list *List, id uuid.UUID, title string) command.Command {
	return &updateCommand{
		Meta:  command.NewMeta(fmt.Sprintf("%s to %q", describe("rename", list, id), title)),
		list:  list,
		id:    id,
		apply: func(t *Task) { t.Title = title },
	}
}

// NewPriorityCommand creates a command that sets a task's priority.
func NewPriorityCommand(list *List, id uuid.UUID, priority int) command.Command {
	return &updateCommand{
		Meta:  command.NewMeta(fmt.Sprintf("%s to %d", describe("set priority of", list, id), priority)),
		list:  list,
		id:    id,
		apply: func(t *Task) { t.Priority = priority },
	}
}

// NewToggleCommand creates a command that flips a task's done flag.
func NewToggleCommand(list *List, id uuid.UUID) command.Command {
	return &updateCommand{
		Meta:  command.NewMeta(describe("toggle", list, id)),
		list:  list,
		id:    id,
		apply: func(t *Task) { t.Done = !t.Done },
	}
}

func describe(verb string, list *List, id uuid.UUID) string {
	if t, ok := list.Get(id); ok {
		return fmt.Sprintf("%s %q", verb, t.Title)
	}
	return fmt.Sprintf("%s %s", verb, id)
}
