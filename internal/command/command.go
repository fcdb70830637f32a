// Package command defines reversible operations recorded in a history ledger.
//
// A Command is bound to its subject and parameters at construction.
// Execute applies the forward action and captures whatever is needed to
// reverse it; Undo applies the captured inverse. Redo is a second Execute,
// so commands fix any generated identity when they are built.
//
// Constructors validate their input and return a *ValidationError before
// anything is mutated, so a rejected action never reaches a ledger.
package command

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Command is a reversible action bound to a subject.
type Command interface {
	// Execute performs the action. It reports false when the target does
	// not exist, in which case nothing was changed.
	Execute(ctx context.Context) (bool, error)

	// Undo reverses the last successful Execute. It is a no-op if Execute
	// never succeeded.
	Undo(ctx context.Context) error

	// Description returns a human-readable description of the command.
	Description() string

	// CreatedAt returns when the command was constructed.
	CreatedAt() time.Time
}

// Meta carries the description and creation time shared by all commands.
type Meta struct {
	desc string
	at   time.Time
}

// NewMeta creates metadata stamped with the current time.
func NewMeta(description string) Meta {
	return Meta{desc: description, at: time.Now()}
}

// Description returns the description.
func (m Meta) Description() string {
	return m.desc
}

// CreatedAt returns the creation time.
func (m Meta) CreatedAt() time.Time {
	return m.at
}

// Func adapts a pair of closures into a Command.
type Func struct {
	Meta
	ExecuteFn func(ctx context.Context) (bool, error)
	UndoFn    func(ctx context.Context) error

	applied bool
}

// NewFunc creates a closure-backed command.
func NewFunc(description string, execute func(ctx context.Context) (bool, error), undo func(ctx context.Context) error) *Func {
	return &Func{
		Meta:      NewMeta(description),
		ExecuteFn: execute,
		UndoFn:    undo,
	}
}

// Execute runs the forward closure.
func (f *Func) Execute(ctx context.Context) (bool, error) {
	if f.ExecuteFn == nil {
		return false, errors.New("command has no execute function")
	}
	ok, err := f.ExecuteFn(ctx)
	if err != nil {
		return false, err
	}
	f.applied = ok
	return ok, nil
}

// Undo runs the inverse closure if the command was applied.
func (f *Func) Undo(ctx context.Context) error {
	if !f.applied || f.UndoFn == nil {
		return nil
	}
	if err := f.UndoFn(ctx); err != nil {
		return err
	}
	f.applied = false
	return nil
}

// Compound groups multiple commands as one undo unit.
type Compound struct {
	Meta
	Commands []Command
}

// NewCompound creates a compound command.
func NewCompound(name string, commands ...Command) *Compound {
	return &Compound{
		Meta:     NewMeta(name),
		Commands: commands,
	}
}

// Execute runs all commands in order. If a step fails or its target is
// missing, the steps already applied are undone and the compound reports
// the outcome of the failing step. Undo failures during that rollback are
// joined to the result and wrap ErrRollback.
func (c *Compound) Execute(ctx context.Context) (bool, error) {
	for i, cmd := range c.Commands {
		ok, err := cmd.Execute(ctx)
		if err == nil && ok {
			continue
		}
		if err != nil {
			err = fmt.Errorf("compound command '%s' step %d: %w", c.desc, i, err)
		}
		if rerr := c.rollback(ctx, i); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return false, err
	}
	return true, nil
}

// rollback undoes the first n commands in reverse order.
func (c *Compound) rollback(ctx context.Context, n int) error {
	var errs []error
	for j := n - 1; j >= 0; j-- {
		if err := c.Commands[j].Undo(ctx); err != nil {
			errs = append(errs, fmt.Errorf("step %d: %w", j, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("compound command '%s': %w: %w", c.desc, ErrRollback, errors.Join(errs...))
}

// Undo reverses all commands in reverse order.
func (c *Compound) Undo(ctx context.Context) error {
	for i := len(c.Commands) - 1; i >= 0; i-- {
		if err := c.Commands[i].Undo(ctx); err != nil {
			return fmt.Errorf("undo compound command '%s' step %d: %w", c.desc, i, err)
		}
	}
	return nil
}

// Description returns the compound command's name.
func (c *Compound) Description() string {
	if c.desc != "" {
		return c.desc
	}
	if len(c.Commands) == 1 {
		return c.Commands[0].Description()
	}
	return fmt.Sprintf("%d operations", len(c.Commands))
}

// Add adds a command to the compound command.
func (c *Compound) Add(cmd Command) {
	c.Commands = append(c.Commands, cmd)
}

// IsEmpty returns true if the compound command has no commands.
func (c *Compound) IsEmpty() bool {
	return len(c.Commands) == 0
}
