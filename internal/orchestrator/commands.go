package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dshills/undoledger/internal/command"
	"github.com/dshills/undoledger/internal/ledger"
	"github.com/dshills/undoledger/internal/notify"
)

// ErrNilCommand is returned when Do is called without a command.
var ErrNilCommand = errors.New("nil command")

// Commands records reversible commands applied to one subject.
type Commands struct {
	core
	ledger *ledger.Ledger[command.Command]
}

// NewCommands creates a command-backed orchestrator.
func NewCommands(opts ...Option) *Commands {
	o := defaultOptions("commands")
	for _, opt := range opts {
		opt(&o)
	}

	c := &Commands{}
	c.core.init(o)
	c.ledger = ledger.New[command.Command](o.capacity, c.ledgerOptions()...)
	return c
}

// Do executes cmd and records it. It reports false, with nothing
// recorded, when the command's target does not exist.
func (c *Commands) Do(ctx context.Context, cmd command.Command) (bool, error) {
	if cmd == nil {
		return false, ErrNilCommand
	}
	if err := c.acquire(ctx); err != nil {
		return false, err
	}
	defer c.release()

	ok, err := cmd.Execute(ctx)
	if err != nil {
		c.logger.Debug("command failed", slog.String("command", cmd.Description()), slog.Any("error", err))
		return false, err
	}
	if !ok {
		c.logger.Debug("command target not found", slog.String("command", cmd.Description()))
		return false, nil
	}

	c.mu.Lock()
	length := c.ledger.Append(cmd)
	cursor := c.ledger.Cursor()
	c.mu.Unlock()

	c.logger.Debug("command recorded", slog.String("command", cmd.Description()), slog.Int("length", length))
	c.publish(notify.Change{Kind: notify.KindDo, Description: cmd.Description(), Cursor: cursor, Length: length})
	return true, nil
}

// DoGroup executes cmds as a single undo unit named name.
func (c *Commands) DoGroup(ctx context.Context, name string, cmds ...command.Command) (bool, error) {
	if len(cmds) == 0 {
		return false, nil
	}
	return c.Do(ctx, command.NewCompound(name, cmds...))
}

// Undo reverses the current command. It reports false when there is
// nothing to undo.
func (c *Commands) Undo(ctx context.Context) (bool, error) {
	if err := c.acquire(ctx); err != nil {
		return false, err
	}
	defer c.release()

	desc, ok, err := c.undoStep(ctx)
	c.navigated("undo", ok, err)
	if err != nil || !ok {
		return false, err
	}
	c.publish(c.change(notify.KindUndo, desc))
	return true, nil
}

// Redo re-applies the next undone command. It reports false when there
// is nothing to redo.
func (c *Commands) Redo(ctx context.Context) (bool, error) {
	if err := c.acquire(ctx); err != nil {
		return false, err
	}
	defer c.release()

	desc, ok, err := c.redoStep(ctx)
	c.navigated("redo", ok, err)
	if err != nil || !ok {
		return false, err
	}
	c.publish(c.change(notify.KindRedo, desc))
	return true, nil
}

// JumpTo undoes or redoes commands one at a time until the command at
// index is the current one.
func (c *Commands) JumpTo(ctx context.Context, index int) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	c.mu.RLock()
	length := c.ledger.Len()
	c.mu.RUnlock()
	if index < 0 || index >= length {
		c.navigated("jump", false, nil)
		return fmt.Errorf("jump to %d of %d: %w", index, length, ledger.ErrIndexOutOfRange)
	}

	for {
		cursor := c.Cursor()
		var (
			ok  bool
			err error
		)
		switch {
		case cursor > index:
			_, ok, err = c.undoStep(ctx)
		case cursor < index:
			_, ok, err = c.redoStep(ctx)
		default:
			c.navigated("jump", true, nil)
			cur, _ := c.current()
			c.publish(c.change(notify.KindJump, cur))
			return nil
		}
		if err != nil {
			c.navigated("jump", false, err)
			return fmt.Errorf("jump to %d: %w", index, err)
		}
		if !ok {
			err = fmt.Errorf("jump to %d: stopped at %d", index, cursor)
			c.navigated("jump", false, err)
			return err
		}
	}
}

// Clear discards all recorded commands. The subject is left as is.
func (c *Commands) Clear(ctx context.Context) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	c.ledger.Clear()
	c.mu.Unlock()
	c.metrics.SetLength(c.name, 0)

	c.publish(notify.Change{Kind: notify.KindClear, Cursor: -1})
	return nil
}

// CanUndo returns true if undo is available.
func (c *Commands) CanUndo() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ledger.CanUndo()
}

// CanRedo returns true if redo is available.
func (c *Commands) CanRedo() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ledger.CanRedo()
}

// History returns the recorded commands, oldest first.
func (c *Commands) History() []ledger.Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ledger.History()
}

// Len returns the number of recorded commands.
func (c *Commands) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ledger.Len()
}

// Cursor returns the index of the current command, -1 if none.
func (c *Commands) Cursor() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ledger.Cursor()
}

// Capacity returns the ledger capacity.
func (c *Commands) Capacity() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ledger.Capacity()
}

// SetCapacity changes the ledger capacity, evicting the oldest commands
// if needed. It waits for any running verb to finish.
func (c *Commands) SetCapacity(ctx context.Context, n int) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	c.ledger.SetCapacity(n)
	length := c.ledger.Len()
	c.mu.Unlock()
	c.metrics.SetLength(c.name, length)
	c.logger.Info("capacity changed", slog.Int("capacity", n), slog.Int("length", length))
	return nil
}

// undoStep runs one undo. The caller holds the semaphore.
// The cursor moves only after the inverse succeeds.
func (c *Commands) undoStep(ctx context.Context) (string, bool, error) {
	c.mu.RLock()
	cmd, ok := c.ledger.PeekUndo()
	c.mu.RUnlock()
	if !ok {
		return "", false, nil
	}

	if err := cmd.Undo(ctx); err != nil {
		c.logger.Error("undo failed", slog.String("command", cmd.Description()), slog.Any("error", err))
		return "", false, fmt.Errorf("undo %q: %w", cmd.Description(), err)
	}

	c.mu.Lock()
	c.ledger.Undo()
	c.mu.Unlock()
	return cmd.Description(), true, nil
}

// redoStep runs one redo. The caller holds the semaphore.
func (c *Commands) redoStep(ctx context.Context) (string, bool, error) {
	c.mu.RLock()
	cmd, ok := c.ledger.PeekRedo()
	c.mu.RUnlock()
	if !ok {
		return "", false, nil
	}

	applied, err := cmd.Execute(ctx)
	if err != nil {
		c.logger.Error("redo failed", slog.String("command", cmd.Description()), slog.Any("error", err))
		return "", false, fmt.Errorf("redo %q: %w", cmd.Description(), err)
	}
	if !applied {
		c.logger.Warn("redo target not found", slog.String("command", cmd.Description()))
		return "", false, nil
	}

	c.mu.Lock()
	c.ledger.Redo()
	c.mu.Unlock()
	return cmd.Description(), true, nil
}

func (c *Commands) current() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cmd, ok := c.ledger.Current()
	if !ok {
		return "", false
	}
	return cmd.Description(), true
}

func (c *Commands) change(kind notify.Kind, desc string) notify.Change {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return notify.Change{Kind: kind, Description: desc, Cursor: c.ledger.Cursor(), Length: c.ledger.Len()}
}
