package settings

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dshills/undoledger/internal/command"
	"github.com/dshills/undoledger/internal/ledger"
	"github.com/dshills/undoledger/internal/notify"
	"github.com/dshills/undoledger/internal/orchestrator"
)

const keyRules = "required,max=128,excludesall= \t\n"

var validate = validator.New()

// errMissing aborts a mutation whose key does not exist.
var errMissing = errors.New("setting not found")

// Manager changes a Store and records a snapshot after each change.
type Manager struct {
	store   *Store
	history *orchestrator.Snapshots[map[string]any]
}

// NewManager creates a manager seeded with initial. The initial state is
// recorded as the first snapshot so the first change can be undone.
func NewManager(initial map[string]any, opts ...orchestrator.Option) (*Manager, error) {
	store, err := NewStore(initial)
	if err != nil {
		return nil, fmt.Errorf("seed settings: %w", err)
	}
	base := []orchestrator.Option{
		orchestrator.WithName("settings"),
		orchestrator.WithBaseline("initial"),
	}
	history, err := orchestrator.NewSnapshots[map[string]any](store, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	return &Manager{store: store, history: history}, nil
}

// Set stores value under key.
func (m *Manager) Set(ctx context.Context, key string, value any) error {
	if err := validateKey("set setting", key); err != nil {
		return err
	}
	values, err := normalize(map[string]any{key: value})
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return m.history.Mutate(ctx, "set "+key, func(context.Context) error {
		m.store.set(values)
		return nil
	})
}

// Delete removes key. It reports false if the key does not exist.
func (m *Manager) Delete(ctx context.Context, key string) (bool, error) {
	if err := validateKey("delete setting", key); err != nil {
		return false, err
	}
	err := m.history.Mutate(ctx, "delete "+key, func(context.Context) error {
		if !m.store.delete(key) {
			return errMissing
		}
		return nil
	})
	if errors.Is(err, errMissing) {
		return false, nil
	}
	return err == nil, err
}

// Merge stores all values as one change.
func (m *Manager) Merge(ctx context.Context, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	keys := slices.Sorted(maps.Keys(values))
	for _, key := range keys {
		if err := validateKey("merge settings", key); err != nil {
			return err
		}
	}
	normalized, err := normalize(values)
	if err != nil {
		return fmt.Errorf("merge settings: %w", err)
	}
	return m.history.Mutate(ctx, "merge "+strings.Join(keys, ", "), func(context.Context) error {
		m.store.set(normalized)
		return nil
	})
}

// Reset removes every setting.
func (m *Manager) Reset(ctx context.Context) error {
	return m.history.Mutate(ctx, "reset", func(context.Context) error {
		m.store.reset()
		return nil
	})
}

// Checkpoint records the current settings under name without changing them.
func (m *Manager) Checkpoint(ctx context.Context, name string) error {
	if name == "" {
		return command.Invalid("checkpoint", "name", "required", name, "name is required")
	}
	return m.history.Save(ctx, name)
}

// Undo restores the previous snapshot.
func (m *Manager) Undo(ctx context.Context) (bool, error) {
	return m.history.Undo(ctx)
}

// Redo restores the next snapshot.
func (m *Manager) Redo(ctx context.Context) (bool, error) {
	return m.history.Redo(ctx)
}

// JumpTo restores the snapshot at index.
func (m *Manager) JumpTo(ctx context.Context, index int) error {
	return m.history.JumpTo(ctx, index)
}

// Verify checks the settings against the current snapshot.
func (m *Manager) Verify(ctx context.Context) error {
	return m.history.Verify(ctx)
}

// Clear forgets the snapshot history. The settings are kept.
func (m *Manager) Clear(ctx context.Context) error {
	return m.history.Clear(ctx)
}

// CanUndo returns true if undo is available.
func (m *Manager) CanUndo() bool { return m.history.CanUndo() }

// CanRedo returns true if redo is available.
func (m *Manager) CanRedo() bool { return m.history.CanRedo() }

// History returns the snapshot history, oldest first.
func (m *Manager) History() []ledger.Info { return m.history.History() }

// SetCapacity changes how many snapshots are kept.
func (m *Manager) SetCapacity(ctx context.Context, n int) error {
	return m.history.SetCapacity(ctx, n)
}

// Subscribe registers a listener called after every change.
func (m *Manager) Subscribe(l notify.Listener) func() { return m.history.Subscribe(l) }

// Get returns the value for key.
func (m *Manager) Get(key string) (any, bool) { return m.store.Get(key) }

// All returns a copy of every setting.
func (m *Manager) All() map[string]any { return m.store.State() }

func validateKey(action, key string) error {
	err := validate.Var(key, keyRules)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	rule := verrs[0].Tag()
	var msg string
	switch rule {
	case "required":
		msg = "key is required"
	case "max":
		msg = "key must be at most 128 characters"
	default:
		msg = "key must not contain whitespace"
	}
	return command.Invalid(action, "key", rule, key, msg)
}
