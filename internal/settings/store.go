// Package settings is a key/value configuration map with undo support
// backed by full-state snapshots.
//
// Values are normalized to their JSON form when stored, so numbers read
// back as float64 and structs as map[string]any. That keeps a value read
// before an undo identical to the same value read after it.
package settings

import (
	"maps"
	"slices"
	"sync"

	"github.com/dshills/undoledger/internal/snapshot"
)

// Store holds the current settings. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewStore creates a store seeded with initial.
func NewStore(initial map[string]any) (*Store, error) {
	values, err := normalize(initial)
	if err != nil {
		return nil, err
	}
	return &Store{values: values}, nil
}

// Get returns the value for key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, false
	}
	out, err := snapshot.Copy(v)
	if err != nil {
		return v, true
	}
	return out, true
}

// Keys returns the keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.values))
}

// Len returns the number of keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// State returns a deep copy of all settings.
func (s *Store) State() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out, err := snapshot.Copy(s.values)
	if err != nil {
		// Stored values are already normalized.
		return maps.Clone(s.values)
	}
	return out
}

// Replace swaps in state wholesale. The store takes ownership of the map.
func (s *Store) Replace(state map[string]any) {
	if state == nil {
		state = make(map[string]any)
	}
	s.mu.Lock()
	s.values = state
	s.mu.Unlock()
}

func (s *Store) set(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.values, values)
}

func (s *Store) delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return false
	}
	delete(s.values, key)
	return true
}

func (s *Store) reset() {
	s.mu.Lock()
	s.values = make(map[string]any)
	s.mu.Unlock()
}

// normalize deep-copies values into their JSON form.
func normalize(values map[string]any) (map[string]any, error) {
	if len(values) == 0 {
		return make(map[string]any), nil
	}
	out, err := snapshot.Copy(values)
	if err != nil {
		return nil, err
	}
	return out, nil
}
