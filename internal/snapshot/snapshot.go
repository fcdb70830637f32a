// Package snapshot captures immutable, fingerprinted copies of subject state.
//
// A Snapshot stores the serialized form of the state it was given. Every
// Restore decodes a fresh copy, so nothing handed out by a snapshot can
// alter what it holds. The fingerprint is an xxhash64 digest of the
// serialized form; it detects drift, not tampering.
//
// State must be serializable as JSON: exported fields only, no channels or
// functions, and no cycles. A cycle is reported as ErrSerialization.
package snapshot

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

// fingerprintPrefix names the digest algorithm in rendered fingerprints.
const fingerprintPrefix = "xxh64:"

var (
	// ErrSerialization indicates state that cannot be deep-copied.
	ErrSerialization = errors.New("state cannot be serialized")

	// ErrIntegrity indicates a fingerprint mismatch.
	ErrIntegrity = errors.New("snapshot integrity check failed")
)

// IntegrityError reports a snapshot whose fingerprint no longer matches.
type IntegrityError struct {
	Description string
	Expected    string
	Actual      string
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	return fmt.Sprintf("snapshot %q: fingerprint %s does not match %s", e.Description, e.Actual, e.Expected)
}

// Unwrap returns ErrIntegrity.
func (e *IntegrityError) Unwrap() error {
	return ErrIntegrity
}

// Snapshot is an immutable copy of state of type T.
type Snapshot[T any] struct {
	data        []byte
	fingerprint string
	description string
	timestamp   time.Time
}

// Capture serializes state and returns a snapshot of it.
func Capture[T any](state T, description string) (*Snapshot[T], error) {
	data, err := encode(state)
	if err != nil {
		return nil, err
	}
	s := &Snapshot[T]{
		data:        data,
		fingerprint: digest(data),
		description: description,
		timestamp:   time.Now(),
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	return s, nil
}

// Restore returns a fresh deep copy of the captured state.
func (s *Snapshot[T]) Restore() (T, error) {
	var out T
	if err := json.Unmarshal(s.data, &out); err != nil {
		return out, fmt.Errorf("restore snapshot %q: %w", s.description, err)
	}
	return out, nil
}

// Verify reports whether candidate has the same fingerprint as the
// captured state. State that cannot be serialized never matches.
func (s *Snapshot[T]) Verify(candidate T) bool {
	fp, err := Fingerprint(candidate)
	if err != nil {
		return false
	}
	return fp == s.fingerprint
}

// Check recomputes the fingerprint of the stored state.
func (s *Snapshot[T]) Check() error {
	actual := digest(s.data)
	if actual != s.fingerprint {
		return &IntegrityError{
			Description: s.description,
			Expected:    s.fingerprint,
			Actual:      actual,
		}
	}
	return nil
}

// Fingerprint returns the stored fingerprint.
func (s *Snapshot[T]) Fingerprint() string {
	return s.fingerprint
}

// Description returns the snapshot description.
func (s *Snapshot[T]) Description() string {
	return s.description
}

// CreatedAt returns when the snapshot was captured.
func (s *Snapshot[T]) CreatedAt() time.Time {
	return s.timestamp
}

// Size returns the size of the serialized state in bytes.
func (s *Snapshot[T]) Size() int {
	return len(s.data)
}

// Fingerprint computes the fingerprint of any serializable value.
func Fingerprint(v any) (string, error) {
	data, err := encode(v)
	if err != nil {
		return "", err
	}
	return digest(data), nil
}

// Copy returns a structural deep copy of v.
func Copy[T any](v T) (T, error) {
	var out T
	data, err := encode(v)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return out, nil
}

// encode serializes v deterministically. Map keys are sorted by the encoder.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func digest(data []byte) string {
	var sum [8]byte
	h := xxhash.Sum64(data)
	for i := 7; i >= 0; i-- {
		sum[i] = byte(h)
		h >>= 8
	}
	return fingerprintPrefix + hex.EncodeToString(sum[:])
}
