package snapshot

import (
	"errors"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name   string
	Tags   []string
	Fields map[string]int
	Child  *record
}

func TestCaptureRestore(t *testing.T) {
	state := record{
		Name:   "alpha",
		Tags:   []string{"a", "b"},
		Fields: map[string]int{"x": 1},
		Child:  &record{Name: "beta"},
	}

	snap, err := Capture(state, "first")
	require.NoError(t, err)
	assert.Equal(t, "first", snap.Description())
	assert.False(t, snap.CreatedAt().IsZero())
	assert.True(t, strings.HasPrefix(snap.Fingerprint(), fingerprintPrefix))
	assert.Positive(t, snap.Size())

	got, err := snap.Restore()
	require.NoError(t, err)
	assert.Equal(t, state, got)
}

func TestRestoreReturnsFreshCopy(t *testing.T) {
	snap, err := Capture(record{Tags: []string{"a"}, Fields: map[string]int{"x": 1}}, "s")
	require.NoError(t, err)

	first, err := snap.Restore()
	require.NoError(t, err)
	first.Tags[0] = "mutated"
	first.Fields["x"] = 99

	second, err := snap.Restore()
	require.NoError(t, err)
	assert.Equal(t, "a", second.Tags[0])
	assert.Equal(t, 1, second.Fields["x"])
}

func TestCaptureIsDefensiveCopy(t *testing.T) {
	state := map[string]any{"theme": "dark", "tabs": []any{"a"}}
	snap, err := Capture(state, "settings")
	require.NoError(t, err)

	state["theme"] = "light"
	state["tabs"].([]any)[0] = "z"

	got, err := snap.Restore()
	require.NoError(t, err)
	assert.Equal(t, "dark", got["theme"])
	assert.Equal(t, []any{"a"}, got["tabs"])
	assert.True(t, snap.Verify(got))
	assert.False(t, snap.Verify(state))
}

func TestCaptureRejectsCycles(t *testing.T) {
	m := map[string]any{}
	m["self"] = m

	_, err := Capture(m, "cyclic")
	assert.ErrorIs(t, err, ErrSerialization)

	r := &record{Name: "loop"}
	r.Child = r
	_, err = Capture(r, "cyclic pointer")
	assert.ErrorIs(t, err, ErrSerialization)
}

func TestCaptureRejectsUnsupportedValues(t *testing.T) {
	_, err := Capture(map[string]any{"ch": make(chan int)}, "chan")
	assert.ErrorIs(t, err, ErrSerialization)
}

func TestCheckDetectsDrift(t *testing.T) {
	snap, err := Capture(map[string]string{"k": "v"}, "drift")
	require.NoError(t, err)
	require.NoError(t, snap.Check())

	snap.data[len(snap.data)-2] = 'X'

	err = snap.Check()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIntegrity))

	var ie *IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "drift", ie.Description)
	assert.NotEqual(t, ie.Expected, ie.Actual)
}

func TestFingerprintIsStable(t *testing.T) {
	a, err := Fingerprint(map[string]int{"a": 1, "b": 2, "c": 3})
	require.NoError(t, err)
	b, err := Fingerprint(map[string]int{"c": 3, "b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Fingerprint(map[string]int{"a": 1, "b": 2, "c": 4})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestCopy(t *testing.T) {
	src := record{Name: "n", Tags: []string{"x"}}
	dst, err := Copy(src)
	require.NoError(t, err)
	dst.Tags[0] = "y"
	assert.Equal(t, "x", src.Tags[0])

	m := map[string]any{}
	m["self"] = m
	_, err = Copy(m)
	assert.ErrorIs(t, err, ErrSerialization)
}

func TestSnapshotIntegrity_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("restore verifies and is unaffected by later mutation", prop.ForAll(
		func(keys []string, values []string) bool {
			state := make(map[string]string)
			for i, k := range keys {
				if i < len(values) {
					state[k] = values[i]
				}
			}
			snap, err := Capture(state, "prop")
			if err != nil {
				return false
			}

			restored, err := snap.Restore()
			if err != nil || !snap.Verify(restored) {
				return false
			}

			for k := range state {
				state[k] = state[k] + "-changed"
			}
			state["__added"] = "x"

			again, err := snap.Restore()
			if err != nil {
				return false
			}
			if _, ok := again["__added"]; ok {
				return false
			}
			return snap.Verify(again) && !snap.Verify(state)
		},
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
