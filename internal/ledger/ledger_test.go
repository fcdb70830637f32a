package ledger

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEntry struct {
	name string
	at   time.Time
}

func (e *testEntry) Description() string { return e.name }
func (e *testEntry) CreatedAt() time.Time { return e.at }

func entry(name string) *testEntry {
	return &testEntry{name: name, at: time.Now()}
}

func names(l *Ledger[*testEntry]) []string {
	var out []string
	for _, e := range l.Entries() {
		out = append(out, e.name)
	}
	return out
}

type countingObserver struct {
	appends   int
	evictions int
	pruned    int
}

func (o *countingObserver) Appended(int) { o.appends++ }
func (o *countingObserver) Evicted(n int) { o.evictions += n }
func (o *countingObserver) Pruned(n int) { o.pruned += n }

func TestNewDefaults(t *testing.T) {
	l := New[*testEntry](0)
	assert.Equal(t, DefaultCapacity, l.Capacity())
	assert.Equal(t, -1, l.Cursor())
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, StateEmpty, l.State())
}

func TestEmptyLedger(t *testing.T) {
	l := New[*testEntry](3)

	_, ok := l.Undo()
	assert.False(t, ok)
	_, ok = l.Redo()
	assert.False(t, ok)
	assert.False(t, l.CanUndo())
	assert.False(t, l.CanRedo())

	_, ok = l.Current()
	assert.False(t, ok)
	assert.Equal(t, -1, l.Cursor())
}

func TestAppendMovesCursorToHead(t *testing.T) {
	l := New[*testEntry](10)

	assert.Equal(t, 1, l.Append(entry("A")))
	assert.Equal(t, 2, l.Append(entry("B")))

	assert.Equal(t, 1, l.Cursor())
	assert.Equal(t, StateAtHead, l.State())
	assert.True(t, l.CanUndo())
	assert.False(t, l.CanRedo())
}

func TestUndoRedoOrder(t *testing.T) {
	l := New[*testEntry](10)
	l.Append(entry("A"))
	l.Append(entry("B"))

	e, ok := l.Undo()
	require.True(t, ok)
	assert.Equal(t, "B", e.name)
	assert.Equal(t, 0, l.Cursor())
	assert.Equal(t, StateAtMid, l.State())

	e, ok = l.Undo()
	require.True(t, ok)
	assert.Equal(t, "A", e.name)
	assert.Equal(t, -1, l.Cursor())

	_, ok = l.Undo()
	assert.False(t, ok)

	e, ok = l.Redo()
	require.True(t, ok)
	assert.Equal(t, "A", e.name)

	e, ok = l.Redo()
	require.True(t, ok)
	assert.Equal(t, "B", e.name)

	_, ok = l.Redo()
	assert.False(t, ok)
}

func TestBranchPruning(t *testing.T) {
	obs := &countingObserver{}
	l := New[*testEntry](10, WithObserver(obs))

	l.Append(entry("A"))
	l.Append(entry("B"))
	l.Undo()
	n := l.Append(entry("C"))

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"A", "C"}, names(l))
	assert.False(t, l.CanRedo())
	assert.Equal(t, 1, obs.pruned)
}

func TestPruneFromBeforeFirstEntry(t *testing.T) {
	l := New[*testEntry](10)
	l.Append(entry("A"))
	l.Append(entry("B"))
	l.Undo()
	l.Undo()

	l.Append(entry("C"))
	assert.Equal(t, []string{"C"}, names(l))
	assert.Equal(t, 0, l.Cursor())
}

func TestInterleavedPrunesRunIndependently(t *testing.T) {
	l := New[*testEntry](10)
	l.Append(entry("A"))
	l.Append(entry("B"))
	l.Append(entry("C"))
	l.Undo()
	l.Append(entry("D"))
	l.Undo()
	l.Undo()
	l.Append(entry("E"))

	assert.Equal(t, []string{"A", "E"}, names(l))
	assert.Equal(t, 1, l.Cursor())
}

func TestCapacityEviction(t *testing.T) {
	obs := &countingObserver{}
	l := New[*testEntry](3, WithObserver(obs))

	for _, n := range []string{"A", "B", "C", "D"} {
		l.Append(entry(n))
	}

	assert.Equal(t, 3, l.Len())
	assert.Equal(t, []string{"B", "C", "D"}, names(l))
	cur, ok := l.Current()
	require.True(t, ok)
	assert.Equal(t, "D", cur.name)
	assert.Equal(t, 1, obs.evictions)
	assert.Equal(t, 4, obs.appends)

	var undone []string
	for {
		e, ok := l.Undo()
		if !ok {
			break
		}
		undone = append(undone, e.name)
	}
	assert.Equal(t, []string{"D", "C", "B"}, undone)
}

func TestCapacityScenarioWithRewind(t *testing.T) {
	l := New[*testEntry](3)
	for _, n := range []string{"A", "B", "C", "D"} {
		l.Append(entry(n))
	}

	l.Undo()
	l.Undo()
	cur, ok := l.Current()
	require.True(t, ok)
	assert.Equal(t, "B", cur.name)

	l.Append(entry("E"))
	assert.Equal(t, []string{"B", "E"}, names(l))
	assert.False(t, l.CanRedo())
}

func TestJumpTo(t *testing.T) {
	l := New[*testEntry](10)
	l.Append(entry("A"))
	l.Append(entry("B"))
	l.Append(entry("C"))

	e, err := l.JumpTo(0)
	require.NoError(t, err)
	assert.Equal(t, "A", e.name)
	assert.Equal(t, 0, l.Cursor())
	assert.True(t, l.CanRedo())

	_, err = l.JumpTo(3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = l.JumpTo(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.Equal(t, 0, l.Cursor())
}

func TestClear(t *testing.T) {
	l := New[*testEntry](10)
	l.Append(entry("A"))
	l.Append(entry("B"))
	l.Clear()

	assert.Equal(t, 0, l.Len())
	assert.Equal(t, -1, l.Cursor())
	assert.Equal(t, StateEmpty, l.State())
	assert.False(t, l.CanUndo())
}

func TestSetCapacityShrink(t *testing.T) {
	tests := []struct {
		name       string
		undos      int
		capacity   int
		wantNames  []string
		wantCursor int
	}{
		{"cursor at head", 0, 2, []string{"C", "D"}, 1},
		{"cursor in middle", 2, 2, []string{"C", "D"}, -1},
		{"cursor on evicted entry", 3, 3, []string{"B", "C", "D"}, -1},
		{"no shrink needed", 0, 10, []string{"A", "B", "C", "D"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New[*testEntry](10)
			for _, n := range []string{"A", "B", "C", "D"} {
				l.Append(entry(n))
			}
			for i := 0; i < tt.undos; i++ {
				l.Undo()
			}

			l.SetCapacity(tt.capacity)
			assert.Equal(t, tt.wantNames, names(l))
			assert.Equal(t, tt.wantCursor, l.Cursor())
		})
	}
}

func TestHistoryProjection(t *testing.T) {
	l := New[*testEntry](10)
	l.Append(entry("A"))
	l.Append(entry("B"))
	l.Undo()

	h := l.History()
	require.Len(t, h, 2)
	assert.Equal(t, "A", h[0].Description)
	assert.True(t, h[0].IsCurrent)
	assert.False(t, h[1].IsCurrent)
	assert.Equal(t, 1, h[1].Index)
	assert.False(t, h[1].Timestamp.IsZero())
}

func TestPeek(t *testing.T) {
	l := New[*testEntry](10)
	l.Append(entry("A"))
	l.Append(entry("B"))
	l.Undo()

	u, ok := l.PeekUndo()
	require.True(t, ok)
	assert.Equal(t, "A", u.name)

	r, ok := l.PeekRedo()
	require.True(t, ok)
	assert.Equal(t, "B", r.name)
	assert.Equal(t, 0, l.Cursor())
}

func TestEntriesReturnsCopy(t *testing.T) {
	l := New[*testEntry](10)
	l.Append(entry("A"))

	entries := l.Entries()
	entries[0] = entry("X")

	got, _ := l.At(0)
	assert.Equal(t, "A", got.name)
}

// genSteps generates ledger calls: 0 append, 1 undo, 2 redo.
func genSteps() gopter.Gen {
	return gen.SliceOf(gen.IntRange(0, 2))
}

func TestLedgerInvariants_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("length and cursor stay within bounds", prop.ForAll(
		func(capacity int, steps []int) bool {
			l := New[*testEntry](capacity)
			for i, s := range steps {
				switch s {
				case 0:
					l.Append(entry(string(rune('a' + i%26))))
				case 1:
					l.Undo()
				case 2:
					l.Redo()
				}
				if l.Len() > l.Capacity() {
					return false
				}
				if l.Cursor() < -1 || l.Cursor() > l.Len()-1 {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 8),
		genSteps(),
	))

	properties.Property("undo then redo returns to the same entry", prop.ForAll(
		func(capacity int, steps []int) bool {
			l := New[*testEntry](capacity)
			for i, s := range steps {
				switch s {
				case 0:
					l.Append(entry(string(rune('a' + i%26))))
				case 1:
					l.Undo()
				case 2:
					l.Redo()
				}
			}
			before := l.Cursor()
			beforeEntry, hadEntry := l.Current()

			undone, ok := l.Undo()
			if !ok {
				return before == -1
			}
			redone, ok := l.Redo()
			if !ok || redone != undone {
				return false
			}
			after, _ := l.Current()
			return l.Cursor() == before && hadEntry && after == beforeEntry
		},
		gen.IntRange(1, 8),
		genSteps(),
	))

	properties.Property("append after undo leaves nothing to redo", prop.ForAll(
		func(capacity int, steps []int) bool {
			l := New[*testEntry](capacity)
			for i, s := range steps {
				if s == 0 {
					l.Append(entry(string(rune('a' + i%26))))
				} else {
					l.Undo()
				}
			}
			l.Append(entry("tail"))
			cur, ok := l.Current()
			return ok && cur.name == "tail" && !l.CanRedo() && l.State() == StateAtHead
		},
		gen.IntRange(1, 8),
		genSteps(),
	))

	properties.TestingRun(t)
}
