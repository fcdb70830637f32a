// Package ledger provides a bounded, cursor-addressed history of reversible
// entries.
//
// A Ledger holds an ordered sequence of entries and a cursor pointing at
// the entry that represents the current state. Key behaviors:
//
// # Cursor
//
// The cursor ranges from -1 (no history yet) to Len()-1. Undo returns the
// entry at the cursor and moves it back; Redo moves it forward and returns
// the entry it lands on.
//
// # Branch Pruning
//
// Appending while the cursor sits before the head discards every entry
// after the cursor first. The discarded future cannot be redone.
//
//	l := ledger.New[*entry](100)
//	l.Append(a)
//	l.Append(b)
//	l.Undo()
//	l.Append(c) // history is now [a, c]
//
// # Capacity
//
// When an append would exceed the capacity the single oldest entry is
// evicted and the cursor shifts down by one.
//
// A Ledger is not safe for concurrent use. Its owner serializes access.
package ledger
