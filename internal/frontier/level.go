package frontier

import "github.com/roach88/statespace/internal/statestore"

// Level is a double-buffered frontier for level-synchronous search.
// Pop drains the current level while Push fills the next one. Advance swaps
// them and must only be called while no goroutine is pushing or popping.
type Level struct {
	kind  Kind
	cur   Queue
	next  Queue
	depth int
}

// NewLevel creates an empty level frontier built from queues of kind.
func NewLevel(kind Kind) (*Level, error) {
	cur, err := New(kind)
	if err != nil {
		return nil, err
	}
	next, err := New(kind)
	if err != nil {
		return nil, err
	}
	return &Level{kind: kind, cur: cur, next: next}, nil
}

// Push adds id to the next level.
func (l *Level) Push(id statestore.StateID) bool {
	return l.next.Push(id)
}

// Pop takes an id from the current level.
func (l *Level) Pop() (statestore.StateID, bool) {
	return l.cur.Pop()
}

// Current returns the number of ids left in the current level.
func (l *Level) Current() int {
	return l.cur.Len()
}

// Pending returns the number of ids queued for the next level.
func (l *Level) Pending() int {
	return l.next.Len()
}

// Advance makes the next level current. It returns false, and leaves the
// depth unchanged, when the next level is empty.
func (l *Level) Advance() bool {
	if l.next.Len() == 0 {
		return false
	}
	l.cur, l.next = l.next, l.cur
	l.depth++
	return true
}

// Depth returns the number of levels advanced into.
func (l *Level) Depth() int {
	return l.depth
}

// Close closes both queues.
func (l *Level) Close() {
	l.cur.Close()
	l.next.Close()
}
