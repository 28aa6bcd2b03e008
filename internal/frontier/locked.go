package frontier

import (
	"sync"

	"github.com/roach88/statespace/internal/statestore"
)

// Locked is a mutex-protected slice FIFO.
//
// The queue is unbounded so a worker expanding a wide state never blocks on
// push. The signal channel lets idle workers wait with select instead of
// spinning.
type Locked struct {
	mu     sync.Mutex
	ids    []statestore.StateID
	closed bool
	signal chan struct{} // buffered, size 1
	done   chan struct{}
}

// NewLocked creates an empty locked queue.
func NewLocked() *Locked {
	return &Locked{
		ids:    make([]statestore.StateID, 0, 64),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (q *Locked) Push(id statestore.StateID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.ids = append(q.ids, id)
	notify(q.signal)
	return true
}

func (q *Locked) Pop() (statestore.StateID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ids) == 0 {
		return statestore.NoState, false
	}
	id := q.ids[0]
	if len(q.ids) == 1 {
		// reuse the backing array once drained
		q.ids = q.ids[:0]
	} else {
		q.ids = q.ids[1:]
	}
	return id, true
}

func (q *Locked) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}

func (q *Locked) Wait() <-chan struct{} {
	return q.signal
}

func (q *Locked) Done() <-chan struct{} {
	return q.done
}

func (q *Locked) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}
