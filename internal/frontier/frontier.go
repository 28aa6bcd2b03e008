// Package frontier holds discovered-but-unexpanded states.
//
// Two FIFO implementations share the Queue interface: a lock-free queue for
// the pooled strategy and a mutex-protected slice queue. Level pairs two
// queues for level-synchronous breadth-first search.
package frontier

import (
	"fmt"

	"github.com/roach88/statespace/internal/statestore"
)

// Queue is a concurrency-safe FIFO of state identities.
type Queue interface {
	// Push appends id. Returns false once the queue is closed.
	Push(id statestore.StateID) bool
	// Pop removes the front id without blocking.
	Pop() (statestore.StateID, bool)
	// Len returns the number of queued ids. Exact only when quiescent.
	Len() int
	// Wait returns a channel that receives when ids may be available.
	// Signals coalesce and may be spurious; callers retry Pop.
	Wait() <-chan struct{}
	// Done is closed by Close.
	Done() <-chan struct{}
	// Close stops further pushes. Queued ids remain poppable.
	Close()
}

// Kind selects a Queue implementation.
type Kind string

const (
	KindLockFree Kind = "lockfree"
	KindLocked   Kind = "locked"
)

// Kinds lists every supported queue kind.
func Kinds() []Kind {
	return []Kind{KindLockFree, KindLocked}
}

// ParseKind validates a queue kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown frontier %q (want one of %v)", s, Kinds())
}

// New creates an empty queue of the given kind. An empty kind means lockfree.
func New(kind Kind) (Queue, error) {
	switch kind {
	case KindLockFree, "":
		return NewLockFree(), nil
	case KindLocked:
		return NewLocked(), nil
	default:
		return nil, fmt.Errorf("unknown frontier %q", kind)
	}
}

// notify performs a coalescing, non-blocking send.
func notify(signal chan struct{}) {
	select {
	case signal <- struct{}{}:
	default:
	}
}
