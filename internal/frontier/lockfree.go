package frontier

import (
	"sync"
	"sync/atomic"

	"github.com/roach88/statespace/internal/lfq"
	"github.com/roach88/statespace/internal/statestore"
)

// LockFree is a Queue over lfq.Queue. Push and Pop never take a lock.
type LockFree struct {
	q         *lfq.Queue[statestore.StateID]
	signal    chan struct{}
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewLockFree creates an empty lock-free queue.
func NewLockFree() *LockFree {
	return &LockFree{
		q:      lfq.New[statestore.StateID](),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (f *LockFree) Push(id statestore.StateID) bool {
	if f.closed.Load() {
		return false
	}
	f.q.Enqueue(id)
	notify(f.signal)
	return true
}

func (f *LockFree) Pop() (statestore.StateID, bool) {
	id, ok := f.q.Dequeue()
	if !ok {
		return statestore.NoState, false
	}
	return id, true
}

func (f *LockFree) Len() int {
	return f.q.Len()
}

func (f *LockFree) Wait() <-chan struct{} {
	return f.signal
}

func (f *LockFree) Done() <-chan struct{} {
	return f.done
}

func (f *LockFree) Close() {
	f.closeOnce.Do(func() {
		f.closed.Store(true)
		close(f.done)
	})
}
