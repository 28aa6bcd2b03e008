package models

import (
	"fmt"

	"github.com/roach88/statespace/internal/explore"
	"github.com/roach88/statespace/internal/statestore"
)

// Stack is a bounded stack of Values symbols, at most Depth deep.
//
// The root state is [size, topLo, topHi]. Every frame is a substate
// [value, parentLo, parentHi]; the bottom frame's parent and an empty stack's
// top are NoState. Because frames are interned, popping a frame rebuilds the
// exact root that existed before the push and closes the loop.
type Stack struct {
	Depth, Values int
}

const (
	stackSize = iota
	stackTopLo
	stackTopHi
	stackRootLen
)

func (s *Stack) Name() string {
	return fmt.Sprintf("stack(depth=%d,values=%d)", s.Depth, s.Values)
}

func (s *Stack) Init(*explore.Worker) error {
	if s.Depth < 0 || s.Values < 1 {
		return fmt.Errorf("stack needs depth >= 0 and values >= 1, got depth=%d values=%d", s.Depth, s.Values)
	}
	return nil
}

func (s *Stack) Initial(w *explore.Worker) (statestore.StateID, error) {
	ins, err := w.NewState(rootSlots(0, statestore.NoState))
	return ins.ID, err
}

func (s *Stack) NextAll(w *explore.Worker, id statestore.StateID) (int, error) {
	var root [stackRootLen]statestore.Slot
	if err := w.GetStatePartial(id, 0, stackRootLen, root[:]); err != nil {
		return 0, err
	}
	size := int(root[stackSize])
	top := statestore.JoinID(root[stackTopLo], root[stackTopHi])

	n := 0
	if size < s.Depth {
		for v := 0; v < s.Values; v++ {
			frame, err := w.NewSubState(statestore.NoState,
				statestore.NewDelta(0, statestore.Slot(v), top.Lo(), top.Hi()))
			if err != nil {
				return n, fmt.Errorf("push %d: %w", v, err)
			}
			if _, err := w.NewTransition(rootSlots(size+1, frame.ID)); err != nil {
				return n, err
			}
			n++
		}
	}

	if size > 0 {
		frame, err := w.GetSubState(top)
		if err != nil {
			return n, fmt.Errorf("pop: %w", err)
		}
		if frame.Len() != 3 {
			return n, fmt.Errorf("pop: frame %s has %d slots", top, frame.Len())
		}
		parent := statestore.JoinID(frame.Slots[1], frame.Slots[2])
		if _, err := w.NewTransitionDelta(id, statestore.NewDelta(0, rootSlots(size-1, parent)...)); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func rootSlots(size int, top statestore.StateID) []statestore.Slot {
	return []statestore.Slot{statestore.Slot(size), top.Lo(), top.Hi()}
}
