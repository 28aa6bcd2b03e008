package explore

import (
	"errors"
	"fmt"

	"github.com/roach88/statespace/internal/statestore"
)

// Model enumerates a state space.
//
// Models never see hashing, slabs or scheduling: they read and create states
// only through the Worker they are handed. A model must be safe for
// concurrent NextAll calls on distinct workers.
type Model interface {
	// Init is called once before exploration.
	Init(w *Worker) error
	// Initial inserts the single initial state with w.NewState and returns it.
	Initial(w *Worker) (statestore.StateID, error)
	// NextAll reports every successor of id through w.NewTransition or
	// w.NewTransitionDelta and returns how many it reported.
	NextAll(w *Worker, id statestore.StateID) (int, error)
}

// Namer is implemented by models that have a display name.
type Namer interface {
	Name() string
}

// ModelName returns m's name, or its Go type when it has none.
func ModelName(m Model) string {
	if n, ok := m.(Namer); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", m)
}

// ErrNotExpanding is returned when a transition is reported outside NextAll.
var ErrNotExpanding = errors.New("transition reported outside an expansion")

// ErrExpanding is returned when NewState is called from NextAll.
var ErrExpanding = errors.New("root state created during an expansion; use NewTransition")

// Worker is the model's handle on the store. Each exploration goroutine owns
// one Worker; a Worker must not be shared between goroutines.
type Worker struct {
	id    int
	x     *Explorer
	store *statestore.Store

	// set for the duration of one NextAll call
	expanding bool
	reported  int
}

// ID returns the worker index.
func (w *Worker) ID() int {
	return w.id
}

// NewState interns a root state without reporting a transition.
// It is meant for Initial and fails inside NextAll.
func (w *Worker) NewState(slots []statestore.Slot) (statestore.InsertedState, error) {
	if w.expanding {
		return statestore.InsertedState{ID: statestore.NoState}, ErrExpanding
	}
	ins, err := w.store.Insert(w.id, statestore.PartitionRoot, slots)
	if err != nil {
		return ins, err
	}
	if ins.New {
		w.x.discovered()
	}
	return ins, nil
}

// NewTransition reports a successor given as a full state vector.
func (w *Worker) NewTransition(slots []statestore.Slot) (statestore.InsertedState, error) {
	if !w.expanding {
		return statestore.InsertedState{ID: statestore.NoState}, ErrNotExpanding
	}
	ins, err := w.store.Insert(w.id, statestore.PartitionRoot, slots)
	if err != nil {
		return ins, err
	}
	w.transition(ins)
	return ins, nil
}

// NewTransitionDelta reports a successor derived from base by d.
func (w *Worker) NewTransitionDelta(base statestore.StateID, d statestore.Delta) (statestore.InsertedState, error) {
	if !w.expanding {
		return statestore.InsertedState{ID: statestore.NoState}, ErrNotExpanding
	}
	ins, err := w.store.InsertDelta(w.id, statestore.PartitionRoot, base, d)
	if err != nil {
		return ins, err
	}
	w.transition(ins)
	return ins, nil
}

func (w *Worker) transition(ins statestore.InsertedState) {
	w.reported++
	w.x.transitions.Add(1)
	w.x.metrics.transition()
	if ins.New {
		w.x.discovered()
		w.x.push(ins.ID)
	}
}

// NewSubState interns a substate derived from base by d. base is a substate
// id or NoState. Substates are never explored.
func (w *Worker) NewSubState(base statestore.StateID, d statestore.Delta) (statestore.InsertedState, error) {
	return w.store.InsertDelta(w.id, statestore.PartitionSub, base, d)
}

// NewChunk interns an opaque value of the given kind.
func (w *Worker) NewChunk(kind int, slots []statestore.Slot) (statestore.InsertedState, error) {
	return w.store.Insert(w.id, statestore.ChunkPartition(kind), slots)
}

// GetState returns a root state.
func (w *Worker) GetState(id statestore.StateID) (statestore.FullState, error) {
	return w.store.Get(statestore.PartitionRoot, id)
}

// GetSubState returns a substate.
func (w *Worker) GetSubState(id statestore.StateID) (statestore.FullState, error) {
	return w.store.Get(statestore.PartitionSub, id)
}

// GetChunk returns a chunk of the given kind.
func (w *Worker) GetChunk(kind int, id statestore.StateID) (statestore.FullState, error) {
	return w.store.Get(statestore.ChunkPartition(kind), id)
}

// GetStatePartial copies n slots at off of a root state into out.
func (w *Worker) GetStatePartial(id statestore.StateID, off, n int, out []statestore.Slot) error {
	if len(out) < n {
		return fmt.Errorf("output buffer holds %d slots, need %d", len(out), n)
	}
	slots, err := w.store.GetPartial(statestore.PartitionRoot, id, off, n)
	if err != nil {
		return err
	}
	copy(out, slots)
	return nil
}

// expand runs NextAll for id and checks the returned count.
func (w *Worker) expand(m Model, id statestore.StateID) error {
	w.expanding = true
	w.reported = 0
	n, err := m.NextAll(w, id)
	w.expanding = false

	w.x.metrics.expansion()
	if err != nil {
		return &ModelError{Phase: PhaseRunning, StateID: id, Err: err}
	}
	if n != w.reported {
		return &ModelError{
			Phase: PhaseRunning, StateID: id,
			Err: fmt.Errorf("returned %d successors but reported %d", n, w.reported),
		}
	}
	return nil
}
