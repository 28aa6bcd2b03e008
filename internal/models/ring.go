package models

import (
	"fmt"

	"github.com/roach88/statespace/internal/explore"
	"github.com/roach88/statespace/internal/statestore"
)

// Ring is a single token stepping x -> (x+1) mod Size.
type Ring struct {
	Size int
}

func (r *Ring) Name() string { return fmt.Sprintf("ring(size=%d)", r.Size) }

func (r *Ring) Init(*explore.Worker) error {
	if r.Size < 1 {
		return fmt.Errorf("ring size must be positive, got %d", r.Size)
	}
	return nil
}

func (r *Ring) Initial(w *explore.Worker) (statestore.StateID, error) {
	ins, err := w.NewState([]statestore.Slot{0})
	return ins.ID, err
}

func (r *Ring) NextAll(w *explore.Worker, id statestore.StateID) (int, error) {
	fs, err := w.GetState(id)
	if err != nil {
		return 0, err
	}
	next := (int(fs.Slots[0]) + 1) % r.Size
	if _, err := w.NewTransition([]statestore.Slot{statestore.Slot(next)}); err != nil {
		return 0, err
	}
	return 1, nil
}
