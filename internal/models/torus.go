package models

import (
	"fmt"

	"github.com/roach88/statespace/internal/explore"
	"github.com/roach88/statespace/internal/statestore"
)

// Torus walks a Width x Height grid with wraparound, stepping either
// coordinate. Successors are reported as single-slot deltas.
type Torus struct {
	Width, Height int
}

func (t *Torus) Name() string {
	return fmt.Sprintf("torus(width=%d,height=%d)", t.Width, t.Height)
}

func (t *Torus) Init(*explore.Worker) error {
	if t.Width < 1 || t.Height < 1 {
		return fmt.Errorf("torus dimensions must be positive, got %dx%d", t.Width, t.Height)
	}
	return nil
}

func (t *Torus) Initial(w *explore.Worker) (statestore.StateID, error) {
	ins, err := w.NewState([]statestore.Slot{0, 0})
	return ins.ID, err
}

func (t *Torus) NextAll(w *explore.Worker, id statestore.StateID) (int, error) {
	var xy [2]statestore.Slot
	if err := w.GetStatePartial(id, 0, 2, xy[:]); err != nil {
		return 0, err
	}

	x := statestore.Slot((int(xy[0]) + 1) % t.Width)
	if _, err := w.NewTransitionDelta(id, statestore.NewDelta(0, x)); err != nil {
		return 0, err
	}
	y := statestore.Slot((int(xy[1]) + 1) % t.Height)
	if _, err := w.NewTransitionDelta(id, statestore.NewDelta(1, y)); err != nil {
		return 1, err
	}
	return 2, nil
}
