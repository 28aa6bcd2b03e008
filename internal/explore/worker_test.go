package explore_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statespace/internal/explore"
	"github.com/roach88/statespace/internal/statestore"
)

// funcModel adapts closures to explore.Model.
type funcModel struct {
	initial func(w *explore.Worker) (statestore.StateID, error)
	next    func(w *explore.Worker, id statestore.StateID) (int, error)
}

func (m funcModel) Init(*explore.Worker) error { return nil }

func (m funcModel) Initial(w *explore.Worker) (statestore.StateID, error) {
	return m.initial(w)
}

func (m funcModel) NextAll(w *explore.Worker, id statestore.StateID) (int, error) {
	if m.next == nil {
		return 0, nil
	}
	return m.next(w, id)
}

func runModel(t *testing.T, m explore.Model) (*explore.Report, error) {
	t.Helper()
	s := openStore(t, statestore.BackendSlab, 1)
	return explore.New(s, m, explore.WithWorkers(1)).Run(context.Background())
}

func TestWorker_TransitionOutsideExpansion(t *testing.T) {
	_, err := runModel(t, funcModel{
		initial: func(w *explore.Worker) (statestore.StateID, error) {
			ins, err := w.NewTransition([]statestore.Slot{1})
			return ins.ID, err
		},
	})
	assert.ErrorIs(t, err, explore.ErrNotExpanding)

	var me *explore.ModelError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, explore.PhaseSeed, me.Phase)
}

func TestWorker_NewStateDuringExpansion(t *testing.T) {
	report, err := runModel(t, funcModel{
		initial: func(w *explore.Worker) (statestore.StateID, error) {
			ins, err := w.NewState([]statestore.Slot{1})
			return ins.ID, err
		},
		next: func(w *explore.Worker, id statestore.StateID) (int, error) {
			_, err := w.NewState([]statestore.Slot{2})
			return 0, err
		},
	})
	assert.ErrorIs(t, err, explore.ErrExpanding)

	var me *explore.ModelError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, explore.PhaseRunning, me.Phase)
	require.NotNil(t, report)
	assert.Equal(t, int64(1), report.States, "a rejected state is not counted")
}

func TestWorker_OversizedDeltaFailsRun(t *testing.T) {
	report, err := runModel(t, funcModel{
		initial: func(w *explore.Worker) (statestore.StateID, error) {
			ins, err := w.NewState([]statestore.Slot{1, 2})
			return ins.ID, err
		},
		next: func(w *explore.Worker, id statestore.StateID) (int, error) {
			_, err := w.NewTransitionDelta(id, statestore.NewDelta(math.MaxInt, 7))
			return 1, err
		},
	})
	assert.ErrorIs(t, err, statestore.ErrBadDelta)
	assert.True(t, explore.IsModelError(err))
	require.NotNil(t, report)
	assert.Equal(t, int64(1), report.States)
}

func TestWorker_TwoInitialStatesRejected(t *testing.T) {
	_, err := runModel(t, funcModel{
		initial: func(w *explore.Worker) (statestore.StateID, error) {
			if _, err := w.NewState([]statestore.Slot{1}); err != nil {
				return statestore.NoState, err
			}
			ins, err := w.NewState([]statestore.Slot{2})
			return ins.ID, err
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial inserted 2 root states")
}

func TestWorker_InitialMustExist(t *testing.T) {
	_, err := runModel(t, funcModel{
		initial: func(w *explore.Worker) (statestore.StateID, error) {
			return statestore.NoState, nil
		},
	})
	assert.ErrorIs(t, err, statestore.ErrNotFound)
}

// A counter 0..3 stored as a substate chain: each root state is
// [counter, substateLo, substateHi] and its substate holds the history.
func TestWorker_SubStatesAndPartialReads(t *testing.T) {
	var partial []statestore.Slot
	report, err := runModel(t, funcModel{
		initial: func(w *explore.Worker) (statestore.StateID, error) {
			sub, err := w.NewSubState(statestore.NoState, statestore.NewDelta(0, 0))
			if err != nil {
				return statestore.NoState, err
			}
			ins, err := w.NewState([]statestore.Slot{0, sub.ID.Lo(), sub.ID.Hi()})
			return ins.ID, err
		},
		next: func(w *explore.Worker, id statestore.StateID) (int, error) {
			out := make([]statestore.Slot, 2)
			if err := w.GetStatePartial(id, 1, 2, out); err != nil {
				return 0, err
			}
			fs, err := w.GetState(id)
			if err != nil {
				return 0, err
			}
			c := fs.Slots[0]
			if c == 3 {
				partial = out
				return 0, nil
			}

			hist, err := w.GetSubState(statestore.JoinID(out[0], out[1]))
			if err != nil {
				return 0, err
			}
			sub, err := w.NewSubState(hist.ID, statestore.NewDelta(hist.Len(), c+1))
			if err != nil {
				return 0, err
			}
			chunk, err := w.NewChunk(0, []statestore.Slot{c + 1})
			if err != nil {
				return 0, err
			}
			if _, err := w.GetChunk(0, chunk.ID); err != nil {
				return 0, err
			}
			if _, err := w.NewTransition([]statestore.Slot{c + 1, sub.ID.Lo(), sub.ID.Hi()}); err != nil {
				return 0, err
			}
			return 1, nil
		},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(4), report.States)
	assert.Equal(t, int64(3), report.Transitions)
	assert.Len(t, partial, 2)

	stats := map[statestore.Partition]int{}
	for _, p := range report.Partitions {
		stats[p.Partition] = p.Records
	}
	assert.Equal(t, 4, stats[statestore.PartitionRoot])
	assert.Equal(t, 4, stats[statestore.PartitionSub])
}

func TestWorker_PartialBufferTooSmall(t *testing.T) {
	_, err := runModel(t, funcModel{
		initial: func(w *explore.Worker) (statestore.StateID, error) {
			ins, err := w.NewState([]statestore.Slot{1, 2, 3})
			if err != nil {
				return statestore.NoState, err
			}
			return ins.ID, w.GetStatePartial(ins.ID, 0, 3, make([]statestore.Slot, 2))
		},
	})
	assert.Error(t, err)
}

func TestModelError_Message(t *testing.T) {
	err := &explore.ModelError{Phase: explore.PhaseSeed, StateID: statestore.NoState, Err: errors.New("boom")}
	assert.Equal(t, "model error during seed: boom", err.Error())

	err = &explore.ModelError{Phase: explore.PhaseRunning, StateID: 16, Err: errors.New("boom")}
	assert.Equal(t, "model error during running (state=0x10): boom", err.Error())
	assert.Equal(t, "draining", explore.PhaseDraining.String())
}
