package explore

import (
	"errors"
	"fmt"

	"github.com/roach88/statespace/internal/statestore"
)

// Phase is the driver's lifecycle position.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseSeed
	PhaseRunning
	PhaseDraining
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSeed:
		return "seed"
	case PhaseRunning:
		return "running"
	case PhaseDraining:
		return "draining"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// ErrAlreadyRun is returned by a second call to Run.
var ErrAlreadyRun = errors.New("explorer already run")

// ModelError wraps a failure raised by or detected in a model.
type ModelError struct {
	Phase   Phase
	StateID statestore.StateID
	Err     error
}

func (e *ModelError) Error() string {
	if e.StateID.Valid() {
		return fmt.Sprintf("model error during %s (state=%s): %v", e.Phase, e.StateID, e.Err)
	}
	return fmt.Sprintf("model error during %s: %v", e.Phase, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// IsModelError reports whether err carries a ModelError.
func IsModelError(err error) bool {
	var me *ModelError
	return errors.As(err, &me)
}
