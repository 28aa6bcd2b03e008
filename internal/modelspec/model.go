package modelspec

import (
	"fmt"
	"math"

	"github.com/roach88/statespace/internal/explore"
	"github.com/roach88/statespace/internal/statestore"
)

// RuleModel is a compiled rule model. It implements explore.Model and is
// safe for concurrent use.
type RuleModel struct {
	Label       string
	Description string
	Initial     []statestore.Slot
	Rules       []Rule
}

var _ explore.Model = (*RuleModel)(nil)

func (m *RuleModel) Name() string { return m.Label }

func (m *RuleModel) Init(*explore.Worker) error { return nil }

func (m *RuleModel) Initial(w *explore.Worker) (statestore.StateID, error) {
	ins, err := w.NewState(m.Initial)
	return ins.ID, err
}

// NextAll fires every enabled rule in declaration order.
func (m *RuleModel) NextAll(w *explore.Worker, id statestore.StateID) (int, error) {
	fs, err := w.GetState(id)
	if err != nil {
		return 0, err
	}
	if len(fs.Slots) != len(m.Initial) {
		return 0, fmt.Errorf("state %s has %d slots, model %q has %d", id, len(fs.Slots), m.Label, len(m.Initial))
	}

	n := 0
	for _, r := range m.Rules {
		if !r.Enabled(fs.Slots) {
			continue
		}
		if len(r.Updates) == 1 {
			u := r.Updates[0]
			v, err := u.Apply(fs.Slots[u.Slot])
			if err != nil {
				return n, fmt.Errorf("rule %s: %w", r.Name, err)
			}
			if _, err := w.NewTransitionDelta(id, statestore.NewDelta(u.Slot, v)); err != nil {
				return n, err
			}
		} else {
			next, err := r.Fire(fs.Slots)
			if err != nil {
				return n, err
			}
			if _, err := w.NewTransition(next); err != nil {
				return n, err
			}
		}
		n++
	}
	return n, nil
}

// Enabled reports whether every guard of r holds in slots.
func (r Rule) Enabled(slots []statestore.Slot) bool {
	for _, g := range r.Guards {
		if !g.Holds(slots[g.Slot]) {
			return false
		}
	}
	return true
}

// Fire returns the successor of slots under r. slots is not modified.
func (r Rule) Fire(slots []statestore.Slot) ([]statestore.Slot, error) {
	next := append([]statestore.Slot(nil), slots...)
	for _, u := range r.Updates {
		v, err := u.Apply(slots[u.Slot])
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.Name, err)
		}
		next[u.Slot] = v
	}
	return next, nil
}

// Apply computes the new value of a slot holding old.
func (u Update) Apply(old statestore.Slot) (statestore.Slot, error) {
	x := u.Set
	if !u.HasSet {
		x = int64(old) + u.Add
	}
	if u.Mod > 0 {
		x %= u.Mod
		if x < 0 {
			x += u.Mod
		}
	}
	if x < 0 || x > math.MaxUint32 {
		return 0, fmt.Errorf("slot %d: value %d out of range", u.Slot, x)
	}
	return statestore.Slot(x), nil
}
