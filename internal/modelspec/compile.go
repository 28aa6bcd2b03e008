// Package modelspec compiles declarative rule models written in CUE.
//
// A rule model is a fixed-width slot vector, an initial vector and an
// ordered set of guarded update rules:
//
//	model: counter: {
//		description: "two counters that wrap at 3"
//		initial: [0, 0]
//		rule: a: {guard: [{slot: 0, max: 2}], update: [{slot: 0, add: 1}]}
//		rule: b: {update: [{slot: 1, add: 1, mod: 3}]}
//	}
//
// For every state each enabled rule yields one successor, in declaration
// order. A rule updating a single slot is reported as a delta transition.
package modelspec

import (
	"fmt"
	"math"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/statespace/internal/statestore"
)

// Guard enables a rule only while a slot lies within [Min, Max].
type Guard struct {
	Slot   int
	Min    int64
	Max    int64
	HasMin bool
	HasMax bool
}

// Holds reports whether the guard admits v.
func (g Guard) Holds(v statestore.Slot) bool {
	x := int64(v)
	if g.HasMin && x < g.Min {
		return false
	}
	if g.HasMax && x > g.Max {
		return false
	}
	return true
}

// Update assigns one slot: either Set, or the old value plus Add, optionally
// reduced modulo Mod.
type Update struct {
	Slot   int
	Add    int64
	Set    int64
	HasSet bool
	Mod    int64
}

// Rule is one guarded transition.
type Rule struct {
	Name    string
	Guards  []Guard
	Updates []Update
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}

// Compile parses one model struct, e.g. the value at path "model.counter".
// The model name is the last path selector.
func Compile(v cue.Value) (*RuleModel, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	m := &RuleModel{}
	if labels := v.Path().Selectors(); len(labels) > 0 {
		m.Label = strings.Trim(labels[len(labels)-1].String(), `"`)
	}

	if d := v.LookupPath(cue.ParsePath("description")); d.Exists() {
		desc, err := d.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		m.Description = desc
	}

	initial, err := parseInitial(v)
	if err != nil {
		return nil, err
	}
	m.Initial = initial

	m.Rules, err = parseRules(v, len(initial))
	if err != nil {
		return nil, err
	}
	if len(m.Rules) == 0 {
		return nil, &CompileError{
			Field:   "rule",
			Message: "at least one rule is required",
			Pos:     v.Pos(),
		}
	}
	return m, nil
}

func parseInitial(v cue.Value) ([]statestore.Slot, error) {
	initVal := v.LookupPath(cue.ParsePath("initial"))
	if !initVal.Exists() {
		return nil, &CompileError{Field: "initial", Message: "initial is required", Pos: v.Pos()}
	}
	iter, err := initVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var slots []statestore.Slot
	for i := 0; iter.Next(); i++ {
		x, err := slotValue(iter.Value(), fmt.Sprintf("initial[%d]", i))
		if err != nil {
			return nil, err
		}
		slots = append(slots, x)
	}
	if len(slots) == 0 {
		return nil, &CompileError{Field: "initial", Message: "initial must have at least one slot", Pos: initVal.Pos()}
	}
	return slots, nil
}

func parseRules(v cue.Value, width int) ([]Rule, error) {
	ruleVal := v.LookupPath(cue.ParsePath("rule"))
	if !ruleVal.Exists() {
		return nil, nil
	}
	iter, err := ruleVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rules []Rule
	for iter.Next() {
		name := iter.Label()
		rv := iter.Value()
		rule := Rule{Name: name}

		if gv := rv.LookupPath(cue.ParsePath("guard")); gv.Exists() {
			gIter, err := gv.List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for i := 0; gIter.Next(); i++ {
				g, err := parseGuard(gIter.Value(), fmt.Sprintf("rule.%s.guard[%d]", name, i), width)
				if err != nil {
					return nil, err
				}
				rule.Guards = append(rule.Guards, g)
			}
		}

		uv := rv.LookupPath(cue.ParsePath("update"))
		if !uv.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("rule.%s.update", name),
				Message: "rule update is required",
				Pos:     rv.Pos(),
			}
		}
		uIter, err := uv.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		seen := make(map[int]bool)
		for i := 0; uIter.Next(); i++ {
			field := fmt.Sprintf("rule.%s.update[%d]", name, i)
			u, err := parseUpdate(uIter.Value(), field, width)
			if err != nil {
				return nil, err
			}
			if seen[u.Slot] {
				return nil, &CompileError{Field: field, Message: fmt.Sprintf("slot %d updated twice", u.Slot), Pos: uIter.Value().Pos()}
			}
			seen[u.Slot] = true
			rule.Updates = append(rule.Updates, u)
		}
		if len(rule.Updates) == 0 {
			return nil, &CompileError{
				Field:   fmt.Sprintf("rule.%s.update", name),
				Message: "rule must update at least one slot",
				Pos:     uv.Pos(),
			}
		}

		rules = append(rules, rule)
	}
	return rules, nil
}

func parseGuard(v cue.Value, field string, width int) (Guard, error) {
	var g Guard
	slot, err := slotIndex(v, field, width)
	if err != nil {
		return g, err
	}
	g.Slot = slot

	if mv := v.LookupPath(cue.ParsePath("min")); mv.Exists() {
		if g.Min, err = int64Of(mv); err != nil {
			return g, formatCUEError(err)
		}
		g.HasMin = true
	}
	if mv := v.LookupPath(cue.ParsePath("max")); mv.Exists() {
		if g.Max, err = int64Of(mv); err != nil {
			return g, formatCUEError(err)
		}
		g.HasMax = true
	}
	if !g.HasMin && !g.HasMax {
		return g, &CompileError{Field: field, Message: "guard needs min or max", Pos: v.Pos()}
	}
	return g, nil
}

func parseUpdate(v cue.Value, field string, width int) (Update, error) {
	var u Update
	slot, err := slotIndex(v, field, width)
	if err != nil {
		return u, err
	}
	u.Slot = slot

	addVal := v.LookupPath(cue.ParsePath("add"))
	setVal := v.LookupPath(cue.ParsePath("set"))
	switch {
	case addVal.Exists() && setVal.Exists():
		return u, &CompileError{Field: field, Message: "add and set are exclusive", Pos: v.Pos()}
	case addVal.Exists():
		if u.Add, err = int64Of(addVal); err != nil {
			return u, formatCUEError(err)
		}
	case setVal.Exists():
		x, err := slotValue(setVal, field+".set")
		if err != nil {
			return u, err
		}
		u.Set, u.HasSet = int64(x), true
	default:
		return u, &CompileError{Field: field, Message: "update needs add or set", Pos: v.Pos()}
	}

	if mv := v.LookupPath(cue.ParsePath("mod")); mv.Exists() {
		if u.Mod, err = int64Of(mv); err != nil {
			return u, formatCUEError(err)
		}
		if u.Mod < 1 || u.Mod > math.MaxUint32+1 {
			return u, &CompileError{Field: field + ".mod", Message: fmt.Sprintf("mod %d out of range", u.Mod), Pos: mv.Pos()}
		}
	}
	return u, nil
}

func slotIndex(v cue.Value, field string, width int) (int, error) {
	sv := v.LookupPath(cue.ParsePath("slot"))
	if !sv.Exists() {
		return 0, &CompileError{Field: field + ".slot", Message: "slot is required", Pos: v.Pos()}
	}
	i, err := int64Of(sv)
	if err != nil {
		return 0, formatCUEError(err)
	}
	if i < 0 || i >= int64(width) {
		return 0, &CompileError{
			Field:   field + ".slot",
			Message: fmt.Sprintf("slot %d outside state of width %d", i, width),
			Pos:     sv.Pos(),
		}
	}
	return int(i), nil
}

func slotValue(v cue.Value, field string) (statestore.Slot, error) {
	x, err := int64Of(v)
	if err != nil {
		return 0, formatCUEError(err)
	}
	if x < 0 || x > math.MaxUint32 {
		return 0, &CompileError{Field: field, Message: fmt.Sprintf("value %d does not fit a slot", x), Pos: v.Pos()}
	}
	return statestore.Slot(x), nil
}

// int64Of resolves a default such as "int | *10" before reading the integer.
func int64Of(v cue.Value) (int64, error) {
	if d, ok := v.Default(); ok {
		v = d
	}
	return v.Int64()
}
