// Package models holds the built-in example models and resolves model names,
// including declarative CUE rule files, to an explore.Model.
package models

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/statespace/internal/explore"
	"github.com/roach88/statespace/internal/modelspec"
)

// Info describes a built-in model.
type Info struct {
	Name        string
	Description string
	// Defaults lists every accepted parameter with its default value.
	Defaults map[string]int
	// Expect returns the exact state and transition counts for params.
	Expect func(params map[string]int) (states, transitions int64)

	build func(params map[string]int) explore.Model
}

var builtins = []Info{
	{
		Name:        "ring",
		Description: "one token stepping around a ring",
		Defaults:    map[string]int{"size": 10},
		Expect: func(p map[string]int) (int64, int64) {
			return int64(p["size"]), int64(p["size"])
		},
		build: func(p map[string]int) explore.Model { return &Ring{Size: p["size"]} },
	},
	{
		Name:        "torus",
		Description: "a point on a wrapping grid, moved by slot deltas",
		Defaults:    map[string]int{"width": 8, "height": 8},
		Expect: func(p map[string]int) (int64, int64) {
			n := int64(p["width"]) * int64(p["height"])
			return n, 2 * n
		},
		build: func(p map[string]int) explore.Model {
			return &Torus{Width: p["width"], Height: p["height"]}
		},
	},
	{
		Name:        "stack",
		Description: "a bounded stack whose frames are shared substates",
		Defaults:    map[string]int{"depth": 3, "values": 2},
		Expect: func(p map[string]int) (int64, int64) {
			d, v := p["depth"], int64(p["values"])
			// states: sum of v^k for k in 0..d; each non-full state pushes v
			// ways and each non-empty state pops once
			var below, pow int64 = 0, 1
			for k := 0; k < d; k++ {
				below += pow
				pow *= v
			}
			return below + pow, 2 * v * below
		},
		build: func(p map[string]int) explore.Model {
			return &Stack{Depth: p["depth"], Values: p["values"]}
		},
	},
}

// Builtins returns the built-in models sorted by name.
func Builtins() []Info {
	out := slices.Clone(builtins)
	slices.SortFunc(out, func(a, b Info) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Lookup returns the built-in model called name.
func Lookup(name string) (Info, bool) {
	for _, info := range builtins {
		if info.Name == name {
			return info, true
		}
	}
	return Info{}, false
}

// Params merges overrides onto the defaults and rejects unknown keys.
func (i Info) Params(overrides map[string]int) (map[string]int, error) {
	out := maps.Clone(i.Defaults)
	for k, v := range overrides {
		if _, ok := out[k]; !ok {
			return nil, fmt.Errorf("model %s has no parameter %q (have %s)",
				i.Name, k, strings.Join(slices.Sorted(maps.Keys(i.Defaults)), ", "))
		}
		out[k] = v
	}
	return out, nil
}

// Build instantiates the model with defaults overridden by params.
func (i Info) Build(params map[string]int) (explore.Model, error) {
	p, err := i.Params(params)
	if err != nil {
		return nil, err
	}
	return i.build(p), nil
}

// IsRuleFile reports whether name refers to a CUE rule file, optionally
// suffixed with "#model".
func IsRuleFile(name string) bool {
	path, _, _ := strings.Cut(name, "#")
	return strings.HasSuffix(path, ".cue")
}

// Resolve returns the built-in model called name, or, for "file.cue" or
// "file.cue#model", the compiled rule model. params override defaults for
// built-ins and are unified into a rule file's "params" field.
func Resolve(name string, params map[string]int) (explore.Model, error) {
	if IsRuleFile(name) {
		path, model, _ := strings.Cut(name, "#")
		compiled, err := modelspec.LoadFile(path, params)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		m, err := modelspec.Select(compiled, model)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		return m, nil
	}

	info, ok := Lookup(name)
	if !ok {
		names := make([]string, len(builtins))
		for i, b := range Builtins() {
			names[i] = b.Name
		}
		return nil, fmt.Errorf("unknown model %q (built-ins: %s; or a .cue file)", name, strings.Join(names, ", "))
	}
	return info.Build(params)
}
