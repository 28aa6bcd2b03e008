package modelspec

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// LoadFile compiles every model under the top-level "model" field of a CUE
// file. params, when non-empty, is unified into the top-level "params" field
// so the file can size itself:
//
//	params: size: int | *10
//	model: ring: {initial: [0], rule: step: {update: [{slot: 0, add: 1, mod: params.size}]}}
func LoadFile(path string, params map[string]int) ([]*RuleModel, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}
	return LoadBytes(path, src, params)
}

// LoadBytes is LoadFile over in-memory source. filename is used in positions.
func LoadBytes(filename string, src []byte, params map[string]int) ([]*RuleModel, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	if len(params) > 0 {
		v = v.FillPath(cue.ParsePath("params"), ctx.Encode(params))
		if err := v.Err(); err != nil {
			return nil, formatCUEError(err)
		}
	}

	modelsVal := v.LookupPath(cue.ParsePath("model"))
	if !modelsVal.Exists() {
		return nil, &CompileError{Field: "model", Message: "no model defined", Pos: v.Pos()}
	}
	iter, err := modelsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var models []*RuleModel
	for iter.Next() {
		m, err := Compile(iter.Value())
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	if len(models) == 0 {
		return nil, &CompileError{Field: "model", Message: "no model defined", Pos: modelsVal.Pos()}
	}
	return models, nil
}

// Select returns the model called name, or the only model when name is empty.
func Select(models []*RuleModel, name string) (*RuleModel, error) {
	if name == "" {
		if len(models) == 1 {
			return models[0], nil
		}
		names := make([]string, len(models))
		for i, m := range models {
			names[i] = m.Label
		}
		return nil, fmt.Errorf("file defines %d models %v; pick one", len(models), names)
	}
	for _, m := range models {
		if m.Label == name {
			return m, nil
		}
	}
	return nil, fmt.Errorf("model %q not defined", name)
}
