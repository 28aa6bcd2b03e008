package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestGoldenScenarios(t *testing.T) {
	for _, name := range []string{"ring_10", "stack_frames", "counter_rules"} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_RandomGraphDerivesExpectation(t *testing.T) {
	s := loadScenario(t, "random_graph")
	result, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Runs, 6)

	g, err := randomGraph(s.Params)
	require.NoError(t, err)
	states, transitions := g.Reachable()
	for _, r := range result.Runs {
		assert.Equal(t, states, r.States, r.Label())
		assert.Equal(t, transitions, r.Transitions, r.Label())
	}
}

func TestRun_Capped(t *testing.T) {
	result, err := Run(context.Background(), loadScenario(t, "capped"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	for _, r := range result.Runs {
		assert.True(t, r.Truncated)
	}
}

func TestRun_BuiltinExpectationWhenOmitted(t *testing.T) {
	s := &Scenario{
		Name:        "torus",
		Description: "torus counts come from the model",
		Model:       "torus",
		Params:      map[string]int{"width": 3, "height": 5},
		Matrix:      Matrix{Workers: []int{2}},
	}
	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Runs, 2, "default matrix crosses both strategies")
	assert.Equal(t, int64(15), result.Runs[0].States)
	assert.Equal(t, int64(30), result.Runs[0].Transitions)
}

func TestRun_WrongExpectationFails(t *testing.T) {
	states := int64(11)
	s := &Scenario{
		Name:        "wrong",
		Description: "ring of 10 does not have 11 states",
		Model:       "ring",
		Matrix:      Matrix{Workers: []int{1}, Strategies: []string{"pooled"}},
		Expect:      &Expect{States: &states},
		Assertions:  []Assertion{{Type: AssertPartitionRecords, Partition: "chunk0", Count: 1}},
	}
	result, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "Assertion failed: states (pooled/lockfree/slab/workers=1)")
	assert.Contains(t, result.Errors[0], "Expected: 11")
	assert.Contains(t, result.Errors[0], "Actual: 10")
	assert.Contains(t, result.Errors[1], "no such partition")
}

func TestRun_ModelErrorIsRecorded(t *testing.T) {
	s := &Scenario{
		Name:        "bad ring",
		Description: "a zero ring fails Init",
		Model:       "ring",
		Params:      map[string]int{"size": 0},
		Expect:      &Expect{},
		Matrix:      Matrix{Workers: []int{1}, Strategies: []string{"level"}},
	}
	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Empty(t, result.Runs)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "ring size must be positive")
}

func TestRun_UnknownModel(t *testing.T) {
	s := &Scenario{Name: "x", Description: "x", Model: "petri"}
	_, err := Run(context.Background(), s)
	assert.ErrorContains(t, err, `unknown model "petri"`)

	s = &Scenario{Name: "x", Description: "x", Model: RandomModel, Params: map[string]int{"edges": 3}}
	_, err = Run(context.Background(), s)
	assert.ErrorContains(t, err, `no parameter "edges"`)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, &Scenario{Name: "x", Description: "x", Model: "ring"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckConsistent(t *testing.T) {
	runs := []RunSummary{
		{Workers: 1, Strategy: "pooled", States: 5, Transitions: 6},
		{Workers: 2, Strategy: "pooled", States: 4, Transitions: 6},
		{Workers: 4, Strategy: "pooled", States: 3, Truncated: true},
	}
	errs := checkConsistent(runs)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "workers=2")
	assert.Contains(t, errs[0], "5 states, 6 transitions")
}
