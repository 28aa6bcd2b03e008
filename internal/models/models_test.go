package models

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statespace/internal/explore"
	"github.com/roach88/statespace/internal/statestore"
)

func runModel(t *testing.T, m explore.Model, workers int, strategy explore.Strategy) *explore.Report {
	t.Helper()
	cfg := statestore.DefaultConfig(workers)
	cfg.BucketBits = 6
	s, err := statestore.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	report, err := explore.New(s, m,
		explore.WithWorkers(workers),
		explore.WithStrategy(strategy),
	).Run(context.Background())
	require.NoError(t, err)
	return report
}

func TestBuiltins_MatchExpectedCounts(t *testing.T) {
	cases := map[string][]map[string]int{
		"ring":  {nil, {"size": 1}, {"size": 37}},
		"torus": {nil, {"width": 1, "height": 5}, {"width": 6, "height": 4}},
		"stack": {nil, {"depth": 0}, {"depth": 4, "values": 3}},
	}
	for _, info := range Builtins() {
		for _, params := range cases[info.Name] {
			for _, strategy := range explore.Strategies() {
				name := fmt.Sprintf("%s/%v/%s", info.Name, params, strategy)
				t.Run(name, func(t *testing.T) {
					m, err := info.Build(params)
					require.NoError(t, err)
					full, err := info.Params(params)
					require.NoError(t, err)
					wantStates, wantTransitions := info.Expect(full)

					report := runModel(t, m, 4, strategy)
					assert.Equal(t, wantStates, report.States)
					assert.Equal(t, wantTransitions, report.Transitions)
					assert.False(t, report.Truncated)
				})
			}
		}
	}
}

func TestStack_DefaultCounts(t *testing.T) {
	report := runModel(t, &Stack{Depth: 3, Values: 2}, 2, explore.StrategyLevel)
	assert.Equal(t, int64(15), report.States)
	assert.Equal(t, int64(28), report.Transitions)
	assert.Equal(t, 4, report.Depth)

	// one frame per distinct non-empty prefix
	for _, p := range report.Partitions {
		if p.Partition == statestore.PartitionSub {
			assert.Equal(t, 14, p.Records)
		}
	}
}

func TestTorus_Depth(t *testing.T) {
	report := runModel(t, &Torus{Width: 3, Height: 4}, 2, explore.StrategyLevel)
	assert.Equal(t, int64(12), report.States)
	// farthest cell is (2, 3)
	assert.Equal(t, 6, report.Depth)
}

func TestInit_RejectsBadParams(t *testing.T) {
	for _, m := range []explore.Model{&Ring{}, &Torus{Width: 0, Height: 1}, &Stack{Depth: 1}} {
		t.Run(explore.ModelName(m), func(t *testing.T) {
			s, err := statestore.Open(statestore.DefaultConfig(1))
			require.NoError(t, err)
			defer s.Close()

			_, err = explore.New(s, m, explore.WithWorkers(1)).Run(context.Background())
			require.Error(t, err)
			assert.True(t, explore.IsModelError(err))
		})
	}
}

func TestResolve_Builtin(t *testing.T) {
	m, err := Resolve("ring", map[string]int{"size": 4})
	require.NoError(t, err)
	assert.Equal(t, "ring(size=4)", explore.ModelName(m))

	_, err = Resolve("ring", map[string]int{"width": 4})
	assert.ErrorContains(t, err, `no parameter "width"`)

	_, err = Resolve("petri", nil)
	assert.ErrorContains(t, err, "built-ins: ring, stack, torus")
}

func TestResolve_RuleFile(t *testing.T) {
	m, err := Resolve("testdata/clocks.cue#clocks", nil)
	require.NoError(t, err)
	assert.Equal(t, "clocks", explore.ModelName(m))
	report := runModel(t, m, 4, explore.StrategyPooled)
	assert.Equal(t, int64(9), report.States)
	assert.Equal(t, int64(18), report.Transitions)

	m, err = Resolve("testdata/clocks.cue#lockstep", map[string]int{"period": 5})
	require.NoError(t, err)
	report = runModel(t, m, 2, explore.StrategyLevel)
	assert.Equal(t, int64(5), report.States)
	assert.Equal(t, int64(5), report.Transitions)

	_, err = Resolve("testdata/clocks.cue", nil)
	assert.ErrorContains(t, err, "pick one")

	_, err = Resolve("testdata/clocks.cue#nobody", nil)
	assert.ErrorContains(t, err, `"nobody" not defined`)

	_, err = Resolve("testdata/missing.cue", nil)
	assert.Error(t, err)
}

func TestIsRuleFile(t *testing.T) {
	assert.True(t, IsRuleFile("a/b.cue"))
	assert.True(t, IsRuleFile("b.cue#m"))
	assert.False(t, IsRuleFile("ring"))
	assert.False(t, IsRuleFile("cue"))
}
