package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/statespace/internal/explore"
	"github.com/roach88/statespace/internal/frontier"
	"github.com/roach88/statespace/internal/models"
	"github.com/roach88/statespace/internal/statestore"
	"github.com/roach88/statespace/internal/testutil"
)

// Harness is the scenario execution engine.
// It runs every matrix combination with a fixed run id.
type Harness struct {
	scenario *Scenario
	runIDs   *testutil.FixedRunID
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each combination runs on a fresh store for isolation. An error is
// returned only when a run cannot be set up; failed expectations and model
// errors are recorded in the result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	h := &Harness{
		scenario: scenario,
		runIDs:   testutil.NewFixedRunID(scenario.RunID),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	expect, err := h.expectation()
	if err != nil {
		return nil, err
	}

	result := NewResult()
	m := scenario.Matrix
	for _, strategy := range m.Strategies {
		for _, kind := range m.Frontiers {
			for _, backend := range m.Backends {
				for _, workers := range m.Workers {
					if err := ctx.Err(); err != nil {
						return nil, err
					}
					summary, err := h.runOne(ctx, workers,
						explore.Strategy(strategy), frontier.Kind(kind), statestore.BackendKind(backend), result)
					if err != nil {
						return nil, err
					}
					if summary == nil {
						continue
					}
					result.Runs = append(result.Runs, *summary)
					for _, msg := range checkRun(*summary, expect, scenario.Assertions) {
						result.AddError(msg)
					}
				}
			}
		}
	}

	for _, msg := range checkConsistent(result.Runs) {
		result.AddError(msg)
	}
	return result, nil
}

// runOne explores the model once. A nil summary means the run failed and the
// failure was recorded in result.
func (h *Harness) runOne(ctx context.Context, workers int, strategy explore.Strategy,
	kind frontier.Kind, backend statestore.BackendKind, result *Result) (*RunSummary, error) {

	model, err := resolveModel(h.scenario.Model, h.scenario.Params)
	if err != nil {
		return nil, err
	}
	result.Model = explore.ModelName(model)

	cfg := statestore.DefaultConfig(workers)
	cfg.Backend = backend
	cfg.Partitions += h.scenario.ChunkKinds
	st, err := statestore.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", backend, err)
	}
	defer st.Close()

	opts := []explore.Option{
		explore.WithWorkers(workers),
		explore.WithStrategy(strategy),
		explore.WithFrontier(kind),
		explore.WithRunIDGenerator(h.runIDs),
	}
	if h.scenario.MaxStates > 0 {
		opts = append(opts, explore.WithMaxStates(h.scenario.MaxStates))
	}

	report, err := explore.New(st, model, opts...).Run(ctx)
	if err != nil {
		result.AddError(fmt.Sprintf("%s/%s/%s/workers=%d: %v", strategy, kind, backend, workers, err))
		return nil, nil
	}

	summary := summarize(report)
	h.logger.Info("scenario run completed",
		"scenario", h.scenario.Name,
		"run", summary.Label(),
		"states", summary.States,
		"transitions", summary.Transitions,
	)
	return &summary, nil
}

// expectation returns the scenario's Expect or, when absent, the model's
// own counts. A capped scenario without Expect checks nothing exact.
func (h *Harness) expectation() (*Expect, error) {
	if h.scenario.Expect != nil {
		return h.scenario.Expect, nil
	}
	if h.scenario.MaxStates > 0 {
		return &Expect{}, nil
	}

	var states, transitions int64
	switch {
	case h.scenario.Model == RandomModel:
		g, err := randomGraph(h.scenario.Params)
		if err != nil {
			return nil, err
		}
		states, transitions = g.Reachable()
	default:
		info, ok := models.Lookup(h.scenario.Model)
		if !ok {
			return &Expect{}, nil
		}
		params, err := info.Params(h.scenario.Params)
		if err != nil {
			return nil, err
		}
		states, transitions = info.Expect(params)
	}
	truncated := false
	return &Expect{States: &states, Transitions: &transitions, Truncated: &truncated}, nil
}

func resolveModel(name string, params map[string]int) (explore.Model, error) {
	if name == RandomModel {
		return randomGraph(params)
	}
	return models.Resolve(name, params)
}

// randomGraph builds the graph for params n (default 100), degree
// (default 3) and seed (default 1).
func randomGraph(params map[string]int) (*testutil.Graph, error) {
	p := map[string]int{"n": 100, "degree": 3, "seed": 1}
	for k, v := range params {
		if _, ok := p[k]; !ok {
			return nil, fmt.Errorf("model %s has no parameter %q (have degree, n, seed)", RandomModel, k)
		}
		p[k] = v
	}
	if p["n"] < 1 || p["degree"] < 0 {
		return nil, fmt.Errorf("model %s needs n >= 1 and degree >= 0", RandomModel)
	}
	return testutil.Random(p["n"], p["degree"], uint64(p["seed"])), nil
}
