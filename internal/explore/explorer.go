// Package explore drives a multi-worker breadth-first exploration of a
// Model's reachable states.
//
// A run moves through Seed → Running → Draining → Done. Seed inserts the
// single initial state. Running workers pop states from the frontier, ask the
// model for successors and push every successor the store reports as new.
//
// Termination in the pooled strategy uses an outstanding-work counter: it is
// incremented before every push and decremented after an expansion has
// reported all its successors. The worker that brings it to zero has proven
// that the frontier is empty and no expansion is in flight, and releases the
// rest. The level strategy instead joins all workers after each level.
//
// Counters and queues are owned by one Explorer and live for one Run.
package explore

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/statespace/internal/frontier"
	"github.com/roach88/statespace/internal/statestore"
)

// Strategy selects how workers share the frontier.
type Strategy string

const (
	// StrategyPooled shares one queue; discovery order is arbitrary.
	StrategyPooled Strategy = "pooled"
	// StrategyLevel expands level k completely before level k+1.
	StrategyLevel Strategy = "level"
)

// Strategies lists every supported strategy.
func Strategies() []Strategy {
	return []Strategy{StrategyPooled, StrategyLevel}
}

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	for _, st := range Strategies() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown strategy %q (want one of %v)", s, Strategies())
}

// DefaultIdleWait bounds how long an idle pooled worker sleeps before
// re-checking the frontier.
const DefaultIdleWait = 200 * time.Microsecond

// Report summarizes one run. Counts are final even when the run stopped early.
type Report struct {
	RunID       string
	Model       string
	Strategy    Strategy
	Frontier    frontier.Kind
	Backend     statestore.BackendKind
	Workers     int
	States      int64
	Transitions int64
	// Depth is the number of breadth-first levels; zero for the pooled strategy.
	Depth int
	// Truncated is set when the run ended before the frontier was exhausted.
	Truncated  bool
	Elapsed    time.Duration
	StartedAt  time.Time
	Partitions []statestore.PartitionStats
}

// Explorer runs one exploration of a model over a store.
type Explorer struct {
	store        *statestore.Store
	model        Model
	workers      int
	strategy     Strategy
	frontierKind frontier.Kind
	maxStates    int64
	idleWait     time.Duration
	metrics      *Metrics
	runIDs       RunIDGenerator

	phase atomic.Int32
	ran   atomic.Bool

	states      atomic.Int64
	transitions atomic.Int64
	pending     atomic.Int64
	push        func(statestore.StateID)

	halt      chan struct{}
	haltOnce  sync.Once
	stopped   atomic.Bool
	completed atomic.Bool

	errMu sync.Mutex
	err   error
}

// Option configures an Explorer.
type Option func(*Explorer)

// WithWorkers sets the number of worker goroutines.
// Default: runtime.NumCPU(), capped by the store's worker count.
func WithWorkers(n int) Option {
	return func(x *Explorer) {
		x.workers = n
	}
}

// WithStrategy selects pooled or level-synchronous search. Default: pooled.
func WithStrategy(s Strategy) Option {
	return func(x *Explorer) {
		x.strategy = s
	}
}

// WithFrontier selects the frontier queue implementation. Default: lockfree.
func WithFrontier(k frontier.Kind) Option {
	return func(x *Explorer) {
		x.frontierKind = k
	}
}

// WithMaxStates stops the run once n distinct states are known.
// In-flight expansions complete, so the final count may exceed n slightly.
// Zero means no limit.
func WithMaxStates(n int64) Option {
	return func(x *Explorer) {
		x.maxStates = n
	}
}

// WithMetrics exports progress to m.
func WithMetrics(m *Metrics) Option {
	return func(x *Explorer) {
		x.metrics = m
	}
}

// WithRunIDGenerator sets the run ID source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(x *Explorer) {
		x.runIDs = g
	}
}

// WithIdleWait overrides DefaultIdleWait.
func WithIdleWait(d time.Duration) Option {
	return func(x *Explorer) {
		x.idleWait = d
	}
}

// New creates an Explorer for model over s.
func New(s *statestore.Store, model Model, opts ...Option) *Explorer {
	x := &Explorer{
		store:        s,
		model:        model,
		workers:      min(runtime.NumCPU(), s.Workers()),
		strategy:     StrategyPooled,
		frontierKind: frontier.KindLockFree,
		idleWait:     DefaultIdleWait,
		runIDs:       UUIDv7Generator{},
		halt:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Phase returns the current lifecycle phase. Safe from any goroutine.
func (x *Explorer) Phase() Phase {
	return Phase(x.phase.Load())
}

func (x *Explorer) setPhase(p Phase) {
	x.phase.Store(int32(p))
}

// Run explores the model to completion, to the state cap, or until ctx is
// done. The report is returned in every case; err is the first model, store
// or context error.
func (x *Explorer) Run(ctx context.Context) (*Report, error) {
	if !x.ran.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}
	if x.workers < 1 || x.workers > x.store.Workers() {
		return nil, fmt.Errorf("explore: %d workers, store accepts 1..%d", x.workers, x.store.Workers())
	}

	runID := x.runIDs.Generate()
	model := ModelName(x.model)
	start := time.Now()
	slog.Info("exploration starting",
		"run_id", runID,
		"model", model,
		"workers", x.workers,
		"strategy", x.strategy,
		"frontier", x.frontierKind,
		"backend", x.store.Backend(),
	)

	workers := make([]*Worker, x.workers)
	for i := range workers {
		workers[i] = &Worker{id: i, x: x, store: x.store}
	}

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case <-ctx.Done():
			slog.Info("exploration stopping: context cancelled")
			x.fail(ctx.Err())
		case <-x.halt:
		}
	}()

	var depth int
	var err error
	switch {
	case ctx.Err() != nil:
		err = ctx.Err()
	case x.strategy == StrategyPooled:
		err = x.runPooled(workers)
	case x.strategy == StrategyLevel:
		depth, err = x.runLevel(workers)
	default:
		err = fmt.Errorf("explore: unknown strategy %q", x.strategy)
	}
	if err != nil {
		x.fail(err)
	}

	x.setPhase(PhaseDraining)
	x.haltOnce.Do(func() { close(x.halt) })
	<-watchDone
	x.setPhase(PhaseDone)

	report := &Report{
		RunID:       runID,
		Model:       model,
		Strategy:    x.strategy,
		Frontier:    x.frontierKind,
		Backend:     x.store.Backend(),
		Workers:     x.workers,
		States:      x.states.Load(),
		Transitions: x.transitions.Load(),
		Depth:       depth,
		Truncated:   !x.completed.Load(),
		Elapsed:     time.Since(start),
		StartedAt:   start,
		Partitions:  x.store.Stats(),
	}

	runErr := x.firstErr()
	if runErr != nil {
		slog.Error("exploration failed", "run_id", runID, "error", runErr)
	}
	slog.Info("exploration done",
		"run_id", runID,
		"states", report.States,
		"transitions", report.Transitions,
		"depth", report.Depth,
		"truncated", report.Truncated,
		"elapsed", report.Elapsed,
	)
	return report, runErr
}

// seed inserts the initial state and pushes it.
func (x *Explorer) seed(w *Worker) error {
	x.setPhase(PhaseSeed)

	if err := x.model.Init(w); err != nil {
		return &ModelError{Phase: PhaseSeed, StateID: statestore.NoState, Err: err}
	}
	id, err := x.model.Initial(w)
	if err != nil {
		return &ModelError{Phase: PhaseSeed, StateID: statestore.NoState, Err: err}
	}
	if _, err := w.GetState(id); err != nil {
		return &ModelError{Phase: PhaseSeed, StateID: id, Err: fmt.Errorf("initial state: %w", err)}
	}
	if n := x.states.Load(); n != 1 {
		return &ModelError{Phase: PhaseSeed, StateID: id, Err: fmt.Errorf("initial inserted %d root states, want 1", n)}
	}

	x.push(id)
	slog.Debug("initial state seeded", "state", id)
	return nil
}

func (x *Explorer) runPooled(workers []*Worker) error {
	q, err := frontier.New(x.frontierKind)
	if err != nil {
		return err
	}
	defer q.Close()

	x.push = func(id statestore.StateID) {
		x.pending.Add(1)
		x.metrics.pushed()
		q.Push(id)
	}

	if err := x.seed(workers[0]); err != nil {
		return err
	}
	if x.stopped.Load() {
		return nil
	}

	x.setPhase(PhaseRunning)
	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			x.poolWorker(w, q)
		}(w)
	}
	wg.Wait()
	return nil
}

func (x *Explorer) poolWorker(w *Worker, q frontier.Queue) {
	idle := time.NewTimer(x.idleWait)
	idle.Stop()
	defer idle.Stop()

	for !x.stopped.Load() {
		id, ok := q.Pop()
		if !ok {
			if x.pending.Load() == 0 {
				return
			}
			idle.Reset(x.idleWait)
			select {
			case <-x.halt:
				return
			case <-q.Wait():
			case <-idle.C:
			}
			continue
		}

		if err := w.expand(x.model, id); err != nil {
			x.fail(err)
		}
		if x.pending.Add(-1) == 0 {
			x.finish()
		}
	}
}

func (x *Explorer) runLevel(workers []*Worker) (int, error) {
	lvl, err := frontier.NewLevel(x.frontierKind)
	if err != nil {
		return 0, err
	}
	defer lvl.Close()

	x.push = func(id statestore.StateID) {
		x.metrics.pushed()
		lvl.Push(id)
	}

	if err := x.seed(workers[0]); err != nil {
		return 0, err
	}
	lvl.Advance()
	x.metrics.level(lvl.Depth())
	if x.stopped.Load() {
		return lvl.Depth(), nil
	}

	x.setPhase(PhaseRunning)
	for {
		var wg sync.WaitGroup
		for _, w := range workers {
			wg.Add(1)
			go func(w *Worker) {
				defer wg.Done()
				for !x.stopped.Load() {
					id, ok := lvl.Pop()
					if !ok {
						return
					}
					if err := w.expand(x.model, id); err != nil {
						x.fail(err)
					}
				}
			}(w)
		}
		wg.Wait()

		if x.stopped.Load() {
			return lvl.Depth(), nil
		}
		if !lvl.Advance() {
			x.finish()
			return lvl.Depth(), nil
		}
		x.metrics.level(lvl.Depth())
		slog.Debug("level advanced",
			"depth", lvl.Depth(),
			"size", lvl.Current(),
			"states", x.states.Load(),
		)
	}
}

// discovered counts a new root state and enforces the state cap.
func (x *Explorer) discovered() {
	n := x.states.Add(1)
	x.metrics.state()
	if x.maxStates > 0 && n >= x.maxStates && !x.stopped.Load() {
		slog.Info("exploration stopping: state cap reached", "max_states", x.maxStates)
		x.stop()
	}
}

// finish marks the state space exhausted and releases idle workers. A run
// that was already stopped stays incomplete.
func (x *Explorer) finish() {
	if !x.stopped.Load() {
		x.completed.Store(true)
	}
	x.setPhase(PhaseDraining)
	x.haltOnce.Do(func() { close(x.halt) })
}

// stop asks every worker to exit after its current expansion.
func (x *Explorer) stop() {
	x.stopped.Store(true)
	x.haltOnce.Do(func() { close(x.halt) })
}

// fail records the first error and stops the run.
func (x *Explorer) fail(err error) {
	x.errMu.Lock()
	if x.err == nil {
		x.err = err
	}
	x.errMu.Unlock()
	x.stop()
}

func (x *Explorer) firstErr() error {
	x.errMu.Lock()
	defer x.errMu.Unlock()
	return x.err
}
