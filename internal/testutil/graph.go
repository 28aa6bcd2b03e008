// Package testutil provides models and generators for deterministic tests.
package testutil

import (
	"fmt"
	"math/rand/v2"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/roach88/statespace/internal/explore"
	"github.com/roach88/statespace/internal/statestore"
)

// Graph is a model over an explicit directed graph. Node 0 is initial and a
// state is the vector [node, ^node].
//
// Every expansion is counted per node, so tests can check that no state was
// expanded twice.
type Graph struct {
	Label string
	Edges [][]int

	// FailAt makes NextAll fail on that node; negative disables.
	FailAt int
	// Miscount makes NextAll return one more than it reported.
	Miscount bool
	// Deltas reports successors as deltas from the expanded state.
	Deltas bool

	expanded *xsync.MapOf[int, int]
}

// NewGraph creates a model over edges.
func NewGraph(label string, edges [][]int) *Graph {
	return &Graph{
		Label:    label,
		Edges:    edges,
		FailAt:   -1,
		expanded: xsync.NewMapOf[int, int](),
	}
}

// Ring returns a graph i -> (i+1) mod n.
func Ring(n int) *Graph {
	edges := make([][]int, n)
	for i := range edges {
		edges[i] = []int{(i + 1) % n}
	}
	return NewGraph(fmt.Sprintf("ring-%d", n), edges)
}

// Random returns a reproducible graph of n nodes: a chain i -> i+1 through
// every node plus 0..maxDegree random edges per node. Edges may repeat and
// may loop.
func Random(n, maxDegree int, seed uint64) *Graph {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	edges := make([][]int, n)
	for i := range edges {
		d := r.IntN(maxDegree + 1)
		for j := 0; j < d; j++ {
			edges[i] = append(edges[i], r.IntN(n))
		}
	}
	for i := 0; i+1 < n; i++ {
		edges[i] = append(edges[i], i+1)
	}
	return NewGraph(fmt.Sprintf("random-%d-%d-%d", n, maxDegree, seed), edges)
}

func (g *Graph) Name() string { return g.Label }

func (g *Graph) Init(*explore.Worker) error {
	if len(g.Edges) == 0 {
		return fmt.Errorf("graph %q has no nodes", g.Label)
	}
	return nil
}

func (g *Graph) Initial(w *explore.Worker) (statestore.StateID, error) {
	ins, err := w.NewState(nodeState(0))
	return ins.ID, err
}

func (g *Graph) NextAll(w *explore.Worker, id statestore.StateID) (int, error) {
	fs, err := w.GetState(id)
	if err != nil {
		return 0, err
	}
	node := int(fs.Slots[0])
	g.expanded.Compute(node, func(old int, _ bool) (int, bool) {
		return old + 1, false
	})
	if node == g.FailAt {
		return 0, fmt.Errorf("node %d refuses to expand", node)
	}

	for _, to := range g.Edges[node] {
		if g.Deltas {
			_, err = w.NewTransitionDelta(id, statestore.NewDelta(0, nodeState(to)...))
		} else {
			_, err = w.NewTransition(nodeState(to))
		}
		if err != nil {
			return 0, err
		}
	}

	n := len(g.Edges[node])
	if g.Miscount {
		n++
	}
	return n, nil
}

func nodeState(n int) []statestore.Slot {
	return []statestore.Slot{statestore.Slot(n), ^statestore.Slot(n)}
}

// Reachable computes the expected state and transition counts sequentially.
func (g *Graph) Reachable() (states, transitions int64) {
	seen := make([]bool, len(g.Edges))
	queue := []int{0}
	seen[0] = true
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		states++
		transitions += int64(len(g.Edges[n]))
		for _, to := range g.Edges[n] {
			if !seen[to] {
				seen[to] = true
				queue = append(queue, to)
			}
		}
	}
	return states, transitions
}

// Expanded returns how many distinct nodes were expanded.
func (g *Graph) Expanded() int {
	return g.expanded.Size()
}

// Repeated returns the nodes expanded more than once.
func (g *Graph) Repeated() []int {
	var out []int
	g.expanded.Range(func(node, n int) bool {
		if n > 1 {
			out = append(out, node)
		}
		return true
	})
	return out
}

// Reset clears the expansion counts for reuse across runs.
func (g *Graph) Reset() {
	g.expanded.Clear()
}
