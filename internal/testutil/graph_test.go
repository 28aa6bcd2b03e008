package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRing_Reachable(t *testing.T) {
	states, transitions := Ring(10).Reachable()
	assert.Equal(t, int64(10), states)
	assert.Equal(t, int64(10), transitions)
}

func TestGraph_ReachableSkipsUnreachable(t *testing.T) {
	g := NewGraph("island", [][]int{
		{1, 1},
		{0},
		{0, 1}, // unreachable
	})
	states, transitions := g.Reachable()
	assert.Equal(t, int64(2), states)
	assert.Equal(t, int64(3), transitions)
}

func TestRandom_IsReproducible(t *testing.T) {
	a := Random(50, 3, 7)
	b := Random(50, 3, 7)
	assert.Equal(t, a.Edges, b.Edges)
	assert.Equal(t, a.Name(), b.Name())

	c := Random(50, 3, 8)
	assert.NotEqual(t, a.Edges, c.Edges)
}

func TestRandom_AllReachable(t *testing.T) {
	states, _ := Random(300, 2, 5).Reachable()
	assert.Equal(t, int64(300), states)
}
