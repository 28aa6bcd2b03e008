package lfq

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := New[int]()

	for i := 1; i <= 3; i++ {
		q.Enqueue(i)
	}
	assert.Equal(t, 3, q.Len())

	for i := 1; i <= 3; i++ {
		v, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}

	assert.True(t, q.Empty())
	assert.Equal(t, 0, q.Len())
}

func TestQueue_DequeueEmpty(t *testing.T) {
	q := New[string]()

	v, ok := q.Dequeue()
	assert.False(t, ok)
	assert.Equal(t, "", v)
	assert.True(t, q.Empty())
}

func TestQueue_InterleavedReuse(t *testing.T) {
	q := New[int]()

	q.Enqueue(1)
	v, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = q.Dequeue()
	assert.False(t, ok)

	q.Enqueue(2)
	q.Enqueue(3)
	v, _ = q.Dequeue()
	assert.Equal(t, 2, v)
	assert.False(t, q.Empty())
}

func TestQueue_ConcurrentProducersConsumers(t *testing.T) {
	q := New[int]()
	const producers = 4
	const perProducer = 5000
	const total = producers * perProducer

	var produced sync.WaitGroup
	for p := 0; p < producers; p++ {
		produced.Add(1)
		go func(p int) {
			defer produced.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(p*perProducer + i)
			}
		}(p)
	}

	seen := make([]atomic.Bool, total)
	var consumed atomic.Int64
	var consumers sync.WaitGroup
	for c := 0; c < 4; c++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for consumed.Load() < total {
				v, ok := q.Dequeue()
				if !ok {
					continue
				}
				if seen[v].Swap(true) {
					t.Errorf("value %d dequeued twice", v)
				}
				consumed.Add(1)
			}
		}()
	}

	produced.Wait()
	consumers.Wait()

	for i := range seen {
		assert.True(t, seen[i].Load(), "value %d lost", i)
	}
	assert.True(t, q.Empty())
}

func TestQueue_PerProducerOrderPreserved(t *testing.T) {
	q := New[[2]int]()
	const perProducer = 2000

	var wg sync.WaitGroup
	for p := 0; p < 2; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue([2]int{p, i})
			}
		}(p)
	}
	wg.Wait()

	last := [2]int{-1, -1}
	for {
		v, ok := q.Dequeue()
		if !ok {
			break
		}
		assert.Greater(t, v[1], last[v[0]], "producer %d order violated", v[0])
		last[v[0]] = v[1]
	}
	assert.Equal(t, [2]int{perProducer - 1, perProducer - 1}, last)
}
