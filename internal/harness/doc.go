// Package harness runs conformance scenarios against the explorer.
//
// A scenario names one model and a matrix of worker counts, strategies,
// frontier kinds and store backends. Every combination explores the model
// from scratch; all of them must report the same state and transition
// counts, and those counts must match the expectation.
//
// # Scenario Format
//
//	name: ring_default
//	description: "ring of 10 visits every position once"
//	model: ring            # built-in, random graph, or path/to/file.cue[#model]
//	params: { size: 10 }
//	matrix:
//	  workers: [1, 2, 4, 8]
//	  strategies: [pooled, level]
//	  frontiers: [lockfree, locked]
//	  backends: [slab, map, sqlite, pebble]
//	expect:
//	  states: 10
//	  transitions: 10
//	  depth: 10            # level strategy only
//	assertions:
//	  - type: partition_records
//	    partition: sub
//	    count: 14
//
// When expect is omitted the counts come from the model itself: built-ins
// know their exact counts and random graphs are traversed sequentially.
//
// The model "random" builds a random graph from params n, degree and seed.
//
// # Golden Files
//
// RunWithGolden stores a JSON summary of every run under
// testdata/golden/<name>.golden. Elapsed times and run ids are left out so
// the summary only changes when behaviour does. Regenerate with:
//
//	go test ./internal/harness -update
package harness
