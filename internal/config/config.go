// Package config loads exploration settings from YAML.
//
// Every field has a default; a file only needs the keys it changes:
//
//	workers: 8
//	strategy: level
//	max_states: 1000000
//	store:
//	  backend: pebble
//	  path: /var/tmp/states
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/statespace/internal/explore"
	"github.com/roach88/statespace/internal/frontier"
	"github.com/roach88/statespace/internal/hashindex"
	"github.com/roach88/statespace/internal/statestore"
)

// Config holds the settings for one exploration.
type Config struct {
	// Workers is the goroutine count. Zero means runtime.NumCPU().
	Workers   int           `yaml:"workers"`
	Strategy  string        `yaml:"strategy"`
	Frontier  string        `yaml:"frontier"`
	MaxStates int64         `yaml:"max_states"`
	IdleWait  time.Duration `yaml:"idle_wait"`
	Store     Store         `yaml:"store"`
}

// Store configures the state store.
type Store struct {
	Backend    string `yaml:"backend"`
	BucketBits uint   `yaml:"bucket_bits"`
	SlabSize   int    `yaml:"slab_size"`
	// Path is the sqlite file or pebble directory. Empty means in-memory
	// for sqlite and a temporary directory for pebble.
	Path string `yaml:"path"`
	// ChunkKinds is the number of chunk partitions after root and sub.
	ChunkKinds int `yaml:"chunk_kinds"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Strategy: string(explore.StrategyPooled),
		Frontier: string(frontier.KindLockFree),
		IdleWait: explore.DefaultIdleWait,
		Store: Store{
			Backend:    string(statestore.BackendSlab),
			BucketBits: hashindex.DefaultBucketBits,
			SlabSize:   hashindex.DefaultSlabSize,
		},
	}
}

// Load reads path over the defaults and validates the result.
// Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field.
func (c Config) Validate() error {
	if c.Workers < 0 || c.Workers > hashindex.MaxThreads {
		return fmt.Errorf("workers must be in [0, %d], got %d", hashindex.MaxThreads, c.Workers)
	}
	if _, err := explore.ParseStrategy(c.Strategy); err != nil {
		return err
	}
	if _, err := frontier.ParseKind(c.Frontier); err != nil {
		return err
	}
	if c.MaxStates < 0 {
		return fmt.Errorf("max_states must not be negative, got %d", c.MaxStates)
	}
	if c.IdleWait < 0 {
		return fmt.Errorf("idle_wait must not be negative, got %s", c.IdleWait)
	}
	if _, err := statestore.ParseBackend(c.Store.Backend); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if c.Store.BucketBits > hashindex.MaxBucketBits {
		return fmt.Errorf("store: bucket_bits must be at most %d, got %d", hashindex.MaxBucketBits, c.Store.BucketBits)
	}
	if c.Store.SlabSize < 0 {
		return fmt.Errorf("store: slab_size must not be negative, got %d", c.Store.SlabSize)
	}
	if c.Store.ChunkKinds < 0 || c.Store.ChunkKinds > 1<<16-2 {
		return fmt.Errorf("store: chunk_kinds out of range: %d", c.Store.ChunkKinds)
	}
	return nil
}

// WorkerCount resolves a zero Workers to the CPU count.
func (c Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return min(runtime.NumCPU(), hashindex.MaxThreads)
}

// StoreConfig returns the statestore configuration. Call Validate first.
func (c Config) StoreConfig() statestore.Config {
	backend, _ := statestore.ParseBackend(c.Store.Backend)
	return statestore.Config{
		Backend:    backend,
		Partitions: 2 + c.Store.ChunkKinds,
		Workers:    c.WorkerCount(),
		BucketBits: c.Store.BucketBits,
		SlabSize:   c.Store.SlabSize,
		Path:       c.Store.Path,
	}
}

// ExploreOptions returns the explorer options. Call Validate first.
func (c Config) ExploreOptions() []explore.Option {
	strategy, _ := explore.ParseStrategy(c.Strategy)
	kind, _ := frontier.ParseKind(c.Frontier)
	opts := []explore.Option{
		explore.WithWorkers(c.WorkerCount()),
		explore.WithStrategy(strategy),
		explore.WithFrontier(kind),
	}
	if c.MaxStates > 0 {
		opts = append(opts, explore.WithMaxStates(c.MaxStates))
	}
	if c.IdleWait > 0 {
		opts = append(opts, explore.WithIdleWait(c.IdleWait))
	}
	return opts
}
