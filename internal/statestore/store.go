// Package statestore turns raw byte interning into a typed state store.
//
// States are slot vectors encoded little-endian and interned per partition
// through a Backend. Identical content within one partition always resolves
// to the same StateID. Deltas derive a new vector from a stored base and then
// go through the same content insert, so a sequence of deltas that restores
// earlier content lands on the earlier identity.
//
// Partial access policy: a delta reaching past the end of its base grows the
// vector and zero-fills the gap; a partial read outside a stored state fails
// with ErrOutOfRange.
package statestore

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/roach88/statespace/internal/hashindex"
	"github.com/roach88/statespace/internal/store"
)

// Config configures a Store.
type Config struct {
	Backend BackendKind
	// Partitions is the number of namespaces: root, sub, then chunk kinds.
	Partitions int
	// Workers bounds the worker index passed to Insert.
	Workers    int
	BucketBits uint
	SlabSize   int
	// Path is the sqlite database file or the pebble directory.
	Path string
	// Records, when set, is used by the sqlite backend instead of opening
	// Path. The caller keeps ownership.
	Records *store.Store
}

// DefaultConfig returns a slab-backed configuration with root and sub
// partitions for the given worker count.
func DefaultConfig(workers int) Config {
	return Config{
		Backend:    BackendSlab,
		Partitions: 2,
		Workers:    workers,
		BucketBits: hashindex.DefaultBucketBits,
		SlabSize:   hashindex.DefaultSlabSize,
	}
}

// Store is a partitioned deduplicating state store.
type Store struct {
	kind      BackendKind
	workers   int
	parts     []Backend
	closer    io.Closer
	closeOnce sync.Once
	closeErr  error
}

// Open creates a store. Every partition starts empty.
func Open(cfg Config) (*Store, error) {
	if cfg.Backend == "" {
		cfg.Backend = BackendSlab
	}
	if cfg.Partitions < 1 {
		return nil, fmt.Errorf("statestore: need at least one partition, got %d", cfg.Partitions)
	}
	if cfg.Partitions > 1<<16 {
		return nil, fmt.Errorf("statestore: too many partitions: %d", cfg.Partitions)
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("statestore: need at least one worker, got %d", cfg.Workers)
	}

	parts, closer, err := openBackends(cfg)
	if err != nil {
		return nil, fmt.Errorf("statestore: %w", err)
	}
	return &Store{kind: cfg.Backend, workers: cfg.Workers, parts: parts, closer: closer}, nil
}

// Backend returns the configured backend kind.
func (s *Store) Backend() BackendKind {
	return s.kind
}

// Workers returns the number of worker indexes Insert accepts.
func (s *Store) Workers() int {
	return s.workers
}

// Partitions returns the number of partitions.
func (s *Store) Partitions() int {
	return len(s.parts)
}

func (s *Store) partition(p Partition) (Backend, error) {
	if int(p) >= len(s.parts) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPartition, p)
	}
	return s.parts[p], nil
}

// Insert interns slots in partition p on behalf of worker.
func (s *Store) Insert(worker int, p Partition, slots []Slot) (InsertedState, error) {
	if len(slots) == 0 {
		return InsertedState{ID: NoState}, ErrEmptyState
	}
	b, err := s.partition(p)
	if err != nil {
		return InsertedState{ID: NoState}, err
	}

	id, isNew, err := b.Insert(worker, encodeSlots(slots))
	if err != nil {
		return InsertedState{ID: NoState}, fmt.Errorf("insert into %s: %w", p, err)
	}
	if StateID(id) == NoState {
		return InsertedState{ID: NoState}, &IntegrityError{
			Partition: p, ID: NoState, Length: len(slots) * SlotSize,
			Err: errors.New("backend produced the none sentinel"),
		}
	}
	return InsertedState{ID: StateID(id), New: isNew}, nil
}

// InsertDelta applies d to the content of base and interns the result in
// partition p. base is read from p; NoState means an empty base.
func (s *Store) InsertDelta(worker int, p Partition, base StateID, d Delta) (InsertedState, error) {
	var slots []Slot
	if base != NoState {
		fs, err := s.Get(p, base)
		if err != nil {
			return InsertedState{ID: NoState}, err
		}
		slots = fs.Slots
	}

	next, err := Apply(slots, d)
	if err != nil {
		return InsertedState{ID: NoState}, err
	}
	return s.Insert(worker, p, next)
}

// Get returns the full state addressed by id in partition p.
func (s *Store) Get(p Partition, id StateID) (FullState, error) {
	b, err := s.partition(p)
	if err != nil {
		return FullState{}, err
	}
	if id == NoState {
		return FullState{}, fmt.Errorf("%s %s: %w", p, id, ErrNotFound)
	}

	data, err := b.Find(uint64(id))
	if err != nil {
		return FullState{}, s.readErr(p, id, err)
	}
	slots, err := decodeSlots(data)
	if err != nil {
		return FullState{}, &IntegrityError{Partition: p, ID: id, Length: len(data), Err: err}
	}
	return FullState{ID: id, Partition: p, Slots: slots}, nil
}

// GetPartial returns n slots at slot offset off of the state addressed by id.
// Only the requested range is decoded.
func (s *Store) GetPartial(p Partition, id StateID, off, n int) ([]Slot, error) {
	b, err := s.partition(p)
	if err != nil {
		return nil, err
	}
	if off < 0 || n < 0 || off > MaxSlots || n > MaxSlots-off {
		return nil, fmt.Errorf("%s %s [%d,+%d): %w", p, id, off, n, ErrOutOfRange)
	}
	if id == NoState {
		return nil, fmt.Errorf("%s %s: %w", p, id, ErrNotFound)
	}

	data, err := b.FindRange(uint64(id), off*SlotSize, n*SlotSize)
	if err != nil {
		return nil, s.readErr(p, id, err)
	}
	slots, err := decodeSlots(data)
	if err != nil {
		return nil, &IntegrityError{Partition: p, ID: id, Length: len(data), Err: err}
	}
	return slots, nil
}

func (s *Store) readErr(p Partition, id StateID, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return notFound(p, id, err)
	case errors.Is(err, ErrOutOfRange):
		return fmt.Errorf("%s %s: %w", p, id, err)
	case IsIntegrityError(err):
		return err
	default:
		return fmt.Errorf("read %s %s: %w", p, id, err)
	}
}

// Len returns the number of distinct states in partition p.
func (s *Store) Len(p Partition) int {
	b, err := s.partition(p)
	if err != nil {
		return 0
	}
	return b.Len()
}

// PartitionStats counts the records of one partition.
type PartitionStats struct {
	Partition Partition
	Records   int
}

// Stats returns per-partition record counts in partition order.
func (s *Store) Stats() []PartitionStats {
	out := make([]PartitionStats, len(s.parts))
	for i, b := range s.parts {
		out[i] = PartitionStats{Partition: Partition(i), Records: b.Len()}
	}
	return out
}

// Close releases backend resources. It is safe to call more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.closer.Close()
	})
	return s.closeErr
}
