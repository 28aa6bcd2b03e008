package statestore

import (
	"errors"
	"fmt"
	"io"

	"github.com/roach88/statespace/internal/hashindex"
)

// Backend interns byte records within one partition.
//
// Implementations must be safe for concurrent use, must return the same id
// for byte-identical records, and must never hand out an id twice. Misses
// wrap ErrNotFound; range reads outside a record wrap ErrOutOfRange.
type Backend interface {
	// Insert interns record on behalf of worker and reports whether it was new.
	Insert(worker int, record []byte) (id uint64, isNew bool, err error)
	// Find returns the whole record. The slice must not be modified.
	Find(id uint64) ([]byte, error)
	// FindRange returns n bytes at off without requiring the whole record.
	FindRange(id uint64, off, n int) ([]byte, error)
	// Len returns the number of records.
	Len() int
}

// BackendKind names a Backend implementation.
type BackendKind string

const (
	// BackendSlab is the sharded slab hash index (default).
	BackendSlab BackendKind = "slab"
	// BackendMap is a concurrent hash map keyed by record content.
	BackendMap BackendKind = "map"
	// BackendSQLite keeps records in a SQLite table.
	BackendSQLite BackendKind = "sqlite"
	// BackendPebble keeps records in a Pebble LSM directory.
	BackendPebble BackendKind = "pebble"
)

// BackendKinds lists every supported backend.
func BackendKinds() []BackendKind {
	return []BackendKind{BackendSlab, BackendMap, BackendSQLite, BackendPebble}
}

// ParseBackend validates a backend name.
func ParseBackend(s string) (BackendKind, error) {
	for _, k := range BackendKinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q (want one of %v)", ErrUnknownBackend, s, BackendKinds())
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openBackends creates one backend per partition plus a closer releasing any
// resources they share.
func openBackends(cfg Config) ([]Backend, io.Closer, error) {
	parts := make([]Backend, cfg.Partitions)

	switch cfg.Backend {
	case BackendSlab:
		for i := range parts {
			x, err := hashindex.New(hashindex.Config{
				BucketBits: cfg.BucketBits,
				Threads:    cfg.Workers,
				SlabSize:   cfg.SlabSize,
			})
			if err != nil {
				return nil, nil, err
			}
			parts[i] = slabBackend{x: x}
		}
		return parts, nopCloser{}, nil

	case BackendMap:
		for i := range parts {
			parts[i] = newMapBackend()
		}
		return parts, nopCloser{}, nil

	case BackendSQLite:
		return openSQLiteBackends(cfg, parts)

	case BackendPebble:
		return openPebbleBackends(cfg, parts)

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// slabBackend adapts hashindex.Index to Backend.
type slabBackend struct {
	x *hashindex.Index
}

func (b slabBackend) Insert(worker int, record []byte) (uint64, bool, error) {
	id, isNew, err := b.x.Insert(worker, record)
	if errors.Is(err, hashindex.ErrEmptyRecord) {
		return 0, false, ErrEmptyState
	}
	return id, isNew, err
}

func (b slabBackend) Find(id uint64) ([]byte, error) {
	data, err := b.x.Find(id)
	if errors.Is(err, hashindex.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return data, err
}

func (b slabBackend) FindRange(id uint64, off, n int) ([]byte, error) {
	data, err := b.x.FindRange(id, off, n)
	switch {
	case errors.Is(err, hashindex.ErrNotFound):
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, hashindex.ErrRange):
		return nil, fmt.Errorf("%w: %v", ErrOutOfRange, err)
	}
	return data, err
}

func (b slabBackend) Len() int {
	return b.x.Len()
}
