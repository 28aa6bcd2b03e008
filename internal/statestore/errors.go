package statestore

import (
	"errors"
	"fmt"

	"github.com/roach88/statespace/internal/hashindex"
)

var (
	// ErrEmptyState is returned for zero-length inserts.
	ErrEmptyState = errors.New("empty state")

	// ErrNotFound is returned when an id addresses no stored content.
	ErrNotFound = errors.New("state not found")

	// ErrOutOfRange is returned for partial reads outside a stored state.
	ErrOutOfRange = errors.New("read out of range")

	// ErrBadDelta is returned for deltas with a negative offset or a result
	// longer than MaxSlots.
	ErrBadDelta = errors.New("invalid delta")

	// ErrUnknownPartition is returned for partitions the store was not opened with.
	ErrUnknownPartition = errors.New("unknown partition")

	// ErrUnknownBackend is returned by Open for an unrecognized backend kind.
	ErrUnknownBackend = errors.New("unknown backend")
)

// IntegrityError reports stored content that violates a store invariant,
// such as a record whose length is not a whole number of slots or two
// different records behind one identity. It is not recoverable.
type IntegrityError struct {
	Partition Partition
	ID        StateID
	Length    int
	Err       error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation in %s partition (id=%s, len=%d): %v", e.Partition, e.ID, e.Length, e.Err)
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// IsIntegrityError reports whether err is an unrecoverable integrity failure
// from this package or the hash index.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	if errors.As(err, &ie) {
		return true
	}
	var he *hashindex.IntegrityError
	return errors.As(err, &he)
}

// notFound maps a backend miss to ErrNotFound.
func notFound(p Partition, id StateID, err error) error {
	return fmt.Errorf("%s %s: %w (%v)", p, id, ErrNotFound, err)
}
