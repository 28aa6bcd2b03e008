package hashindex

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyRecord is returned for zero-length inserts.
	ErrEmptyRecord = errors.New("empty record")

	// ErrNotFound is returned when an identity addresses no record.
	ErrNotFound = errors.New("record not found")

	// ErrBadThread is returned for a thread index outside the configured range.
	ErrBadThread = errors.New("thread index out of range")

	// ErrRange is returned by FindRange for a range outside the record.
	ErrRange = errors.New("range outside record")
)

// CapacityError reports an exhausted sequence space in one bucket chain.
type CapacityError struct {
	Bucket uint32
	Thread uint32
	MaxSeq uint64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("bucket %d thread %d: sequence space exhausted (max %d)", e.Bucket, e.Thread, e.MaxSeq)
}

// IntegrityError reports a corrupted record or an identity that does not
// match the record it resolves to. It is not recoverable.
type IntegrityError struct {
	Bucket uint32
	Thread uint32
	Seq    uint32
	Length int
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation in bucket %d (thread=%d, seq=%d, len=%d): %s",
		e.Bucket, e.Thread, e.Seq, e.Length, e.Reason)
}
