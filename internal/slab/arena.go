// Package slab provides append-only byte-record arenas.
//
// An Arena is a pre-sized flat buffer with an atomic cursor. Space is claimed
// with a compare-and-swap loop on the cursor, so concurrent producers never
// coordinate through a lock to allocate. Records are never moved or freed for
// the lifetime of the arena.
//
// Record layout (little-endian):
//
//	+--------+--------+----------------+-------------------+
//	| id u32 | len u32|    tag u64     | payload (len)     | pad to Align
//	+--------+--------+----------------+-------------------+
//
// Arenas are chained through a CAS-linked next pointer. A full arena does not
// block anyone: the caller links a fresh arena and retries there.
//
// Find scans the arena linearly and must not run concurrently with Insert on
// the same arena. The hash index guarantees this with its bucket lock.
package slab

import (
	"bytes"
	"encoding/binary"
	"sync/atomic"
)

const (
	// Align is the allocation unit for record payloads.
	Align = 8

	// HeaderSize is the size of the per-record header.
	HeaderSize = 16
)

// Arena is a single slab segment.
type Arena struct {
	buf    []byte
	cursor atomic.Int64
	next   atomic.Pointer[Arena]
}

// New creates an arena with size bytes of capacity.
func New(size int) *Arena {
	if size < HeaderSize {
		size = HeaderSize
	}
	return &Arena{buf: make([]byte, size)}
}

// Footprint returns the number of arena bytes a record of length n occupies.
func Footprint(n int) int {
	return HeaderSize + alignUp(n)
}

func alignUp(n int) int {
	return (n + Align - 1) &^ (Align - 1)
}

// Cap returns the arena capacity in bytes.
func (a *Arena) Cap() int {
	return len(a.buf)
}

// Used returns the number of bytes claimed so far.
func (a *Arena) Used() int {
	return int(a.cursor.Load())
}

// Insert claims space for data and writes the record.
//
// Returns the record offset, or ok=false if the arena cannot fit the record.
// A full arena is not an error: link a successor and retry there.
func (a *Arena) Insert(id uint32, tag uint64, data []byte) (off int, ok bool) {
	need := int64(Footprint(len(data)))
	for {
		cur := a.cursor.Load()
		end := cur + need
		if end > int64(len(a.buf)) {
			return -1, false
		}
		if a.cursor.CompareAndSwap(cur, end) {
			rec := a.buf[cur:end]
			binary.LittleEndian.PutUint32(rec[0:4], id)
			binary.LittleEndian.PutUint32(rec[4:8], uint32(len(data)))
			binary.LittleEndian.PutUint64(rec[8:16], tag)
			copy(rec[HeaderSize:], data)
			return int(cur), true
		}
	}
}

// Find scans the arena for a record with the given tag and content.
func (a *Arena) Find(tag uint64, data []byte) (id uint32, off int, ok bool) {
	end := int(a.cursor.Load())
	for pos := 0; pos+HeaderSize <= end; {
		n := int(binary.LittleEndian.Uint32(a.buf[pos+4 : pos+8]))
		next := pos + Footprint(n)
		if next > end {
			// torn or corrupt header; stop rather than read garbage
			return 0, -1, false
		}
		if n == len(data) && binary.LittleEndian.Uint64(a.buf[pos+8:pos+16]) == tag {
			payload := a.buf[pos+HeaderSize : pos+HeaderSize+n]
			if bytes.Equal(payload, data) {
				return binary.LittleEndian.Uint32(a.buf[pos : pos+4]), pos, true
			}
		}
		pos = next
	}
	return 0, -1, false
}

// Record returns the id and payload of the record at off.
// The payload aliases arena memory and must not be modified.
// ok is false if off does not address a well-formed record.
func (a *Arena) Record(off int) (id uint32, data []byte, ok bool) {
	end := int(a.cursor.Load())
	if off < 0 || off+HeaderSize > end {
		return 0, nil, false
	}
	n := int(binary.LittleEndian.Uint32(a.buf[off+4 : off+8]))
	if off+Footprint(n) > end {
		return 0, nil, false
	}
	id = binary.LittleEndian.Uint32(a.buf[off : off+4])
	return id, a.buf[off+HeaderSize : off+HeaderSize+n : off+HeaderSize+n], true
}

// Next returns the successor arena, or nil.
func (a *Arena) Next() *Arena {
	return a.next.Load()
}

// Link installs next as the successor if none is set yet.
// Returns whichever arena ends up linked.
func (a *Arena) Link(next *Arena) *Arena {
	if a.next.CompareAndSwap(nil, next) {
		return next
	}
	return a.next.Load()
}
