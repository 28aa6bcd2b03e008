// Package hashindex implements a sharded concurrent insert-or-find index for
// byte records.
//
// The index has 2^B buckets selected by the top bits of a mixed xxhash of the
// record. Each bucket holds a readers-writer lock and one slab chain per
// producer thread, so producers never contend on an allocation cursor. A
// record's identity packs (bucket, thread, sequence) through a Layout and
// resolves back to its record in O(1) through the bucket's published vector.
//
// Insert scans under the read lock, then takes the write lock and re-scans
// if anything was added in between. Only then is a new record committed, so
// two producers racing on identical content always agree on one identity.
package hashindex

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/roach88/statespace/internal/slab"
)

const (
	// DefaultBucketBits gives 4096 buckets.
	DefaultBucketBits = 12

	// DefaultSlabSize is the capacity of the first arena in each chain.
	DefaultSlabSize = 1 << 10
)

// Config configures an Index.
type Config struct {
	BucketBits  uint
	Threads     int
	SlabSize    int
	MaxSlabSize int
}

type recordRef struct {
	arena *slab.Arena
	off   int
}

// lane is one producer thread's chain inside a bucket.
type lane struct {
	chain   *slab.Chain
	records []recordRef
}

type bucket struct {
	mu    sync.RWMutex
	lanes []lane
	count int
}

// Index is a concurrent content-addressed record index.
type Index struct {
	layout   Layout
	buckets  []bucket
	slabSize int
	maxSlab  int
	total    atomic.Int64
}

// New creates an index.
func New(cfg Config) (*Index, error) {
	layout, err := NewLayout(cfg.BucketBits, cfg.Threads)
	if err != nil {
		return nil, fmt.Errorf("hashindex: %w", err)
	}
	if cfg.SlabSize <= 0 {
		cfg.SlabSize = DefaultSlabSize
	}
	if cfg.MaxSlabSize <= 0 {
		cfg.MaxSlabSize = slab.DefaultMaxSize
	}

	x := &Index{
		layout:   layout,
		buckets:  make([]bucket, layout.Buckets()),
		slabSize: cfg.SlabSize,
		maxSlab:  cfg.MaxSlabSize,
	}
	for i := range x.buckets {
		x.buckets[i].lanes = make([]lane, cfg.Threads)
	}
	return x, nil
}

// Layout returns the identity layout used by the index.
func (x *Index) Layout() Layout {
	return x.layout
}

// Len returns the number of records stored.
func (x *Index) Len() int {
	return int(x.total.Load())
}

// Insert interns data on behalf of thread.
// Returns the record identity and whether this call created it.
func (x *Index) Insert(thread int, data []byte) (uint64, bool, error) {
	if len(data) == 0 {
		return 0, false, ErrEmptyRecord
	}
	if thread < 0 || thread >= len(x.buckets[0].lanes) {
		return 0, false, fmt.Errorf("%w: %d", ErrBadThread, thread)
	}

	tag := xxhash.Sum64(data)
	bid := bucketOf(tag, x.layout.BucketBits)
	b := &x.buckets[bid]

	b.mu.RLock()
	h, found := b.lookup(bid, tag, data)
	seen := b.count
	b.mu.RUnlock()
	if found {
		return x.layout.Encode(h), false, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count != seen {
		if h, found := b.lookup(bid, tag, data); found {
			return x.layout.Encode(h), false, nil
		}
	}

	ln := &b.lanes[thread]
	seq := uint64(len(ln.records))
	if seq > x.layout.MaxSeq() {
		return 0, false, &CapacityError{Bucket: bid, Thread: uint32(thread), MaxSeq: x.layout.MaxSeq()}
	}
	if ln.chain == nil {
		ln.chain = slab.NewChain(x.slabSize, x.maxSlab)
	}

	arena, off := ln.chain.Insert(uint32(seq), tag, data)
	ln.records = append(ln.records, recordRef{arena: arena, off: off})
	b.count++
	x.total.Add(1)

	return x.layout.Encode(Handle{Bucket: bid, Thread: uint32(thread), Seq: uint32(seq)}), true, nil
}

// Find returns the record addressed by id.
// The returned slice aliases slab memory and must not be modified.
func (x *Index) Find(id uint64) ([]byte, error) {
	if !x.layout.Valid(id) {
		return nil, fmt.Errorf("%w: id %#x outside layout", ErrNotFound, id)
	}
	h := x.layout.Decode(id)
	if int(h.Thread) >= len(x.buckets[h.Bucket].lanes) {
		return nil, fmt.Errorf("%w: id %#x names thread %d", ErrNotFound, id, h.Thread)
	}

	b := &x.buckets[h.Bucket]
	b.mu.RLock()
	records := b.lanes[h.Thread].records
	if int(h.Seq) >= len(records) {
		b.mu.RUnlock()
		return nil, fmt.Errorf("%w: id %#x", ErrNotFound, id)
	}
	ref := records[h.Seq]
	b.mu.RUnlock()

	recID, data, ok := ref.arena.Record(ref.off)
	if !ok {
		return nil, &IntegrityError{Bucket: h.Bucket, Thread: h.Thread, Seq: h.Seq, Reason: "malformed record header"}
	}
	if recID != h.Seq {
		return nil, &IntegrityError{
			Bucket: h.Bucket, Thread: h.Thread, Seq: h.Seq, Length: len(data),
			Reason: fmt.Sprintf("record carries seq %d", recID),
		}
	}
	return data, nil
}

// FindRange returns n bytes at off of the record addressed by id.
func (x *Index) FindRange(id uint64, off, n int) ([]byte, error) {
	data, err := x.Find(id)
	if err != nil {
		return nil, err
	}
	if off < 0 || n < 0 || off+n > len(data) {
		return nil, fmt.Errorf("%w: [%d, %d) of length %d", ErrRange, off, off+n, len(data))
	}
	return data[off : off+n : off+n], nil
}

// Bytes returns the slab capacity reserved across all buckets.
func (x *Index) Bytes() int {
	total := 0
	for i := range x.buckets {
		b := &x.buckets[i]
		b.mu.RLock()
		for j := range b.lanes {
			if c := b.lanes[j].chain; c != nil {
				total += c.Bytes()
			}
		}
		b.mu.RUnlock()
	}
	return total
}

// lookup scans every lane of the bucket. Caller holds b.mu.
func (b *bucket) lookup(bid uint32, tag uint64, data []byte) (Handle, bool) {
	for t := range b.lanes {
		c := b.lanes[t].chain
		if c == nil {
			continue
		}
		if seq, ok := c.Find(tag, data); ok {
			return Handle{Bucket: bid, Thread: uint32(t), Seq: seq}, true
		}
	}
	return Handle{}, false
}

// bucketOf selects a bucket from the top bits of the mixed hash.
func bucketOf(hash uint64, bits uint) uint32 {
	if bits == 0 {
		return 0
	}
	return uint32(mix(hash) >> (64 - bits))
}

// mix is the murmur3 64-bit finalizer.
func mix(h uint64) uint64 {
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}
