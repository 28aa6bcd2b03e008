package hashindex

import (
	"fmt"
	"math/bits"
)

const (
	// MaxBucketBits bounds the bucket count at 2^20.
	MaxBucketBits = 20

	// MaxThreads bounds the number of producer threads.
	MaxThreads = 1024

	maxSeqBits = 32
	minSeqBits = 16
)

// Handle is the decoded form of a record identity.
type Handle struct {
	Bucket uint32
	Thread uint32
	Seq    uint32
}

// Layout packs handles into 63-bit identities: bucket bits high, thread bits
// in the middle, sequence bits low. The top bit is always zero.
type Layout struct {
	BucketBits uint
	ThreadBits uint
	SeqBits    uint
}

// NewLayout derives a layout for 2^bucketBits buckets and the given number
// of producer threads.
func NewLayout(bucketBits uint, threads int) (Layout, error) {
	if bucketBits > MaxBucketBits {
		return Layout{}, fmt.Errorf("bucket bits %d exceeds maximum %d", bucketBits, MaxBucketBits)
	}
	if threads < 1 || threads > MaxThreads {
		return Layout{}, fmt.Errorf("thread count %d out of range [1, %d]", threads, MaxThreads)
	}

	threadBits := uint(bits.Len(uint(threads - 1)))
	seqBits := min(63-bucketBits-threadBits, maxSeqBits)
	if seqBits < minSeqBits {
		return Layout{}, fmt.Errorf("layout leaves only %d sequence bits", seqBits)
	}

	return Layout{
		BucketBits: bucketBits,
		ThreadBits: threadBits,
		SeqBits:    seqBits,
	}, nil
}

// Encode packs h into an identity.
func (l Layout) Encode(h Handle) uint64 {
	return uint64(h.Bucket)<<(l.ThreadBits+l.SeqBits) |
		uint64(h.Thread)<<l.SeqBits |
		uint64(h.Seq)
}

// Decode unpacks an identity produced by Encode.
func (l Layout) Decode(id uint64) Handle {
	return Handle{
		Bucket: uint32(id >> (l.ThreadBits + l.SeqBits) & mask(l.BucketBits)),
		Thread: uint32(id >> l.SeqBits & mask(l.ThreadBits)),
		Seq:    uint32(id & mask(l.SeqBits)),
	}
}

// Valid reports whether id lies inside the layout's identity space.
func (l Layout) Valid(id uint64) bool {
	return id>>(l.BucketBits+l.ThreadBits+l.SeqBits) == 0
}

// Buckets returns the bucket count.
func (l Layout) Buckets() int {
	return 1 << l.BucketBits
}

// MaxSeq returns the largest sequence number a handle can carry.
func (l Layout) MaxSeq() uint64 {
	return mask(l.SeqBits)
}

func mask(n uint) uint64 {
	return 1<<n - 1
}
