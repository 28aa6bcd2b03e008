package hashindex

import (
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T, bucketBits uint, threads int) *Index {
	t.Helper()
	x, err := New(Config{BucketBits: bucketBits, Threads: threads, SlabSize: 64})
	require.NoError(t, err)
	return x
}

func TestLayout_EncodeDecodeRoundTrip(t *testing.T) {
	l, err := NewLayout(12, 8)
	require.NoError(t, err)
	assert.Equal(t, uint(12), l.BucketBits)
	assert.Equal(t, uint(3), l.ThreadBits)
	assert.Equal(t, uint(32), l.SeqBits)

	h := Handle{Bucket: 4095, Thread: 7, Seq: 123456}
	id := l.Encode(h)
	assert.Equal(t, h, l.Decode(id))
	assert.True(t, l.Valid(id))
	assert.Zero(t, id>>63, "top bit stays clear")
}

func TestLayout_SingleThreadUsesNoThreadBits(t *testing.T) {
	l, err := NewLayout(4, 1)
	require.NoError(t, err)
	assert.Equal(t, uint(0), l.ThreadBits)

	h := Handle{Bucket: 3, Seq: 9}
	assert.Equal(t, h, l.Decode(l.Encode(h)))
}

func TestLayout_Rejects(t *testing.T) {
	_, err := NewLayout(MaxBucketBits+1, 1)
	assert.Error(t, err)

	_, err = NewLayout(4, 0)
	assert.Error(t, err)

	_, err = NewLayout(4, MaxThreads+1)
	assert.Error(t, err)
}

func TestIndex_InsertTwiceSameID(t *testing.T) {
	x := newTestIndex(t, 4, 2)

	id1, isNew, err := x.Insert(0, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	assert.True(t, isNew)

	id2, isNew, err := x.Insert(1, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	assert.False(t, isNew, "second insert of identical content is not new")
	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, x.Len())
}

func TestIndex_FindReturnsContent(t *testing.T) {
	x := newTestIndex(t, 4, 1)

	id, _, err := x.Insert(0, []byte("state"))
	require.NoError(t, err)

	data, err := x.Find(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("state"), data)

	part, err := x.FindRange(id, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("tat"), part)

	_, err = x.FindRange(id, 3, 5)
	assert.ErrorIs(t, err, ErrRange)
}

func TestIndex_EmptyRecordRejected(t *testing.T) {
	x := newTestIndex(t, 2, 1)

	_, _, err := x.Insert(0, nil)
	assert.ErrorIs(t, err, ErrEmptyRecord)
	assert.Equal(t, 0, x.Len())
}

func TestIndex_BadThread(t *testing.T) {
	x := newTestIndex(t, 2, 2)

	_, _, err := x.Insert(2, []byte{1})
	assert.ErrorIs(t, err, ErrBadThread)
}

func TestIndex_FindUnknownID(t *testing.T) {
	x := newTestIndex(t, 2, 1)
	id, _, err := x.Insert(0, []byte{1})
	require.NoError(t, err)

	h := x.Layout().Decode(id)
	h.Seq++
	_, err = x.Find(x.Layout().Encode(h))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = x.Find(^uint64(0))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIndex_IDEncodesOwningThread(t *testing.T) {
	x := newTestIndex(t, 0, 4)

	id, _, err := x.Insert(3, []byte("from-three"))
	require.NoError(t, err)

	h := x.Layout().Decode(id)
	assert.Equal(t, uint32(0), h.Bucket)
	assert.Equal(t, uint32(3), h.Thread)
	assert.Equal(t, uint32(0), h.Seq)
}

func TestIndex_ManyRecordsAcrossSlabs(t *testing.T) {
	x := newTestIndex(t, 1, 1)
	ids := make(map[uint64][]byte)

	for i := 0; i < 2000; i++ {
		rec := make([]byte, 12)
		binary.LittleEndian.PutUint32(rec, uint32(i))
		id, isNew, err := x.Insert(0, rec)
		require.NoError(t, err)
		require.True(t, isNew)
		ids[id] = rec
	}
	assert.Equal(t, 2000, x.Len())
	assert.Greater(t, x.Bytes(), 2000*12)

	for id, rec := range ids {
		data, err := x.Find(id)
		require.NoError(t, err)
		assert.Equal(t, rec, data)
	}
}

// Two distinct sequences inserted concurrently from 4 threads: exactly one
// winner per sequence, and every thread resolves the same identity.
func TestIndex_ConcurrentIdenticalInserts(t *testing.T) {
	x := newTestIndex(t, 2, 4)
	seqs := [][]byte{{1, 1, 1, 1}, {2, 2, 2, 2}}

	const rounds = 200
	type result struct {
		id    uint64
		isNew bool
	}
	results := make([][]result, 4)

	var wg sync.WaitGroup
	for th := 0; th < 4; th++ {
		wg.Add(1)
		go func(th int) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				id, isNew, err := x.Insert(th, seqs[r%2])
				if err != nil {
					t.Errorf("insert: %v", err)
					return
				}
				results[th] = append(results[th], result{id, isNew})
			}
		}(th)
	}
	wg.Wait()

	winners := 0
	idFor := map[int]uint64{}
	for th := range results {
		for r, res := range results[th] {
			if res.isNew {
				winners++
			}
			if prev, ok := idFor[r%2]; ok {
				assert.Equal(t, prev, res.id)
			}
			idFor[r%2] = res.id
		}
	}
	assert.Equal(t, 2, winners, "exactly one creator per distinct sequence")
	assert.Equal(t, 2, x.Len())
	assert.NotEqual(t, idFor[0], idFor[1])

	for th := 0; th < 4; th++ {
		data, err := x.Find(idFor[1])
		require.NoError(t, err)
		assert.Equal(t, seqs[1], data)
	}
}

func TestIndex_CapacityError(t *testing.T) {
	x := newTestIndex(t, 0, 1)
	// shrink the sequence space so the test stays fast
	x.layout.SeqBits = 2

	for i := 0; i < 4; i++ {
		_, _, err := x.Insert(0, []byte{byte(i + 1)})
		require.NoError(t, err)
	}
	_, _, err := x.Insert(0, []byte{9})
	var capErr *CapacityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, uint64(3), capErr.MaxSeq)
}

func TestBucketOf_Distribution(t *testing.T) {
	const bits = 4
	counts := make([]int, 1<<bits)
	for i := uint64(0); i < 1<<12; i++ {
		counts[bucketOf(i, bits)]++
	}
	for b, c := range counts {
		assert.Greater(t, c, 128, "bucket %d underfilled", b)
		assert.Less(t, c, 384, "bucket %d overfilled", b)
	}
	assert.Equal(t, uint32(0), bucketOf(12345, 0))
}
