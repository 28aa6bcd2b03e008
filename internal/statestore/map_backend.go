package statestore

import (
	"bytes"
	"fmt"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// mapBackend interns records in a concurrent hash map keyed by content.
// LoadOrCompute runs the id allocation under the map's bucket lock, so the
// content→id association is created exactly once.
type mapBackend struct {
	ids     *xsync.MapOf[string, uint64]
	records *xsync.MapOf[uint64, []byte]
	next    atomic.Uint64
}

func newMapBackend() *mapBackend {
	return &mapBackend{
		ids:     xsync.NewMapOf[string, uint64](),
		records: xsync.NewMapOf[uint64, []byte](),
	}
}

func (m *mapBackend) Insert(_ int, record []byte) (uint64, bool, error) {
	if len(record) == 0 {
		return 0, false, ErrEmptyState
	}
	id, loaded := m.ids.LoadOrCompute(string(record), func() uint64 {
		id := m.next.Add(1) - 1
		// published before the key becomes visible
		m.records.Store(id, bytes.Clone(record))
		return id
	})
	return id, !loaded, nil
}

func (m *mapBackend) Find(id uint64) ([]byte, error) {
	data, ok := m.records.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: map id %d", ErrNotFound, id)
	}
	return data, nil
}

func (m *mapBackend) FindRange(id uint64, off, n int) ([]byte, error) {
	data, err := m.Find(id)
	if err != nil {
		return nil, err
	}
	if off < 0 || n < 0 || off+n > len(data) {
		return nil, fmt.Errorf("%w: [%d, %d) of length %d", ErrOutOfRange, off, off+n, len(data))
	}
	return data[off : off+n : off+n], nil
}

func (m *mapBackend) Len() int {
	return m.records.Size()
}
