package statestore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/pebble"

	"github.com/roach88/statespace/internal/store"
)

const (
	pebbleDigestPrefix = 'd'
	pebbleRecordPrefix = 'r'
	pebbleStripes      = 64
)

// pebbleBackend is one partition of a shared Pebble database.
//
// Key layout:
//
//	'd' | partition(2) | digest   -> id(8)
//	'r' | partition(2) | id(8)    -> record
//
// Inserts of the same digest serialize on a striped mutex so the
// lookup-then-write pair is atomic per content.
type pebbleBackend struct {
	db        *pebble.DB
	partition Partition
	next      atomic.Uint64
	count     atomic.Int64
	stripes   [pebbleStripes]sync.Mutex
}

type pebbleCloser struct {
	db     *pebble.DB
	tmpDir string
}

func (c pebbleCloser) Close() error {
	err := c.db.Close()
	if c.tmpDir != "" {
		err = errors.Join(err, os.RemoveAll(c.tmpDir))
	}
	return err
}

// openPebbleBackends opens a fresh database at cfg.Path, which must not
// exist yet, or in a temporary directory removed on Close.
func openPebbleBackends(cfg Config, parts []Backend) ([]Backend, io.Closer, error) {
	dir := cfg.Path
	opts := &pebble.Options{ErrorIfExists: true}
	var tmpDir string
	if dir == "" {
		var err error
		tmpDir, err = os.MkdirTemp("", "statespace-pebble-*")
		if err != nil {
			return nil, nil, fmt.Errorf("pebble backend: %w", err)
		}
		dir = tmpDir
		opts.ErrorIfExists = false
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		if tmpDir != "" {
			os.RemoveAll(tmpDir)
		}
		return nil, nil, fmt.Errorf("pebble backend: open %s: %w", dir, err)
	}

	for i := range parts {
		parts[i] = &pebbleBackend{db: db, partition: Partition(i)}
	}
	return parts, pebbleCloser{db: db, tmpDir: tmpDir}, nil
}

func (b *pebbleBackend) digestKey(digest string) []byte {
	k := make([]byte, 0, 3+len(digest))
	k = append(k, pebbleDigestPrefix)
	k = binary.BigEndian.AppendUint16(k, uint16(b.partition))
	return append(k, digest...)
}

func (b *pebbleBackend) recordKey(id uint64) []byte {
	k := make([]byte, 0, 11)
	k = append(k, pebbleRecordPrefix)
	k = binary.BigEndian.AppendUint16(k, uint16(b.partition))
	return binary.BigEndian.AppendUint64(k, id)
}

// get copies the value out of Pebble's buffer.
func (b *pebbleBackend) get(key []byte) ([]byte, bool, error) {
	v, closer, err := b.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	out := bytes.Clone(v)
	if err := closer.Close(); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (b *pebbleBackend) Insert(_ int, record []byte) (uint64, bool, error) {
	if len(record) == 0 {
		return 0, false, ErrEmptyState
	}
	digest := store.Digest(uint16(b.partition), record)
	dk := b.digestKey(digest)

	mu := &b.stripes[xxhash.Sum64String(digest)%pebbleStripes]
	mu.Lock()
	defer mu.Unlock()

	v, ok, err := b.get(dk)
	if err != nil {
		return 0, false, fmt.Errorf("pebble insert: %w", err)
	}
	if ok {
		id := binary.BigEndian.Uint64(v)
		existing, found, err := b.get(b.recordKey(id))
		if err != nil {
			return 0, false, fmt.Errorf("pebble insert: %w", err)
		}
		if !found || !bytes.Equal(existing, record) {
			return 0, false, &IntegrityError{
				Partition: b.partition, ID: StateID(id), Length: len(record),
				Err: fmt.Errorf("digest %s maps to different content", digest),
			}
		}
		return id, false, nil
	}

	id := b.next.Add(1) - 1
	batch := b.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(b.recordKey(id), record, nil); err != nil {
		return 0, false, fmt.Errorf("pebble insert: %w", err)
	}
	if err := batch.Set(dk, binary.BigEndian.AppendUint64(nil, id), nil); err != nil {
		return 0, false, fmt.Errorf("pebble insert: %w", err)
	}
	if err := batch.Commit(pebble.NoSync); err != nil {
		return 0, false, fmt.Errorf("pebble insert: commit: %w", err)
	}
	b.count.Add(1)
	return id, true, nil
}

func (b *pebbleBackend) Find(id uint64) ([]byte, error) {
	data, ok, err := b.get(b.recordKey(id))
	if err != nil {
		return nil, fmt.Errorf("pebble find: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: pebble id %d", ErrNotFound, id)
	}
	return data, nil
}

func (b *pebbleBackend) FindRange(id uint64, off, n int) ([]byte, error) {
	data, err := b.Find(id)
	if err != nil {
		return nil, err
	}
	if off < 0 || n < 0 || off+n > len(data) {
		return nil, fmt.Errorf("%w: [%d, %d) of length %d", ErrOutOfRange, off, off+n, len(data))
	}
	return data[off : off+n : off+n], nil
}

func (b *pebbleBackend) Len() int {
	return int(b.count.Load())
}
