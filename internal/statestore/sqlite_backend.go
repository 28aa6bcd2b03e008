package statestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/statespace/internal/store"
)

// sqliteBackend is one partition's view of a shared records table.
// Ids are SQLite rowids, unique across partitions and never NoState.
type sqliteBackend struct {
	st        *store.Store
	partition Partition
}

// openSQLiteBackends opens cfg.Path (or an in-memory database) unless the
// caller supplied cfg.Records, then clears any records left by earlier runs.
func openSQLiteBackends(cfg Config, parts []Backend) ([]Backend, io.Closer, error) {
	st := cfg.Records
	var closer io.Closer = nopCloser{}
	if st == nil {
		path := cfg.Path
		if path == "" {
			path = ":memory:"
		}
		var err error
		st, err = store.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite backend: %w", err)
		}
		closer = st
	}

	if err := st.ResetRecords(context.Background()); err != nil {
		closer.Close()
		return nil, nil, fmt.Errorf("sqlite backend: %w", err)
	}

	for i := range parts {
		parts[i] = &sqliteBackend{st: st, partition: Partition(i)}
	}
	return parts, closer, nil
}

func (b *sqliteBackend) Insert(_ int, record []byte) (uint64, bool, error) {
	if len(record) == 0 {
		return 0, false, ErrEmptyState
	}
	id, inserted, err := b.st.WriteRecord(context.Background(), uint16(b.partition), record)
	if errors.Is(err, store.ErrDigestCollision) {
		return 0, false, &IntegrityError{Partition: b.partition, ID: StateID(id), Length: len(record), Err: err}
	}
	if err != nil {
		return 0, false, err
	}
	return uint64(id), inserted, nil
}

func (b *sqliteBackend) Find(id uint64) ([]byte, error) {
	p, data, err := b.st.ReadRecord(context.Background(), int64(id))
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	if Partition(p) != b.partition {
		return nil, fmt.Errorf("%w: record %d belongs to %s", ErrNotFound, id, Partition(p))
	}
	return data, nil
}

func (b *sqliteBackend) FindRange(id uint64, off, n int) ([]byte, error) {
	p, data, err := b.st.ReadRecordRange(context.Background(), int64(id), off, n)
	switch {
	case errors.Is(err, store.ErrRecordNotFound):
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, store.ErrRange):
		return nil, fmt.Errorf("%w: %v", ErrOutOfRange, err)
	case err != nil:
		return nil, err
	}
	if Partition(p) != b.partition {
		return nil, fmt.Errorf("%w: record %d belongs to %s", ErrNotFound, id, Partition(p))
	}
	return data, nil
}

func (b *sqliteBackend) Len() int {
	n, err := b.st.CountRecords(context.Background(), uint16(b.partition))
	if err != nil {
		slog.Warn("count records failed", "partition", b.partition.String(), "error", err)
		return 0
	}
	return n
}
