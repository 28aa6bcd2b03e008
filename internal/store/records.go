package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrRecordNotFound is returned when no record has the requested id.
	ErrRecordNotFound = errors.New("record not found")

	// ErrDigestCollision is returned when two different records share a digest.
	ErrDigestCollision = errors.New("digest collision")

	// ErrRange is returned for reads outside a record.
	ErrRange = errors.New("range outside record")
)

// WriteRecord interns data in a partition.
// Returns the record ID and whether a new record was inserted.
//
// Uses ON CONFLICT(partition, digest) DO NOTHING for idempotency. If the
// record already exists, returns the existing ID and inserted=false after
// verifying the stored bytes are identical.
func (s *Store) WriteRecord(ctx context.Context, partition uint16, data []byte) (id int64, inserted bool, err error) {
	digest := Digest(partition, data)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("write record: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO records
		(partition, digest, length, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(partition, digest) DO NOTHING
	`,
		partition,
		digest,
		len(data),
		data,
	)
	if err != nil {
		return 0, false, fmt.Errorf("write record: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("write record: rows affected: %w", err)
	}

	if rowsAffected > 0 {
		id, err = result.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("write record: last insert id: %w", err)
		}
		inserted = true
	} else {
		var existing []byte
		err = tx.QueryRowContext(ctx, `
			SELECT id, data FROM records
			WHERE partition = ? AND digest = ?
		`, partition, digest).Scan(&id, &existing)
		if err != nil {
			return 0, false, fmt.Errorf("write record: select existing: %w", err)
		}
		if !bytes.Equal(existing, data) {
			return 0, false, fmt.Errorf("write record %d: %w", id, ErrDigestCollision)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("write record: commit: %w", err)
	}

	return id, inserted, nil
}

// ReadRecord returns the partition and content of a record.
func (s *Store) ReadRecord(ctx context.Context, id int64) (partition uint16, data []byte, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT partition, data FROM records WHERE id = ?
	`, id).Scan(&partition, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, fmt.Errorf("read record %d: %w", id, ErrRecordNotFound)
	}
	if err != nil {
		return 0, nil, fmt.Errorf("read record %d: %w", id, err)
	}
	return partition, data, nil
}

// ReadRecordRange returns n bytes at off of a record without loading the
// rest of it. The range must lie within the record.
func (s *Store) ReadRecordRange(ctx context.Context, id int64, off, n int) (partition uint16, data []byte, err error) {
	if off < 0 || n < 0 {
		return 0, nil, fmt.Errorf("read record %d [%d,+%d): %w", id, off, n, ErrRange)
	}

	var length int
	// substr is 1-indexed and byte-wise on BLOBs.
	err = s.db.QueryRowContext(ctx, `
		SELECT partition, length, substr(data, ?, ?) FROM records WHERE id = ?
	`, off+1, n, id).Scan(&partition, &length, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, fmt.Errorf("read record %d: %w", id, ErrRecordNotFound)
	}
	if err != nil {
		return 0, nil, fmt.Errorf("read record %d: %w", id, err)
	}
	if off+n > length {
		return 0, nil, fmt.Errorf("read record %d [%d,+%d) of length %d: %w", id, off, n, length, ErrRange)
	}
	if data == nil {
		data = []byte{}
	}
	return partition, data, nil
}

// CountRecords returns the number of records in a partition.
func (s *Store) CountRecords(ctx context.Context, partition uint16) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM records WHERE partition = ?
	`, partition).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// ResetRecords deletes every interned record. Run history is kept.
// Identities are only meaningful within one exploration, so each run starts
// from an empty records table.
func (s *Store) ResetRecords(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("reset records: %w", err)
	}
	return nil
}
