package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/odvcencio/streamstore/pkg/errors"
)

// ReplaceSnapshot atomically deletes every snapshot of the stream and
// inserts the new one. The transaction keeps a concurrent reader from
// observing a stream with no snapshot between the delete and the insert.
func (s *Store) ReplaceSnapshot(ctx context.Context, snapshot Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindDatabase, "begin snapshot replace")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM snapshots WHERE stream_id = ?",
		snapshot.StreamID,
	); err != nil {
		return apperrors.Wrap(err, apperrors.KindDatabase, "delete old snapshots")
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, stream_id, version, data, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		snapshot.ID.String(),
		snapshot.StreamID,
		snapshot.Version,
		snapshot.Data,
		snapshot.CreatedAt,
	); err != nil {
		return apperrors.Wrap(err, apperrors.KindDatabase, "insert snapshot")
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(err, apperrors.KindDatabase, "commit snapshot replace")
	}
	return nil
}

// InsertSnapshotIdempotent inserts a snapshot, silently succeeding when
// (stream_id, version) already exists. The scheduler uses this so a racing
// actor inserting the same version is not an error.
func (s *Store) InsertSnapshotIdempotent(ctx context.Context, snapshot Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, stream_id, version, data, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(stream_id, version) DO NOTHING
	`,
		snapshot.ID.String(),
		snapshot.StreamID,
		snapshot.Version,
		snapshot.Data,
		snapshot.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindDatabase, "insert snapshot")
	}
	return nil
}

// LatestSnapshot returns the compressed payload of the greatest-version
// snapshot, or (nil, false, nil) when the stream has none.
func (s *Store) LatestSnapshot(ctx context.Context, streamID string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM snapshots
		WHERE stream_id = ?
		ORDER BY version DESC
		LIMIT 1
	`, streamID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.Wrap(err, apperrors.KindDatabase, "query latest snapshot")
	}
	return data, true, nil
}

// StreamsNeedingSnapshot returns streams whose current version has outrun
// their latest snapshot by at least threshold. Streams with no snapshot
// count from version 0.
func (s *Store) StreamsNeedingSnapshot(ctx context.Context, threshold int64) ([]SnapshotCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.stream_id, MAX(e.version) AS current_version,
		       COALESCE(MAX(s.version), 0) AS snapshot_version
		FROM events e
		LEFT JOIN snapshots s ON e.stream_id = s.stream_id
		GROUP BY e.stream_id
		HAVING MAX(e.version) - COALESCE(MAX(s.version), 0) >= ?
	`, threshold)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindDatabase, "query snapshot candidates")
	}
	defer rows.Close()

	var candidates []SnapshotCandidate
	for rows.Next() {
		var c SnapshotCandidate
		if err := rows.Scan(&c.StreamID, &c.CurrentVersion, &c.SnapshotVersion); err != nil {
			return nil, apperrors.Wrap(err, apperrors.KindDatabase, "scan snapshot candidate")
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindDatabase, "iterate snapshot candidates")
	}
	return candidates, nil
}

// NewSnapshot builds a snapshot row with a fresh id.
func NewSnapshot(streamID string, version int64, data []byte, createdAt time.Time) Snapshot {
	return Snapshot{
		ID:        uuid.New(),
		StreamID:  streamID,
		Version:   version,
		Data:      data,
		CreatedAt: createdAt.UTC(),
	}
}
