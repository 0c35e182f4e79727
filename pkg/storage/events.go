package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/odvcencio/streamstore/pkg/errors"
)

// maxReadLimit caps a single read; larger requests are clamped.
const maxReadLimit = 1000

// CurrentVersion returns MAX(version) for the stream, or 0 when empty.
func (s *Store) CurrentVersion(ctx context.Context, streamID string) (int64, error) {
	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(version) FROM events WHERE stream_id = ?",
		streamID,
	).Scan(&version)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.KindDatabase, "query stream version")
	}
	if !version.Valid {
		return 0, nil
	}
	return version.Int64, nil
}

// InsertEvent persists one event. A unique violation on
// (stream_id, version) means a concurrent appender won the version and is
// surfaced as Conflict.
func (s *Store) InsertEvent(ctx context.Context, event Event) error {
	var metadata any
	if event.Metadata != nil {
		metadata = string(event.Metadata)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, stream_id, event_type, data, metadata, version, created_at, partition_key, archived)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, FALSE)
	`,
		event.ID.String(),
		event.StreamID,
		event.EventType,
		string(event.Data),
		metadata,
		event.Version,
		event.CreatedAt,
		event.PartitionKey,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Newf(apperrors.KindConflict,
				"version conflict: stream %s already has version %d", event.StreamID, event.Version)
		}
		return apperrors.Wrap(err, apperrors.KindDatabase, "insert event")
	}
	return nil
}

// ReadEvents returns events with version >= fromVersion ordered by version,
// ascending for forward reads and descending for backward reads. The limit
// is clamped to [1, 1000]. Archived events are included.
func (s *Store) ReadEvents(ctx context.Context, streamID string, fromVersion, limit int64, direction Direction) ([]Event, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > maxReadLimit {
		limit = maxReadLimit
	}

	order := "ASC"
	if direction == DirectionBackward {
		order = "DESC"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, stream_id, event_type, data, metadata, version, created_at, partition_key, archived
		FROM events
		WHERE stream_id = ? AND version >= ?
		ORDER BY version `+order+`
		LIMIT ?
	`, streamID, fromVersion, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindDatabase, "query events")
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindDatabase, "iterate events")
	}
	return events, nil
}

// ReadEventData returns the payloads of a stream up to and including
// upToVersion, in version order. Used by snapshot state rebuilds.
func (s *Store) ReadEventData(ctx context.Context, streamID string, upToVersion int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data
		FROM events
		WHERE stream_id = ? AND version <= ?
		ORDER BY version
	`, streamID, upToVersion)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindDatabase, "query event data")
	}
	defer rows.Close()

	var payloads []string
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, apperrors.Wrap(err, apperrors.KindDatabase, "scan event data")
		}
		payloads = append(payloads, data)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindDatabase, "iterate event data")
	}
	return payloads, nil
}

// MarkArchived flags events older than before that belong to a stream with
// at least one snapshot. Already-archived rows are untouched, so the sweep
// is monotone. Returns the number of rows flagged.
func (s *Store) MarkArchived(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE events
		SET archived = TRUE
		WHERE created_at < ?
		AND archived = FALSE
		AND stream_id IN (SELECT stream_id FROM snapshots)
	`, before)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.KindDatabase, "mark archived")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.KindDatabase, "mark archived rows")
	}
	return rows, nil
}

// CountEvents returns the total number of stored events.
func (s *Store) CountEvents(ctx context.Context) (int64, error) {
	return s.countScalar(ctx, "SELECT COUNT(*) FROM events")
}

// CountStreams returns the number of distinct streams.
func (s *Store) CountStreams(ctx context.Context) (int64, error) {
	return s.countScalar(ctx, "SELECT COUNT(DISTINCT stream_id) FROM events")
}

// CountSnapshots returns the total number of snapshots.
func (s *Store) CountSnapshots(ctx context.Context) (int64, error) {
	return s.countScalar(ctx, "SELECT COUNT(*) FROM snapshots")
}

func (s *Store) countScalar(ctx context.Context, query string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, apperrors.Wrap(err, apperrors.KindDatabase, "count rows")
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (Event, error) {
	var (
		event    Event
		id       string
		data     string
		metadata sql.NullString
	)
	err := row.Scan(
		&id,
		&event.StreamID,
		&event.EventType,
		&data,
		&metadata,
		&event.Version,
		&event.CreatedAt,
		&event.PartitionKey,
		&event.Archived,
	)
	if err != nil {
		return Event{}, apperrors.Wrap(err, apperrors.KindDatabase, "scan event")
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return Event{}, apperrors.Wrap(err, apperrors.KindInternal, "parse event id")
	}
	event.ID = parsed
	event.Data = []byte(data)
	if metadata.Valid {
		event.Metadata = []byte(metadata.String)
	}
	event.CreatedAt = event.CreatedAt.UTC()
	return event, nil
}
