package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is a single immutable record in a stream. Versions are dense and
// 1-based per stream; only the archived flag ever changes after insert.
type Event struct {
	ID           uuid.UUID       `json:"id"`
	StreamID     string          `json:"stream_id"`
	EventType    string          `json:"event_type"`
	Data         json.RawMessage `json:"data"`
	Metadata     json.RawMessage `json:"metadata"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	PartitionKey string          `json:"partition_key"`
	Archived     bool            `json:"archived"`
}

// Snapshot is a compressed materialization of a stream at a version.
type Snapshot struct {
	ID        uuid.UUID `json:"id"`
	StreamID  string    `json:"stream_id"`
	Version   int64     `json:"version"`
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// Direction orders a stream read by version.
type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
)

// ParseDirection is lenient: the only distinguished value is "backward",
// everything else reads forward.
func ParseDirection(raw string) Direction {
	if raw == string(DirectionBackward) {
		return DirectionBackward
	}
	return DirectionForward
}

// SnapshotCandidate is a stream whose version has outrun its latest
// snapshot by at least the scheduler threshold.
type SnapshotCandidate struct {
	StreamID        string
	CurrentVersion  int64
	SnapshotVersion int64
}

// Stats are the scalar table statistics served by /stats.
type Stats struct {
	TotalEvents    int64 `json:"total_events"`
	TotalStreams   int64 `json:"total_streams"`
	TotalSnapshots int64 `json:"total_snapshots"`
}
