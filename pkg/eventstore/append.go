package eventstore

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/odvcencio/streamstore/pkg/errors"
	"github.com/odvcencio/streamstore/pkg/storage"
	"github.com/odvcencio/streamstore/pkg/telemetry"
)

// streamIDPattern bounds stream ids to slash-separated path segments so
// they stay usable as partition keys and URL path components.
var streamIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-/]{1,255}$`)

// AppendRequest carries one event to append. ExpectedVersion nil skips
// the optimistic concurrency check.
type AppendRequest struct {
	StreamID        string
	EventType       string
	Data            json.RawMessage
	Metadata        json.RawMessage
	ExpectedVersion *int64
}

func validateStreamID(streamID string) error {
	if !streamIDPattern.MatchString(streamID) {
		return apperrors.Newf(apperrors.KindBadRequest,
			"invalid stream_id %q: must be 1-255 characters of [A-Za-z0-9_-/]", streamID)
	}
	return nil
}

// partitionKeyOf derives the partition key from the stream id: the
// leading segment up to the first slash, or the whole id.
func partitionKeyOf(streamID string) string {
	if i := strings.IndexByte(streamID, '/'); i >= 0 {
		return streamID[:i]
	}
	return streamID
}

// Append validates the request, assigns the next dense version, and
// persists the event. When two appenders race for the same version the
// storage layer's unique constraint decides the winner; the loser gets
// a Conflict regardless of what the read-then-check saw.
func (s *Service) Append(ctx context.Context, req AppendRequest) (storage.Event, error) {
	s.metrics.Inc(telemetry.CounterAppendRequests)
	start := time.Now()
	defer func() {
		s.metrics.Observe(telemetry.HistogramAppendDuration, time.Since(start).Seconds())
	}()

	event, err := s.append(ctx, req)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindConflict) {
			s.metrics.Inc(telemetry.CounterAppendConflicts)
		} else {
			s.metrics.Inc(telemetry.CounterAppendErrors)
		}
		return storage.Event{}, err
	}

	s.metrics.Inc(telemetry.CounterEventsStored)
	s.logger.EventAppended(event.StreamID, event.EventType, event.Version)
	return event, nil
}

func (s *Service) append(ctx context.Context, req AppendRequest) (storage.Event, error) {
	if err := validateStreamID(req.StreamID); err != nil {
		return storage.Event{}, err
	}
	if strings.TrimSpace(req.EventType) == "" {
		return storage.Event{}, apperrors.New(apperrors.KindBadRequest, "event_type is required")
	}
	if len(req.Data) == 0 {
		return storage.Event{}, apperrors.New(apperrors.KindBadRequest, "data is required")
	}
	if !json.Valid(req.Data) {
		return storage.Event{}, apperrors.New(apperrors.KindSerialization, "data is not valid JSON")
	}
	if len(req.Metadata) > 0 && !json.Valid(req.Metadata) {
		return storage.Event{}, apperrors.New(apperrors.KindSerialization, "metadata is not valid JSON")
	}

	current, err := s.store.CurrentVersion(ctx, req.StreamID)
	if err != nil {
		return storage.Event{}, err
	}
	if req.ExpectedVersion != nil && *req.ExpectedVersion != current {
		return storage.Event{}, apperrors.Newf(apperrors.KindConflict,
			"Version conflict: expected %d, got %d", *req.ExpectedVersion, current)
	}

	event := storage.Event{
		ID:           uuid.New(),
		StreamID:     req.StreamID,
		EventType:    req.EventType,
		Data:         req.Data,
		Metadata:     req.Metadata,
		Version:      current + 1,
		CreatedAt:    s.clock.Now(),
		PartitionKey: partitionKeyOf(req.StreamID),
	}
	if err := s.store.InsertEvent(ctx, event); err != nil {
		return storage.Event{}, err
	}
	return event, nil
}
