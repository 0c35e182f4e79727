package eventstore

import (
	"context"
	"time"

	"github.com/odvcencio/streamstore/pkg/storage"
	"github.com/odvcencio/streamstore/pkg/telemetry"
)

// DefaultReadLimit is what the HTTP surface substitutes when a request
// leaves the limit parameter absent.
const DefaultReadLimit = 100

// ReadRequest selects a slice of a stream. FromVersion 0 reads from the
// start. The limit is taken literally: zero selects nothing; callers
// substitute DefaultReadLimit for an absent limit themselves.
type ReadRequest struct {
	StreamID    string
	FromVersion int64
	Limit       int64
	Direction   storage.Direction
}

// Read returns events of the stream ordered by version. An unknown
// stream yields an empty slice, not NotFound; the caller cannot tell an
// empty stream from a missing one and the distinction has no use here.
func (s *Service) Read(ctx context.Context, req ReadRequest) ([]storage.Event, error) {
	s.metrics.Inc(telemetry.CounterReadRequests)
	start := time.Now()
	defer func() {
		s.metrics.Observe(telemetry.HistogramReadDuration, time.Since(start).Seconds())
	}()

	events, err := s.read(ctx, req)
	if err != nil {
		s.metrics.Inc(telemetry.CounterReadErrors)
		return nil, err
	}
	s.metrics.IncBy(telemetry.CounterEventsRead, int64(len(events)))
	return events, nil
}

func (s *Service) read(ctx context.Context, req ReadRequest) ([]storage.Event, error) {
	if err := validateStreamID(req.StreamID); err != nil {
		return nil, err
	}
	if req.FromVersion < 0 {
		req.FromVersion = 0
	}
	if req.Limit <= 0 {
		return []storage.Event{}, nil
	}
	return s.store.ReadEvents(ctx, req.StreamID, req.FromVersion, req.Limit, req.Direction)
}
