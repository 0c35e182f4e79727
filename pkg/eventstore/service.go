// Package eventstore implements the append and read coordinators, the
// snapshot service, and the background snapshot and archival loops on
// top of the storage gateway.
package eventstore

import (
	"context"
	"log/slog"

	"github.com/odvcencio/streamstore/pkg/clock"
	"github.com/odvcencio/streamstore/pkg/logging"
	"github.com/odvcencio/streamstore/pkg/storage"
	"github.com/odvcencio/streamstore/pkg/telemetry"
)

// Service coordinates every event store operation. It is safe for
// concurrent use; correctness under racing appenders comes from the
// storage layer's unique (stream_id, version) constraint, not from
// locks held here.
type Service struct {
	store   *storage.Store
	clock   clock.Clock
	metrics telemetry.Sink
	logger  *logging.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock, used by tests.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithMetrics sets the metrics sink.
func WithMetrics(sink telemetry.Sink) Option {
	return func(s *Service) { s.metrics = sink }
}

// WithLogger sets the structured logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service over the given store.
func NewService(store *storage.Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		clock:   clock.System{},
		metrics: telemetry.Noop{},
		logger:  logging.NewLogger("eventstore", slog.LevelInfo),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats returns the scalar table statistics served by /stats.
func (s *Service) Stats(ctx context.Context) (storage.Stats, error) {
	var stats storage.Stats
	var err error
	if stats.TotalEvents, err = s.store.CountEvents(ctx); err != nil {
		return storage.Stats{}, err
	}
	if stats.TotalStreams, err = s.store.CountStreams(ctx); err != nil {
		return storage.Stats{}, err
	}
	if stats.TotalSnapshots, err = s.store.CountSnapshots(ctx); err != nil {
		return storage.Stats{}, err
	}
	return stats, nil
}
