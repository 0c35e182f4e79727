package eventstore

import (
	"context"
	"time"

	"github.com/odvcencio/streamstore/pkg/telemetry"
)

// RunArchiver periodically flags events older than retention in streams
// that have at least one snapshot. The flag is advisory; reads still
// return archived events. The first sweep runs immediately and the loop
// only stops with the context.
func (s *Service) RunArchiver(ctx context.Context, interval, retention time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.archiveTick(ctx, retention)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// archiveTick runs one sweep and returns how many events it flagged.
func (s *Service) archiveTick(ctx context.Context, retention time.Duration) int64 {
	cutoff := s.clock.Now().Add(-retention)

	rows, err := s.store.MarkArchived(ctx, cutoff)
	if err != nil {
		s.logger.Error("archival sweep failed", "error", err.Error())
		return 0
	}

	s.logger.EventsArchived(rows)
	s.metrics.IncBy(telemetry.CounterEventsArchived, rows)
	return rows
}
