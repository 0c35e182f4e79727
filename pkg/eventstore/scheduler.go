package eventstore

import (
	"context"
	"time"

	"github.com/odvcencio/streamstore/pkg/telemetry"
)

// RunScheduler periodically snapshots streams whose version has outrun
// their latest snapshot by at least threshold. The first pass runs
// immediately. Per-stream failures are logged and skipped so one bad
// stream cannot starve the rest; the loop only stops with the context.
func (s *Service) RunScheduler(ctx context.Context, interval time.Duration, threshold int64) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.schedulerTick(ctx, threshold)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// schedulerTick runs one scheduling pass and returns how many snapshots
// it created.
func (s *Service) schedulerTick(ctx context.Context, threshold int64) int {
	candidates, err := s.store.StreamsNeedingSnapshot(ctx, threshold)
	if err != nil {
		s.logger.Error("snapshot candidate query failed", "error", err.Error())
		return 0
	}

	created := 0
	for _, candidate := range candidates {
		if err := s.snapshotCandidate(ctx, candidate.StreamID, candidate.CurrentVersion); err != nil {
			s.logger.StreamError(candidate.StreamID, "scheduled snapshot", err)
			continue
		}
		created++
	}

	s.logger.SchedulerTick(len(candidates), created)
	if created > 0 {
		s.metrics.IncBy(telemetry.CounterSnapshotsCreated, int64(created))
	}
	return created
}

// snapshotCandidate writes a scheduled snapshot at the observed version.
// The idempotent insert makes a racing on-demand snapshot or a second
// scheduler pass at the same version a no-op instead of an error.
func (s *Service) snapshotCandidate(ctx context.Context, streamID string, version int64) error {
	snapshot, err := s.buildSnapshot(ctx, streamID, version)
	if err != nil {
		return err
	}
	return s.store.InsertSnapshotIdempotent(ctx, snapshot)
}
