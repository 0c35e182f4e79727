package eventstore

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	apperrors "github.com/odvcencio/streamstore/pkg/errors"
	"github.com/odvcencio/streamstore/pkg/storage"
	"github.com/odvcencio/streamstore/pkg/telemetry"
)

// streamState is the document the scheduler stores: the raw event
// payloads up to the snapshot version. Consumers replace this with a
// domain projection; the store itself only replays payloads.
type streamState struct {
	Events          []json.RawMessage `json:"events"`
	Version         int64             `json:"version"`
	ReconstructedAt time.Time         `json:"reconstructed_at"`
}

// rebuildState materializes the stream at upToVersion as a JSON
// document.
func (s *Service) rebuildState(ctx context.Context, streamID string, upToVersion int64) ([]byte, error) {
	payloads, err := s.store.ReadEventData(ctx, streamID, upToVersion)
	if err != nil {
		return nil, err
	}

	state := streamState{
		Events:          make([]json.RawMessage, 0, len(payloads)),
		Version:         upToVersion,
		ReconstructedAt: s.clock.Now(),
	}
	for _, payload := range payloads {
		state.Events = append(state.Events, json.RawMessage(payload))
	}

	doc, err := json.Marshal(state)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindSerialization, "encode stream state")
	}
	return doc, nil
}

// CreateSnapshot stores a client-prepared materialization of the stream
// at the version the client asserts. The data is canonicalized,
// compressed, and replaces every previous snapshot of the stream: the
// client claims a full materialization, so older ones are garbage.
func (s *Service) CreateSnapshot(ctx context.Context, streamID string, version int64, data json.RawMessage) (storage.Snapshot, error) {
	s.metrics.Inc(telemetry.CounterSnapshotCreateRequests)
	start := time.Now()
	defer func() {
		s.metrics.Observe(telemetry.HistogramSnapshotCreateDuration, time.Since(start).Seconds())
	}()

	snapshot, err := s.createSnapshot(ctx, streamID, version, data)
	if err != nil {
		s.metrics.Inc(telemetry.CounterSnapshotCreateErrors)
		return storage.Snapshot{}, err
	}

	s.metrics.Inc(telemetry.CounterSnapshotsCreated)
	s.logger.SnapshotCreated(snapshot.StreamID, snapshot.Version, len(snapshot.Data))
	return snapshot, nil
}

func (s *Service) createSnapshot(ctx context.Context, streamID string, version int64, data json.RawMessage) (storage.Snapshot, error) {
	if err := validateStreamID(streamID); err != nil {
		return storage.Snapshot{}, err
	}
	if version < 1 {
		return storage.Snapshot{}, apperrors.Newf(apperrors.KindBadRequest, "version must be positive, got %d", version)
	}
	if len(data) == 0 {
		return storage.Snapshot{}, apperrors.New(apperrors.KindBadRequest, "data is required")
	}

	canonical, err := canonicalJSON(data)
	if err != nil {
		return storage.Snapshot{}, apperrors.Wrap(err, apperrors.KindSerialization, "snapshot data is not valid JSON")
	}
	compressed, err := compressSnapshot(canonical)
	if err != nil {
		return storage.Snapshot{}, apperrors.Wrap(err, apperrors.KindInternal, "compress snapshot")
	}

	snapshot := storage.NewSnapshot(streamID, version, compressed, s.clock.Now())
	if err := s.store.ReplaceSnapshot(ctx, snapshot); err != nil {
		return storage.Snapshot{}, err
	}
	return snapshot, nil
}

// canonicalJSON validates raw and strips insignificant whitespace so
// equivalent payloads compress to identical blobs.
func canonicalJSON(raw json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// buildSnapshot rebuilds and compresses the stream state at version.
// Scheduled snapshots go through here; on-demand snapshots carry the
// client's own materialization instead.
func (s *Service) buildSnapshot(ctx context.Context, streamID string, version int64) (storage.Snapshot, error) {
	doc, err := s.rebuildState(ctx, streamID, version)
	if err != nil {
		return storage.Snapshot{}, err
	}
	compressed, err := compressSnapshot(doc)
	if err != nil {
		return storage.Snapshot{}, apperrors.Wrap(err, apperrors.KindInternal, "compress snapshot")
	}
	return storage.NewSnapshot(streamID, version, compressed, s.clock.Now()), nil
}

// LatestSnapshotState returns the decompressed payload of the stream's
// latest snapshot, or nil when the stream has none. A snapshot that
// fails to decompress or decode is Internal, since the store wrote it
// and should be able to read it back.
func (s *Service) LatestSnapshotState(ctx context.Context, streamID string) (json.RawMessage, error) {
	s.metrics.Inc(telemetry.CounterSnapshotReadRequests)
	start := time.Now()
	defer func() {
		s.metrics.Observe(telemetry.HistogramSnapshotReadDuration, time.Since(start).Seconds())
	}()

	state, err := s.latestSnapshotState(ctx, streamID)
	if err != nil {
		s.metrics.Inc(telemetry.CounterSnapshotReadErrors)
		return nil, err
	}
	if state != nil {
		s.metrics.Inc(telemetry.CounterSnapshotsRead)
	}
	return state, nil
}

func (s *Service) latestSnapshotState(ctx context.Context, streamID string) (json.RawMessage, error) {
	if err := validateStreamID(streamID); err != nil {
		return nil, err
	}

	blob, ok, err := s.store.LatestSnapshot(ctx, streamID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	doc, err := decompressSnapshot(blob)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "decompress snapshot")
	}
	if !json.Valid(doc) {
		return nil, apperrors.New(apperrors.KindInternal, "snapshot state is not valid JSON")
	}
	return doc, nil
}
