package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/odvcencio/streamstore/pkg/errors"
	"github.com/odvcencio/streamstore/pkg/eventstore"
	"github.com/odvcencio/streamstore/pkg/storage"
)

const serviceVersion = "1.0.0"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"service":   "event-store",
		"version":   serviceVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type appendEventRequest struct {
	StreamID        string          `json:"stream_id"`
	EventType       string          `json:"event_type"`
	Data            json.RawMessage `json:"data"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	ExpectedVersion *int64          `json:"expected_version,omitempty"`
}

func (s *Server) handleAppendEvent(w http.ResponseWriter, r *http.Request) {
	var req appendEventRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	event, err := s.service.Append(r.Context(), eventstore.AppendRequest{
		StreamID:        req.StreamID,
		EventType:       req.EventType,
		Data:            req.Data,
		Metadata:        req.Metadata,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, event)
}

func (s *Server) handleReadStream(w http.ResponseWriter, r *http.Request) {
	streamID, err := streamIDParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	query := r.URL.Query()
	events, err := s.service.Read(r.Context(), eventstore.ReadRequest{
		StreamID:    streamID,
		FromVersion: parseInt64Default(query.Get("from_version"), 0),
		Limit:       parseInt64Default(query.Get("limit"), eventstore.DefaultReadLimit),
		Direction:   storage.ParseDirection(query.Get("direction")),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, events)
}

type createSnapshotRequest struct {
	StreamID string          `json:"stream_id"`
	Version  int64           `json:"version"`
	Data     json.RawMessage `json:"data"`
}

func (s *Server) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var req createSnapshotRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	snapshot, err := s.service.CreateSnapshot(r.Context(), req.StreamID, req.Version, req.Data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	streamID, err := streamIDParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	state, err := s.service.LatestSnapshotState(r.Context(), streamID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	// A stream without snapshots is not an error: the body is null.
	if state == nil {
		state = json.RawMessage("null")
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(state)
}

type statsResponse struct {
	storage.Stats
	UptimeSeconds int64 `json:"uptime_seconds"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, statsResponse{
		Stats:         stats,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	})
}

// streamIDParam extracts the stream id path segment. Stream ids may
// contain slashes, so clients percent-encode them; chi routes on the raw
// path and hands back the still-encoded segment.
func streamIDParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "streamID")
	streamID, err := url.PathUnescape(raw)
	if err != nil {
		return "", apperrors.Newf(apperrors.KindBadRequest, "invalid stream id encoding: %q", raw)
	}
	return streamID, nil
}

// parseInt64Default parses an integer query parameter with a fallback.
func parseInt64Default(raw string, def int64) int64 {
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return v
}
