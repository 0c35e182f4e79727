package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/streamstore/pkg/clock"
	"github.com/odvcencio/streamstore/pkg/errorcapture"
	apperrors "github.com/odvcencio/streamstore/pkg/errors"
	"github.com/odvcencio/streamstore/pkg/eventstore"
	"github.com/odvcencio/streamstore/pkg/logging"
	"github.com/odvcencio/streamstore/pkg/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := logging.NewLoggerTo(io.Discard, "server", slog.LevelError)
	service := eventstore.NewService(store,
		eventstore.WithClock(clock.NewFake(time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC))),
		eventstore.WithLogger(logger),
	)
	return New(Config{Service: service, Logger: logger})
}

func doRequest(t *testing.T, handler http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func appendBody(streamID string, n int) map[string]any {
	return map[string]any{
		"stream_id":  streamID,
		"event_type": "TestEvent",
		"data":       map[string]int{"n": n},
	}
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func decodeEvents(t *testing.T, rec *httptest.ResponseRecorder) []storage.Event {
	t.Helper()
	var events []storage.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	return events
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doRequest(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "event-store", body["service"])
	assert.Equal(t, serviceVersion, body["version"])

	_, err := time.Parse(time.RFC3339, body["timestamp"])
	assert.NoError(t, err)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doRequest(t, router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAppendThenReadRoundTrip(t *testing.T) {
	router := newTestServer(t).Router()

	for n := 1; n <= 3; n++ {
		rec := doRequest(t, router, http.MethodPost, "/events", appendBody("orders", n))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var event storage.Event
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &event))
		assert.Equal(t, int64(n), event.Version)
	}

	rec := doRequest(t, router, http.MethodGet, "/streams/orders/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	events := decodeEvents(t, rec)
	require.Len(t, events, 3)
	assert.Equal(t, int64(1), events[0].Version)
	assert.JSONEq(t, `{"n":1}`, string(events[0].Data))
}

func TestAppendOptimisticConcurrency(t *testing.T) {
	router := newTestServer(t).Router()

	body := appendBody("s", 1)
	body["expected_version"] = 0

	rec := doRequest(t, router, http.MethodPost, "/events", body)
	require.Equal(t, http.StatusOK, rec.Code)

	// Second append with the same expected version loses.
	rec = doRequest(t, router, http.MethodPost, "/events", body)
	require.Equal(t, http.StatusConflict, rec.Code)

	errBody := decodeErrorBody(t, rec)
	assert.Equal(t, "Conflict", errBody.Error)
	assert.Equal(t, "Version conflict: expected 0, got 1", errBody.Message)
}

func TestAppendMalformedBody(t *testing.T) {
	router := newTestServer(t).Router()

	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(`{"stream_id":`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Serialization error", decodeErrorBody(t, rec).Error)
}

func TestAppendEmptyBody(t *testing.T) {
	router := newTestServer(t).Router()

	req := httptest.NewRequest(http.MethodPost, "/events", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Bad request", decodeErrorBody(t, rec).Error)
}

func TestAppendInvalidStreamID(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doRequest(t, router, http.MethodPost, "/events", appendBody("has space", 1))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Bad request", decodeErrorBody(t, rec).Error)
}

func TestReadUnknownStreamIsEmpty(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doRequest(t, router, http.MethodGet, "/streams/missing/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestReadQueryParameters(t *testing.T) {
	router := newTestServer(t).Router()

	for n := 1; n <= 5; n++ {
		rec := doRequest(t, router, http.MethodPost, "/events", appendBody("s", n))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doRequest(t, router, http.MethodGet, "/streams/s/events?from_version=2&limit=2&direction=backward", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	events := decodeEvents(t, rec)
	require.Len(t, events, 2)
	assert.Equal(t, int64(5), events[0].Version)
	assert.Equal(t, int64(4), events[1].Version)

	// An explicit zero limit selects nothing.
	rec = doRequest(t, router, http.MethodGet, "/streams/s/events?limit=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeEvents(t, rec))

	// Unparseable parameters fall back to defaults.
	rec = doRequest(t, router, http.MethodGet, "/streams/s/events?from_version=x&limit=x&direction=sideways", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events = decodeEvents(t, rec)
	require.Len(t, events, 5)
	assert.Equal(t, int64(1), events[0].Version)
}

func TestReadEncodedStreamID(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doRequest(t, router, http.MethodPost, "/events", appendBody("orders/42", 1))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/streams/orders%2F42/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	events := decodeEvents(t, rec)
	require.Len(t, events, 1)
	assert.Equal(t, "orders/42", events[0].StreamID)
}

func TestSnapshotRoundTrip(t *testing.T) {
	router := newTestServer(t).Router()

	for n := 1; n <= 3; n++ {
		rec := doRequest(t, router, http.MethodPost, "/events", appendBody("s", n))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doRequest(t, router, http.MethodPost, "/snapshots", map[string]any{
		"stream_id": "s",
		"version":   3,
		"data":      map[string]string{"k": "v"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created storage.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "s", created.StreamID)
	assert.Equal(t, int64(3), created.Version)
	assert.NotEmpty(t, created.Data, "response carries the compressed bytes")

	// The latest endpoint returns the client's materialization itself.
	rec = doRequest(t, router, http.MethodGet, "/snapshots/s/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"k":"v"}`, rec.Body.String())
}

func TestSnapshotValidation(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doRequest(t, router, http.MethodPost, "/snapshots", map[string]any{
		"stream_id": "s",
		"version":   0,
		"data":      map[string]string{"k": "v"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Bad request", decodeErrorBody(t, rec).Error)

	rec = doRequest(t, router, http.MethodPost, "/snapshots", map[string]any{
		"stream_id": "s",
		"version":   1,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLatestSnapshotMissingIsNull(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doRequest(t, router, http.MethodGet, "/snapshots/none/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))
}

func TestStatsEndpoint(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doRequest(t, router, http.MethodPost, "/events", appendBody("a", 1))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(t, router, http.MethodPost, "/events", appendBody("b", 1))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(2), stats["total_events"])
	assert.Equal(t, int64(2), stats["total_streams"])
	assert.Equal(t, int64(0), stats["total_snapshots"])
	assert.GreaterOrEqual(t, stats["uptime_seconds"], int64(0))
}

func TestCORSPreflight(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doRequest(t, router, http.MethodOptions, "/events", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServerErrorsReachCaptureChannel(t *testing.T) {
	logDir := t.TempDir()
	logger := logging.NewLoggerTo(io.Discard, "server", slog.LevelError)
	capture := errorcapture.New(logDir, "", logger)

	s := &Server{logger: logger, capture: capture}

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	s.respondError(rec, req, apperrors.Wrap(fmt.Errorf("disk full"), apperrors.KindDatabase, "count rows"))
	capture.Flush()

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeErrorBody(t, rec)
	assert.Equal(t, "Database error", body.Error)
	assert.Equal(t, "count rows", body.Message)

	data, err := os.ReadFile(filepath.Join(logDir, "event-store-errors.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "DATABASE_ERROR")
	assert.Contains(t, string(data), "GET /stats")
}

func TestClientErrorsReachCaptureChannel(t *testing.T) {
	logDir := t.TempDir()
	logger := logging.NewLoggerTo(io.Discard, "server", slog.LevelError)
	capture := errorcapture.New(logDir, "", logger)

	s := &Server{logger: logger, capture: capture}

	req := httptest.NewRequest(http.MethodPost, "/events", nil)
	rec := httptest.NewRecorder()
	s.respondError(rec, req, apperrors.New(apperrors.KindBadRequest, "data is required"))
	capture.Flush()

	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Every surfaced error is reported, not only server-side failures.
	data, err := os.ReadFile(filepath.Join(logDir, "event-store-errors.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "BAD_REQUEST")
	assert.Contains(t, string(data), "POST /events")
}
