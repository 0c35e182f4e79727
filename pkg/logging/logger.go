package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger is a structured logger for event store components.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new structured JSON logger tagged with the component.
func NewLogger(component string, level slog.Level) *Logger {
	return NewLoggerTo(os.Stdout, component, level)
}

// NewLoggerTo creates a logger writing to w; tests pass a buffer.
func NewLoggerTo(w io.Writer, component string, level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewJSONHandler(w, opts)

	logger := slog.New(handler).With(
		slog.String("component", component),
		slog.String("service", "event-store"),
	)

	return &Logger{Logger: logger}
}

// WithStream returns a logger with stream-specific fields.
func (l *Logger) WithStream(streamID string) *Logger {
	return &Logger{
		Logger: l.Logger.With(
			slog.String("stream_id", streamID),
		),
	}
}

// EventAppended logs a successful append.
func (l *Logger) EventAppended(streamID, eventType string, version int64) {
	l.Info("event appended",
		slog.String("stream_id", streamID),
		slog.String("event_type", eventType),
		slog.Int64("version", version),
	)
}

// SnapshotCreated logs a snapshot write.
func (l *Logger) SnapshotCreated(streamID string, version int64, compressedBytes int) {
	l.Info("snapshot created",
		slog.String("stream_id", streamID),
		slog.Int64("version", version),
		slog.Int("compressed_bytes", compressedBytes),
	)
}

// SchedulerTick logs the outcome of one scheduler pass.
func (l *Logger) SchedulerTick(candidates, created int) {
	l.Info("snapshot scheduler tick",
		slog.Int("candidates", candidates),
		slog.Int("created", created),
	)
}

// EventsArchived logs the outcome of one archival sweep.
func (l *Logger) EventsArchived(rows int64) {
	l.Info("events archived",
		slog.Int64("rows", rows),
	)
}

// StreamError logs a per-stream failure inside a background pass.
func (l *Logger) StreamError(streamID, op string, err error) {
	l.Error("stream operation failed",
		slog.String("stream_id", streamID),
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}
