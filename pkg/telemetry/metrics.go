package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counter names known to the sink.
const (
	CounterAppendRequests         = "event_store_append_requests_total"
	CounterAppendErrors           = "event_store_append_errors_total"
	CounterAppendConflicts        = "event_store_append_conflicts_total"
	CounterReadRequests           = "event_store_read_requests_total"
	CounterReadErrors             = "event_store_read_errors_total"
	CounterEventsStored           = "event_store_events_stored_total"
	CounterEventsRead             = "event_store_events_read_total"
	CounterSnapshotCreateRequests = "event_store_snapshot_create_requests_total"
	CounterSnapshotCreateErrors   = "event_store_snapshot_create_errors_total"
	CounterSnapshotReadRequests   = "event_store_snapshot_read_requests_total"
	CounterSnapshotReadErrors     = "event_store_snapshot_read_errors_total"
	CounterSnapshotsCreated       = "event_store_snapshots_created_total"
	CounterSnapshotsRead          = "event_store_snapshots_read_total"
	CounterEventsArchived         = "event_store_events_archived_total"
)

// Histogram names known to the sink. Values are durations in seconds.
const (
	HistogramAppendDuration         = "event_store_append_duration_seconds"
	HistogramReadDuration           = "event_store_read_duration_seconds"
	HistogramSnapshotCreateDuration = "event_store_snapshot_create_duration_seconds"
	HistogramSnapshotReadDuration   = "event_store_snapshot_read_duration_seconds"
)

// Sink receives counters and timings from the coordinators. The core holds
// a Sink and stays oblivious to the metrics backend.
type Sink interface {
	Inc(counter string)
	IncBy(counter string, n int64)
	Observe(histogram string, seconds float64)
}

var requestBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0}

// PrometheusSink publishes to the default Prometheus registry, which the
// HTTP surface serves at /metrics.
type PrometheusSink struct {
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

// NewPrometheusSink registers all event store collectors.
func NewPrometheusSink() *PrometheusSink {
	counter := func(name, help string) prometheus.Counter {
		return promauto.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	histogram := func(name, help string, buckets []float64) prometheus.Histogram {
		return promauto.NewHistogram(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets})
	}

	return &PrometheusSink{
		counters: map[string]prometheus.Counter{
			CounterAppendRequests:         counter(CounterAppendRequests, "Total number of event append requests."),
			CounterAppendErrors:           counter(CounterAppendErrors, "Total number of event append errors."),
			CounterAppendConflicts:        counter(CounterAppendConflicts, "Total number of event append conflicts."),
			CounterReadRequests:           counter(CounterReadRequests, "Total number of event read requests."),
			CounterReadErrors:             counter(CounterReadErrors, "Total number of event read errors."),
			CounterEventsStored:           counter(CounterEventsStored, "Total number of events stored."),
			CounterEventsRead:             counter(CounterEventsRead, "Total number of events read."),
			CounterSnapshotCreateRequests: counter(CounterSnapshotCreateRequests, "Total number of snapshot create requests."),
			CounterSnapshotCreateErrors:   counter(CounterSnapshotCreateErrors, "Total number of snapshot create errors."),
			CounterSnapshotReadRequests:   counter(CounterSnapshotReadRequests, "Total number of snapshot read requests."),
			CounterSnapshotReadErrors:     counter(CounterSnapshotReadErrors, "Total number of snapshot read errors."),
			CounterSnapshotsCreated:       counter(CounterSnapshotsCreated, "Total number of snapshots created."),
			CounterSnapshotsRead:          counter(CounterSnapshotsRead, "Total number of snapshots read."),
			CounterEventsArchived:         counter(CounterEventsArchived, "Total number of events flagged archived."),
		},
		histograms: map[string]prometheus.Histogram{
			HistogramAppendDuration:         histogram(HistogramAppendDuration, "Duration of event append operations.", requestBuckets),
			HistogramReadDuration:           histogram(HistogramReadDuration, "Duration of event read operations.", requestBuckets),
			HistogramSnapshotCreateDuration: histogram(HistogramSnapshotCreateDuration, "Duration of snapshot create operations.", []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0}),
			HistogramSnapshotReadDuration:   histogram(HistogramSnapshotReadDuration, "Duration of snapshot read operations.", []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0}),
		},
	}
}

func (s *PrometheusSink) Inc(counter string) {
	if c, ok := s.counters[counter]; ok {
		c.Inc()
	}
}

func (s *PrometheusSink) IncBy(counter string, n int64) {
	if n <= 0 {
		return
	}
	if c, ok := s.counters[counter]; ok {
		c.Add(float64(n))
	}
}

func (s *PrometheusSink) Observe(histogram string, seconds float64) {
	if h, ok := s.histograms[histogram]; ok {
		h.Observe(seconds)
	}
}
