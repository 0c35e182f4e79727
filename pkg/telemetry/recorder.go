package telemetry

import "sync"

// Recorder is an in-memory Sink for tests.
type Recorder struct {
	mu         sync.Mutex
	counters   map[string]int64
	histograms map[string][]float64
}

func NewRecorder() *Recorder {
	return &Recorder{
		counters:   make(map[string]int64),
		histograms: make(map[string][]float64),
	}
}

func (r *Recorder) Inc(counter string) {
	r.IncBy(counter, 1)
}

func (r *Recorder) IncBy(counter string, n int64) {
	if n <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[counter] += n
}

func (r *Recorder) Observe(histogram string, seconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.histograms[histogram] = append(r.histograms[histogram], seconds)
}

// Count returns the accumulated value of a counter.
func (r *Recorder) Count(counter string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[counter]
}

// Observations returns the recorded samples of a histogram.
func (r *Recorder) Observations(histogram string) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.histograms[histogram]...)
}

// Noop discards all metrics.
type Noop struct{}

func (Noop) Inc(string)              {}
func (Noop) IncBy(string, int64)     {}
func (Noop) Observe(string, float64) {}
