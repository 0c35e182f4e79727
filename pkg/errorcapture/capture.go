// Package errorcapture is a fire-and-forget diagnostic side channel. It
// appends JSON lines to a shared log directory and forwards them to an
// external error monitor. It never blocks the request path and never
// surfaces its own failures.
package errorcapture

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/odvcencio/streamstore/pkg/clock"
	apperrors "github.com/odvcencio/streamstore/pkg/errors"
	"github.com/odvcencio/streamstore/pkg/logging"
)

const (
	serviceName    = "event-store"
	monitorTimeout = 5 * time.Second
	logFileName    = "event-store-errors.jsonl"
)

// Capture reports surfaced errors out of band.
type Capture struct {
	logDir     string
	monitorURL string
	client     *http.Client
	clock      clock.Clock
	logger     *logging.Logger

	mu sync.Mutex // serializes file appends

	// wg lets tests wait for in-flight reports.
	wg sync.WaitGroup
}

// Option configures a Capture.
type Option func(*Capture)

// WithClock overrides the wall clock.
func WithClock(c clock.Clock) Option {
	return func(cap *Capture) { cap.clock = c }
}

// WithHTTPClient overrides the monitor client.
func WithHTTPClient(c *http.Client) Option {
	return func(cap *Capture) { cap.client = c }
}

// New creates a capture channel. Empty logDir disables the file sink;
// empty monitorURL disables the monitor sink.
func New(logDir, monitorURL string, logger *logging.Logger, opts ...Option) *Capture {
	c := &Capture{
		logDir:     logDir,
		monitorURL: monitorURL,
		client:     &http.Client{Timeout: monitorTimeout},
		clock:      clock.System{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type record struct {
	Timestamp    string `json:"timestamp"`
	Service      string `json:"service"`
	Context      string `json:"context"`
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`
	Severity     string `json:"severity"`
	Environment  string `json:"environment"`
}

// Report records a surfaced error asynchronously. ctxLabel names the
// operation that produced the error.
func (c *Capture) Report(err error, ctxLabel string) {
	if c == nil || err == nil {
		return
	}

	rec := record{
		Timestamp:    c.clock.Now().Format(time.RFC3339Nano),
		Service:      serviceName,
		Context:      ctxLabel,
		ErrorType:    string(apperrors.KindOf(err)),
		ErrorMessage: err.Error(),
		Severity:     severityOf(err),
		Environment:  environment(),
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.writeLog(rec)
		c.sendToMonitor(rec)
	}()
}

// Flush waits for in-flight reports. Tests only.
func (c *Capture) Flush() {
	c.wg.Wait()
}

func (c *Capture) writeLog(rec record) {
	if c.logDir == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.logDir, 0o755); err != nil {
		c.warn("create error log directory", err)
		return
	}

	f, err := os.OpenFile(filepath.Join(c.logDir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		c.warn("open error log", err)
		return
	}
	defer f.Close()

	data, err := json.Marshal(rec)
	if err != nil {
		c.warn("marshal error record", err)
		return
	}
	data = append(data, '\n')

	if _, err := f.Write(data); err != nil {
		c.warn("write error log", err)
	}
}

func (c *Capture) sendToMonitor(rec record) {
	if c.monitorURL == "" {
		return
	}

	body, err := json.Marshal(rec)
	if err != nil {
		c.warn("marshal monitor payload", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), monitorTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.monitorURL, bytes.NewReader(body))
	if err != nil {
		c.warn("build monitor request", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// Monitoring failure must not surface.
		c.warn("send error to monitor", err)
		return
	}
	resp.Body.Close()
}

func (c *Capture) warn(op string, err error) {
	if c.logger != nil {
		c.logger.Warn("error capture degraded", "op", op, "error", err.Error())
	}
}

func severityOf(err error) string {
	var e *apperrors.Error
	if errors.As(err, &e) {
		return e.Severity()
	}
	return "critical"
}

func environment() string {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	return "development"
}
