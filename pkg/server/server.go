// Package server exposes the event store over HTTP/JSON.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odvcencio/streamstore/pkg/errorcapture"
	"github.com/odvcencio/streamstore/pkg/eventstore"
	"github.com/odvcencio/streamstore/pkg/logging"
)

// Server is the HTTP surface over the event store service.
type Server struct {
	service *eventstore.Service
	logger  *logging.Logger
	capture *errorcapture.Capture
	started time.Time

	httpServer *http.Server
}

// Config configures the HTTP server.
type Config struct {
	// Address to listen on (default: 0.0.0.0:8080)
	Address string

	// Service handles every event store operation.
	Service *eventstore.Service

	// Logger for request logging; a default is created when nil.
	Logger *logging.Logger

	// Capture is the optional error side channel.
	Capture *errorcapture.Capture
}

// New creates the HTTP server and wires its routes.
func New(cfg Config) *Server {
	if cfg.Address == "" {
		cfg.Address = "0.0.0.0:8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("server", slog.LevelInfo)
	}

	s := &Server{
		service: cfg.Service,
		logger:  cfg.Logger,
		capture: cfg.Capture,
		started: time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Router builds the route table. Exposed so tests can drive the full
// middleware stack through httptest.
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(s.withCORS)
	router.Use(s.withLogging)

	router.Get("/health", s.handleHealth)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	router.Post("/events", s.handleAppendEvent)
	router.Get("/streams/{streamID}/events", s.handleReadStream)
	router.Post("/snapshots", s.handleCreateSnapshot)
	router.Get("/snapshots/{streamID}/latest", s.handleLatestSnapshot)
	router.Get("/stats", s.handleStats)

	return router
}

// Start serves until the context is cancelled, then drains connections.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "address", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
