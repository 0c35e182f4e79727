// Command streamstore runs the event store: the HTTP surface plus the
// snapshot scheduler and archival sweeper.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/streamstore/pkg/config"
	"github.com/odvcencio/streamstore/pkg/errorcapture"
	"github.com/odvcencio/streamstore/pkg/eventstore"
	"github.com/odvcencio/streamstore/pkg/logging"
	"github.com/odvcencio/streamstore/pkg/server"
	"github.com/odvcencio/streamstore/pkg/storage"
	"github.com/odvcencio/streamstore/pkg/telemetry"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file; environment variables take precedence")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "streamstore: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.NewLogger("main", slog.LevelInfo)
	logger.Info("starting event store",
		"address", cfg.ServerAddress,
		"database", cfg.DatabaseURL,
		"snapshot_interval", cfg.SnapshotInterval().String(),
		"snapshot_threshold", cfg.SnapshotThreshold,
		"archive_interval", cfg.ArchiveInterval().String(),
		"archive_days", cfg.ArchiveDays,
	)

	store, err := storage.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	capture := errorcapture.New(cfg.ErrorLogDir, cfg.ErrorMonitorURL, logger)
	service := eventstore.NewService(store,
		eventstore.WithMetrics(telemetry.NewPrometheusSink()),
		eventstore.WithLogger(logging.NewLogger("eventstore", slog.LevelInfo)),
	)

	srv := server.New(server.Config{
		Address: cfg.ServerAddress,
		Service: service,
		Logger:  logging.NewLogger("server", slog.LevelInfo),
		Capture: capture,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})
	g.Go(func() error {
		return service.RunScheduler(ctx, cfg.SnapshotInterval(), cfg.SnapshotThreshold)
	})
	g.Go(func() error {
		return service.RunArchiver(ctx, cfg.ArchiveInterval(), cfg.ArchiveCutoff())
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("event store stopped")
	return nil
}
