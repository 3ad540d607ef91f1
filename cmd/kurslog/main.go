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

	corecfg "github.com/kurslog-lab/project-kurslog/internal/core/config"
	"github.com/kurslog-lab/project-kurslog/internal/core/storage/postgres"
	"github.com/kurslog-lab/project-kurslog/internal/ingestion"
	"github.com/kurslog-lab/project-kurslog/internal/migrations"
	"github.com/kurslog-lab/project-kurslog/internal/projection"
	"github.com/kurslog-lab/project-kurslog/internal/server"
)

func main() {
	configPath := flag.String("config", "kurslog.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "config", cfg)

	// 2. Initialize Storage (PostgreSQL)
	eventStore, err := postgres.NewEventsAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer eventStore.Close()

	// 2.1. Run Database Migrations
	if err := migrations.RunMigrations(eventStore.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	// Projection shares the event store's connection pool.
	projectionStore := postgres.NewProjectionAdapter(eventStore.DB())

	// 3. Initialize Ingestion
	gate := ingestion.NewGate(eventStore, projectionStore)
	ingestionSvc := ingestion.NewService(gate, eventStore, cfg.Server.MaxBodySizeMB)

	// 4. Initialize Projection (query + rebuild API)
	projectionSvc := projection.NewService(projectionStore)

	// 5. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), eventStore.DB(), cfg.Server.Mode)
	ingestionSvc.RegisterRoutes(srv.Engine)
	projectionSvc.RegisterRoutes(srv.Engine)

	// 6. Run until a signal arrives.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		select {
		case <-quit:
			slog.Info("Signal received, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		return nil
	})

	g.Go(func() error {
		return srv.Run(ctx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
