package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/dineradar/internal/adapters/catalog"
	natsadapter "github.com/samirrijal/dineradar/internal/adapters/nats"
	"github.com/samirrijal/dineradar/internal/adapters/places"
	"github.com/samirrijal/dineradar/internal/core/ports"
	"github.com/samirrijal/dineradar/internal/core/usecases"
	"github.com/samirrijal/dineradar/internal/pkg/clock"
	"github.com/samirrijal/dineradar/internal/pkg/config"
	"github.com/samirrijal/dineradar/internal/pkg/logging"
	"github.com/samirrijal/dineradar/internal/workflows"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("dineradar-syncer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)
	logger := slog.Default()

	ctx := context.Background()

	store, err := catalog.Open(ctx, cfg.Database, logger)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer store.Close()

	var events ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, sync announcements disabled", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

	search := places.New(places.Config{
		BaseURL:          cfg.Places.BaseURL,
		APIKey:           cfg.Places.APIKey,
		Keyword:          cfg.Places.Keyword,
		RatePerSecond:    cfg.Places.RatePerSecond,
		Burst:            cfg.Places.Burst,
		FailureThreshold: cfg.Places.FailureThreshold,
		Timeout:          time.Duration(cfg.Places.TimeoutSeconds) * time.Second,
	}, logger)

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.CatalogSyncWorkflow)
	w.RegisterActivity(&workflows.CatalogSyncActivities{
		Sync: usecases.NewCatalogSyncService(store, search, events, clock.System{}, logger),
	})

	slog.Info("catalog sync worker started", "task_queue", cfg.Temporal.TaskQueue, "catalog", store.Driver())
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
