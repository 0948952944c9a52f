package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/samirrijal/dineradar/internal/adapters/catalog"
	"github.com/samirrijal/dineradar/internal/adapters/geocoder"
	"github.com/samirrijal/dineradar/internal/adapters/http"
	natsadapter "github.com/samirrijal/dineradar/internal/adapters/nats"
	"github.com/samirrijal/dineradar/internal/adapters/places"
	"github.com/samirrijal/dineradar/internal/adapters/valkey"
	"github.com/samirrijal/dineradar/internal/core/ports"
	"github.com/samirrijal/dineradar/internal/core/usecases"
	"github.com/samirrijal/dineradar/internal/pkg/clock"
	"github.com/samirrijal/dineradar/internal/pkg/config"
	"github.com/samirrijal/dineradar/internal/pkg/logging"
	"github.com/samirrijal/dineradar/internal/pkg/telemetry"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("dineradar-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)
	logger := slog.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Catalog
	store, err := catalog.Open(ctx, cfg.Database, logger)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer store.Close()
	go store.ReportPoolMetrics(ctx, 15*time.Second)

	deps := &http.Dependencies{DB: store, Log: logger}

	// Cache
	var cache ports.CacheService
	vc, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, serving uncached", "error", err)
	} else {
		defer vc.Close()
		cache = vc
		deps.Cache = vc
	}

	// NATS
	var events ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, events disabled", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

	// Raw NATS connection for the WebSocket catalog-refresh relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
		deps.NATS = natsConn
	}

	// Catalog sync announcements invalidate cached nearby answers
	host, _ := os.Hostname()
	durable := "api-" + strings.NewReplacer(".", "-", "*", "-", ">", "-").Replace(host)
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, durable)
	if err != nil {
		slog.Warn("nats subscriber unavailable, cache invalidation disabled", "error", err)
	} else {
		defer sub.Close()
	}

	// Upstream clients
	search := places.New(places.Config{
		BaseURL:          cfg.Places.BaseURL,
		APIKey:           cfg.Places.APIKey,
		Keyword:          cfg.Places.Keyword,
		RatePerSecond:    cfg.Places.RatePerSecond,
		Burst:            cfg.Places.Burst,
		FailureThreshold: cfg.Places.FailureThreshold,
		Timeout:          time.Duration(cfg.Places.TimeoutSeconds) * time.Second,
	}, logger)
	geo := geocoder.New(geocoder.Config{
		BaseURL:       cfg.Geocoder.BaseURL,
		UserAgent:     cfg.Geocoder.UserAgent,
		CountryCodes:  cfg.Geocoder.CountryCodes,
		RatePerSecond: cfg.Geocoder.RatePerSecond,
	}, logger)
	deps.Breakers = map[string]http.BreakerReporter{"places": search, "geocoder": geo}

	// Use cases
	deps.Restaurants = usecases.NewRestaurantService(store, search, geo, cache, logger).
		WithRanking(cfg.Ranking.TopK, cfg.Ranking.BlendCap)

	if sub != nil {
		if err := sub.SubscribeCatalogSynced(ctx, deps.Restaurants.HandleCatalogSynced); err != nil {
			slog.Warn("catalog synced subscription failed", "error", err)
		}
	}

	deps.MapSession = usecases.MapSessionDeps{
		Catalog:  store,
		Search:   search,
		Geocoder: geo,
		Events:   events,
		Clock:    clock.System{},
	}
	mapOpts := usecases.DefaultMapSessionOptions()
	mapOpts.Viewport.MinMoveKm = cfg.Viewport.MinMoveKm
	mapOpts.Viewport.Debounce = cfg.Viewport.Debounce()
	mapOpts.Viewport.LookupDebounce = cfg.Viewport.LookupDebounce()
	mapOpts.Viewport.RadiusMeters = cfg.Viewport.RadiusMeters
	mapOpts.Viewport.Limit = cfg.Viewport.Limit
	mapOpts.FocusTimeout = cfg.Selection.FocusTimeout()
	deps.MapOptions = mapOpts

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "DineRadar API",
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, If-None-Match, X-Request-ID",
		ExposeHeaders:    "ETag, Link, X-Request-ID, Deprecation, Sunset",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "catalog", store.Driver())
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
