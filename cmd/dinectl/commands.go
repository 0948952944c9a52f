package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"github.com/samirrijal/dineradar/internal/adapters/catalog"
	"github.com/samirrijal/dineradar/internal/adapters/csvimport"
	"github.com/samirrijal/dineradar/internal/adapters/geocoder"
	"github.com/samirrijal/dineradar/internal/core/domain"
	"github.com/samirrijal/dineradar/internal/workflows"
)

// =============================================================================
// IMPORT COMMAND
// =============================================================================

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Load restaurants from a CSV export into the catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to the CSV file",
				Required: true,
			},
		},
		Action: runImport,
	}
}

func runImport(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	f, err := os.Open(c.String("file"))
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	store, err := catalog.Open(c.Context, cfg.Database, slog.Default())
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := csvimport.Import(c.Context, f, store, slog.Default())
	if err != nil {
		return err
	}
	fmt.Printf("rows=%d skipped=%d inserted=%d\n", stats.Rows, stats.Skipped, stats.Inserted)
	return nil
}

// =============================================================================
// SYNC COMMAND
// =============================================================================

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Start a catalog sync workflow around a point",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "lat", Usage: "Center latitude", Required: true},
			&cli.Float64Flag{Name: "lng", Usage: "Center longitude", Required: true},
			&cli.Float64Flag{Name: "radius", Value: 5000, Usage: "Search radius in meters"},
			&cli.IntFlag{Name: "limit", Value: 60, Usage: "Maximum live results"},
			&cli.BoolFlag{Name: "wait", Usage: "Block until the workflow completes"},
		},
		Action: runSync,
	}
}

func runSync(c *cli.Context) error {
	center := domain.GeoPoint{Lat: c.Float64("lat"), Lng: c.Float64("lng")}
	if !center.Valid() {
		return domain.ErrInvalidCoordinates
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tc, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(slog.Default()),
	})
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}
	defer tc.Close()

	run, err := tc.ExecuteWorkflow(c.Context, client.StartWorkflowOptions{
		ID:        "catalog-sync-" + uuid.NewString(),
		TaskQueue: cfg.Temporal.TaskQueue,
	}, workflows.CatalogSyncWorkflow, workflows.CatalogSyncInput{
		Center:       center,
		RadiusMeters: c.Float64("radius"),
		Limit:        c.Int("limit"),
	})
	if err != nil {
		return fmt.Errorf("start workflow: %w", err)
	}
	fmt.Printf("workflow=%s run=%s\n", run.GetID(), run.GetRunID())

	if !c.Bool("wait") {
		return nil
	}
	var result workflows.CatalogSyncResult
	if err := run.Get(c.Context, &result); err != nil {
		return fmt.Errorf("workflow failed: %w", err)
	}
	fmt.Printf("found=%d inserted=%d published=%t\n", result.Found, result.Inserted, result.Published)
	return nil
}

// =============================================================================
// GEOCODE COMMAND
// =============================================================================

func geocodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "geocode",
		Usage:     "Resolve a postal code to coordinates",
		ArgsUsage: "<postal_code>",
		Action:    runGeocode,
	}
}

func runGeocode(c *cli.Context) error {
	postal := strings.TrimSpace(c.Args().First())
	if postal == "" {
		return errors.New("postal code argument required")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	geo := geocoder.New(geocoder.Config{
		BaseURL:       cfg.Geocoder.BaseURL,
		UserAgent:     cfg.Geocoder.UserAgent,
		CountryCodes:  cfg.Geocoder.CountryCodes,
		RatePerSecond: cfg.Geocoder.RatePerSecond,
	}, slog.Default())

	ctx, cancel := context.WithTimeout(c.Context, 15*time.Second)
	defer cancel()
	pt, err := geo.Resolve(ctx, postal)
	if err != nil {
		return err
	}
	if pt == nil {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, postal)
	}
	fmt.Printf("%s\t%.6f\t%.6f\n", strings.ToUpper(postal), pt.Lat, pt.Lng)
	return nil
}

// =============================================================================
// NEARBY COMMAND
// =============================================================================

func nearbyCommand() *cli.Command {
	return &cli.Command{
		Name:  "nearby",
		Usage: "List persisted restaurants around a point",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "lat", Required: true},
			&cli.Float64Flag{Name: "lng", Required: true},
			&cli.Float64Flag{Name: "radius", Value: 2000, Usage: "Radius in meters"},
			&cli.IntFlag{Name: "limit", Value: 20},
		},
		Action: runNearby,
	}
}

func runNearby(c *cli.Context) error {
	center := domain.GeoPoint{Lat: c.Float64("lat"), Lng: c.Float64("lng")}
	if !center.Valid() {
		return domain.ErrInvalidCoordinates
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := catalog.Open(c.Context, cfg.Database, slog.Default())
	if err != nil {
		return err
	}
	defer store.Close()

	list, err := store.FindNearby(c.Context, center, c.Float64("radius"), c.Int("limit"))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDISTANCE_KM\tCUISINES")
	for _, r := range list {
		dist := "-"
		if r.DistanceKm != nil {
			dist = fmt.Sprintf("%.2f", *r.DistanceKm)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Name, dist, strings.Join(r.CuisineType, ","))
	}
	return tw.Flush()
}
