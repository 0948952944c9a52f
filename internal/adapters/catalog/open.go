// Package catalog selects the persisted restaurant catalog backend from
// configuration.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/dineradar/internal/adapters/postgres"
	"github.com/samirrijal/dineradar/internal/adapters/sqlite"
	"github.com/samirrijal/dineradar/internal/core/ports"
	"github.com/samirrijal/dineradar/internal/pkg/config"
)

// Store is an open catalog backend.
type Store struct {
	ports.PersistedCatalog

	driver string
	pg     *postgres.DB
	lite   *sqlite.RestaurantRepo
}

// Open connects to the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*Store, error) {
	switch cfg.Driver {
	case "sqlite":
		repo, err := sqlite.Open(cfg.SQLitePath, log)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		return &Store{PersistedCatalog: repo, driver: cfg.Driver, lite: repo}, nil
	case "postgres", "":
		db, err := postgres.New(ctx, cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return &Store{PersistedCatalog: postgres.NewRestaurantRepo(db, log), driver: "postgres", pg: db}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// Driver reports the backend in use.
func (s *Store) Driver() string { return s.driver }

// Ping checks connectivity for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	if s.pg != nil {
		return s.pg.Ping(ctx)
	}
	return s.lite.Ping(ctx)
}

// ReportPoolMetrics publishes connection pool gauges until ctx is done.
// SQLite has no pool to report and returns immediately.
func (s *Store) ReportPoolMetrics(ctx context.Context, interval time.Duration) {
	if s.pg != nil {
		s.pg.ReportPoolMetrics(ctx, interval)
	}
}

// Close releases the backend.
func (s *Store) Close() {
	if s.pg != nil {
		s.pg.Close()
		return
	}
	_ = s.lite.Close()
}
