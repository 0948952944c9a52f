package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/samirrijal/dineradar/internal/adapters/sqlite"
	"github.com/samirrijal/dineradar/internal/pkg/config"
	"github.com/samirrijal/dineradar/internal/pkg/logging"
)

const migrationsDir = "migrations"

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down>")
	}
	_ = godotenv.Load()

	cfg, err := config.Load("dineradar-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, "text")

	// SQLite creates its schema on open.
	if cfg.Database.Driver == "sqlite" {
		repo, err := sqlite.Open(cfg.Database.SQLitePath, slog.Default())
		if err != nil {
			log.Fatalf("sqlite: %v", err)
		}
		_ = repo.Close()
		slog.Info("sqlite schema ensured", "path", cfg.Database.SQLitePath)
		return
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	files, err := migrationFiles(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}
	if err := runMigrations(ctx, pool, files); err != nil {
		log.Fatal(err)
	}
	slog.Info("all migrations applied", "direction", os.Args[1], "count", len(files))
}

// migrationFiles lists the files for a direction: NNN_name.sql ascending for
// up, NNN_name.down.sql descending for down.
func migrationFiles(direction string) ([]string, error) {
	all, err := filepath.Glob(filepath.Join(migrationsDir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(all)

	var files []string
	switch direction {
	case "up":
		for _, f := range all {
			if !strings.HasSuffix(f, ".down.sql") {
				files = append(files, f)
			}
		}
	case "down":
		for i := len(all) - 1; i >= 0; i-- {
			if strings.HasSuffix(all[i], ".down.sql") {
				files = append(files, all[i])
			}
		}
	default:
		return nil, fmt.Errorf("unknown command: %s", direction)
	}
	return files, nil
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool, files []string) error {
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("exec %s: %w", f, err)
		}
		fmt.Printf("OK  %s\n", f)
	}
	return nil
}
