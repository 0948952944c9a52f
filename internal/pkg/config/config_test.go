package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("dineradar-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Viewport.MinMoveKm != 2 {
		t.Errorf("expected min move 2 km, got %v", cfg.Viewport.MinMoveKm)
	}
	if cfg.Viewport.Debounce() != 500*time.Millisecond {
		t.Errorf("expected 500ms debounce, got %v", cfg.Viewport.Debounce())
	}
	if cfg.Viewport.LookupDebounce() != 600*time.Millisecond {
		t.Errorf("expected 600ms lookup debounce, got %v", cfg.Viewport.LookupDebounce())
	}
	if cfg.Selection.FocusTimeout() != 10*time.Second {
		t.Errorf("expected 10s focus timeout, got %v", cfg.Selection.FocusTimeout())
	}
	if cfg.Ranking.TopK != 3 {
		t.Errorf("expected top_k 3, got %d", cfg.Ranking.TopK)
	}
	if cfg.Telemetry.ServiceName != "dineradar-test" {
		t.Errorf("expected service name from argument, got %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DINERADAR_SERVER_PORT", "9090")
	t.Setenv("DINERADAR_DATABASE_DRIVER", "sqlite")
	t.Setenv("DINERADAR_DATABASE_SQLITE_PATH", "/tmp/catalog.db")

	cfg, err := Load("dineradar-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.SQLitePath != "/tmp/catalog.db" {
		t.Errorf("unexpected database config: %+v", cfg.Database)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Port: 0, ReadTimeout: 10, WriteTimeout: 10},
		Database: DatabaseConfig{Driver: "mysql"},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server.port", "database.driver", "nats.url", "viewport.limit", "ranking.top_k"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %s, got:\n%v", want, err)
		}
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: 5432, DBName: "db", SSLMode: "disable"}
	if got := d.DSN(); got != "postgres://u:p@h:5432/db?sslmode=disable" {
		t.Errorf("unexpected DSN %q", got)
	}
}
