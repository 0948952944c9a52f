package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Places    PlacesConfig    `mapstructure:"places"`
	Geocoder  GeocoderConfig  `mapstructure:"geocoder"`
	Viewport  ViewportConfig  `mapstructure:"viewport"`
	Ranking   RankingConfig   `mapstructure:"ranking"`
	Selection SelectionConfig `mapstructure:"selection"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Driver     string `mapstructure:"driver"` // postgres | sqlite
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	DBName     string `mapstructure:"dbname"`
	SSLMode    string `mapstructure:"sslmode"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// PlacesConfig configures the live place-search client.
type PlacesConfig struct {
	BaseURL          string  `mapstructure:"base_url"`
	APIKey           string  `mapstructure:"api_key"`
	Keyword          string  `mapstructure:"keyword"`
	RatePerSecond    float64 `mapstructure:"rate_per_second"`
	Burst            int     `mapstructure:"burst"`
	FailureThreshold uint32  `mapstructure:"failure_threshold"`
	TimeoutSeconds   int     `mapstructure:"timeout_seconds"`
}

// GeocoderConfig configures the postal-code geocoder.
type GeocoderConfig struct {
	BaseURL       string  `mapstructure:"base_url"`
	UserAgent     string  `mapstructure:"user_agent"`
	CountryCodes  string  `mapstructure:"country_codes"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
}

// ViewportConfig tunes the viewport fetch controller.
type ViewportConfig struct {
	MinMoveKm        float64 `mapstructure:"min_move_km"`
	DebounceMS       int     `mapstructure:"debounce_ms"`
	LookupDebounceMS int     `mapstructure:"lookup_debounce_ms"`
	RadiusMeters     float64 `mapstructure:"radius_meters"`
	Limit            int     `mapstructure:"limit"`
}

func (v ViewportConfig) Debounce() time.Duration {
	return time.Duration(v.DebounceMS) * time.Millisecond
}

func (v ViewportConfig) LookupDebounce() time.Duration {
	return time.Duration(v.LookupDebounceMS) * time.Millisecond
}

type RankingConfig struct {
	TopK     int `mapstructure:"top_k"`
	BlendCap int `mapstructure:"blend_cap"`
}

type SelectionConfig struct {
	FocusTimeoutSeconds int `mapstructure:"focus_timeout_seconds"`
}

func (s SelectionConfig) FocusTimeout() time.Duration {
	return time.Duration(s.FocusTimeoutSeconds) * time.Second
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "dineradar")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "dineradar")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.sqlite_path", "dineradar.db")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("places.base_url", "https://maps.googleapis.com/maps/api/place")
	v.SetDefault("places.keyword", "restaurant")
	v.SetDefault("places.rate_per_second", 5.0)
	v.SetDefault("places.burst", 5)
	v.SetDefault("places.failure_threshold", 5)
	v.SetDefault("places.timeout_seconds", 10)
	v.SetDefault("geocoder.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.user_agent", "dineradar/1.0 (restaurant recommendations)")
	v.SetDefault("geocoder.country_codes", "us")
	v.SetDefault("geocoder.rate_per_second", 1.0)
	v.SetDefault("viewport.min_move_km", 2.0)
	v.SetDefault("viewport.debounce_ms", 500)
	v.SetDefault("viewport.lookup_debounce_ms", 600)
	v.SetDefault("viewport.radius_meters", 10000.0)
	v.SetDefault("viewport.limit", 50)
	v.SetDefault("ranking.top_k", 3)
	v.SetDefault("ranking.blend_cap", 12)
	v.SetDefault("selection.focus_timeout_seconds", 10)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "catalog-sync")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: DINERADAR_DATABASE_HOST → database.host
	v.SetEnvPrefix("DINERADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			errs = append(errs, "database.sqlite_path is required for the sqlite driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be postgres or sqlite, got %q", c.Database.Driver))
	}

	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Places.BaseURL == "" {
		errs = append(errs, "places.base_url is required")
	}
	if c.Places.RatePerSecond <= 0 {
		errs = append(errs, "places.rate_per_second must be positive")
	}
	if c.Geocoder.BaseURL == "" {
		errs = append(errs, "geocoder.base_url is required")
	}
	if c.Viewport.MinMoveKm < 0 {
		errs = append(errs, "viewport.min_move_km must not be negative")
	}
	if c.Viewport.DebounceMS <= 0 || c.Viewport.LookupDebounceMS <= 0 {
		errs = append(errs, "viewport debounce intervals must be positive")
	}
	if c.Viewport.RadiusMeters <= 0 || c.Viewport.RadiusMeters > 50000 {
		errs = append(errs, fmt.Sprintf("viewport.radius_meters must be 1-50000, got %.0f", c.Viewport.RadiusMeters))
	}
	if c.Viewport.Limit < 1 || c.Viewport.Limit > 60 {
		errs = append(errs, fmt.Sprintf("viewport.limit must be 1-60, got %d", c.Viewport.Limit))
	}
	if c.Ranking.TopK <= 0 {
		errs = append(errs, "ranking.top_k must be positive")
	}
	if c.Ranking.BlendCap <= 0 {
		errs = append(errs, "ranking.blend_cap must be positive")
	}
	if c.Selection.FocusTimeoutSeconds <= 0 {
		errs = append(errs, "selection.focus_timeout_seconds must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
