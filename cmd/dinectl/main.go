// dinectl is the DineRadar operator CLI.
//
// Usage:
//
//	dinectl import --file restaurants.csv
//	dinectl sync --lat 40.7506 --lng -73.9972 [--radius 5000] [--wait]
//	dinectl geocode 10001
//	dinectl nearby --lat 40.7506 --lng -73.9972 [--radius 2000]
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/samirrijal/dineradar/internal/pkg/config"
	"github.com/samirrijal/dineradar/internal/pkg/logging"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:    "dinectl",
		Usage:   "Operate the DineRadar restaurant catalog",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"DINERADAR_LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			slog.SetDefault(logging.New(os.Stderr, "dinectl", c.String("log-level"), "text"))
			return nil
		},
		Commands: []*cli.Command{
			importCommand(),
			syncCommand(),
			geocodeCommand(),
			nearbyCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load("dinectl")
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
