// Package main provides the entry point for kraken.
//
// kraken is the query-serving core of the journey planner. It loads a
// timetable snapshot, answers journeys, isochrone and places-nearby
// requests through a broker and a pool of workers, and keeps the snapshot
// fresh in the background.
package main

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/hove-io/navitia-sub004/internal/infra/buildinfo"
	"github.com/hove-io/navitia-sub004/internal/infra/confloader"
	"github.com/hove-io/navitia-sub004/internal/server/config"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := app().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func app() *cli.App {
	return &cli.App{
		Name:    "kraken",
		Usage:   "Journey planner query server",
		Version: buildinfo.Version,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Load the data and serve requests",
				Flags:  configFlags(),
				Action: serve,
			},
			{
				Name:  "check-config",
				Usage: "Validate the configuration and print it",
				Flags: append(configFlags(), &cli.BoolFlag{
					Name:  "origins",
					Usage: "Print the source of every value set outside the defaults",
				}),
				Action: checkConfig,
			},
			{
				Name:  "version",
				Usage: "Show version information",
				Action: func(c *cli.Context) error {
					fmt.Fprintf(c.App.Writer, "kraken %s\n", buildinfo.String())
					return nil
				},
			},
		},
	}
}

// overrideFlags maps command line flags to configuration keys.
var overrideFlags = map[string]string{
	"broker-address": "broker.address",
	"workers":        "broker.workers",
	"base-path":      "data.base_path",
	"admin-address":  "admin.address",
	"log-level":      "log.level",
}

func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			EnvVars: []string{"KRAKEN_CONFIG"},
		},
		&cli.StringFlag{Name: "broker-address", Usage: "Broker listen address"},
		&cli.IntFlag{Name: "workers", Usage: "Number of workers"},
		&cli.StringFlag{Name: "base-path", Usage: "Path of the base extract"},
		&cli.StringFlag{Name: "admin-address", Usage: "Admin HTTP listen address"},
		&cli.StringFlag{Name: "log-level", Usage: "Log level (debug, info, warn, error)"},
	}
}

// loadConfig loads defaults, then the file, the environment and the
// command line flags, and validates the result.
func loadConfig(c *cli.Context) (*config.ServerConfig, *confloader.Loader, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if path := c.String("config"); path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}
	overrides := make(map[string]any)
	for flag, key := range overrideFlags {
		if c.IsSet(flag) {
			overrides[key] = c.Value(flag)
		}
	}
	if len(overrides) > 0 {
		opts = append(opts, confloader.WithOverrides(overrides))
	}

	l := confloader.NewLoader(opts...)
	if err := l.Load(cfg); err != nil {
		return nil, nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, l, nil
}

func checkConfig(c *cli.Context) error {
	cfg, l, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.Bool("origins") {
		origins := l.Origins()
		keys := slices.Sorted(maps.Keys(origins))
		for _, key := range keys {
			fmt.Fprintf(c.App.Writer, "%s\t%s\n", key, origins[key])
		}
		return nil
	}
	enc := yaml.NewEncoder(c.App.Writer)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(config.Sanitize(cfg))
}
