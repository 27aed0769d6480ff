package command

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hove-io/navitia-sub004/internal/cli/config"
	"github.com/hove-io/navitia-sub004/internal/cli/connection"
	"github.com/hove-io/navitia-sub004/internal/cli/output"
	"github.com/hove-io/navitia-sub004/internal/infra/buildinfo"
)

const (
	metaConnMgr = "connMgr"
	metaConfig  = "cliConfig"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:     "kraken-cli",
		Usage:    "query and operate a kraken journey planner",
		Version:  buildinfo.String(),
		Flags:    globalFlags(),
		Metadata: map[string]any{},
		Commands: []*cli.Command{
			JourneysCommand(),
			IsochroneCommand(),
			NearbyCommand(),
			MetadataCommand(),
			StatusCommand(),
			AdminCommand(),
			ConfigCommand(),
		},
		Before: before,
		After: func(c *cli.Context) error {
			if mgr := GetConnectionManager(c); mgr != nil {
				return mgr.Close()
			}
			return nil
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "CLI settings file",
			EnvVars: []string{"KRAKEN_CLI_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "broker",
			Aliases: []string{"b"},
			Usage:   "request broker address (host:port)",
			EnvVars: []string{"KRAKEN_BROKER"},
		},
		&cli.StringFlag{
			Name:    "admin",
			Aliases: []string{"a"},
			Usage:   "admin HTTP server URL",
			EnvVars: []string{"KRAKEN_ADMIN"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "show more columns",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "per request timeout",
		},
	}
}

// before merges the settings file under the flags and opens the
// connection manager.
func before(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("broker") {
		cfg.Broker = c.String("broker")
	}
	if c.IsSet("admin") {
		cfg.Admin = c.String("admin")
	}
	if c.IsSet("output") {
		cfg.Output = c.String("output")
	}
	if c.IsSet("timeout") {
		cfg.Timeout = c.Duration("timeout")
	}
	if _, err := output.ParseFormat(cfg.Output); err != nil {
		return err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.Default().Timeout
	}

	c.App.Metadata[metaConfig] = cfg
	c.App.Metadata[metaConnMgr] = connection.NewManager(cfg.Broker, cfg.Admin, cfg.Timeout)
	return nil
}

// GlobalFlags are the effective global settings.
type GlobalFlags struct {
	Broker  string
	Admin   string
	Output  output.Format
	Wide    bool
	Timeout time.Duration
}

// ParseGlobalFlags returns the settings computed by the app's Before hook.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	cfg, ok := c.App.Metadata[metaConfig].(*config.CLIConfig)
	if !ok {
		cfg = config.Default()
	}
	return &GlobalFlags{
		Broker:  cfg.Broker,
		Admin:   cfg.Admin,
		Output:  output.Format(cfg.Output),
		Wide:    c.Bool("wide"),
		Timeout: cfg.Timeout,
	}
}

// GetConnectionManager retrieves the connection manager from context.
func GetConnectionManager(c *cli.Context) *connection.Manager {
	if mgr, ok := c.App.Metadata[metaConnMgr].(*connection.Manager); ok {
		return mgr
	}
	return nil
}

// render writes data in the selected output format.
func render(c *cli.Context, data any) error {
	flags := ParseGlobalFlags(c)
	return output.NewFormatter(flags.Output, flags.Wide).Format(stdout(c), data)
}

func stdout(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

func stderr(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
