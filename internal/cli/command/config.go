package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/hove-io/navitia-sub004/internal/cli/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "manage the CLI settings file",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "show the effective settings",
				Action: func(c *cli.Context) error {
					flags := ParseGlobalFlags(c)
					return render(c, map[string]any{
						"file":    c.String("config"),
						"broker":  flags.Broker,
						"admin":   flags.Admin,
						"output":  string(flags.Output),
						"timeout": flags.Timeout.String(),
					})
				},
			},
			{
				Name:  "save",
				Usage: "write the effective settings to the settings file",
				Action: func(c *cli.Context) error {
					flags := ParseGlobalFlags(c)
					path := c.String("config")
					err := config.Save(&config.CLIConfig{
						Broker:  flags.Broker,
						Admin:   flags.Admin,
						Output:  string(flags.Output),
						Timeout: flags.Timeout,
					}, path)
					if err != nil {
						return fmt.Errorf("save %s: %w", path, err)
					}
					fmt.Fprintf(stdout(c), "saved %s\n", path)
					return nil
				},
			},
		},
	}
}
