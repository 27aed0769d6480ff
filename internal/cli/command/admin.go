package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hove-io/navitia-sub004/internal/cli/connection"
	"github.com/hove-io/navitia-sub004/internal/cli/output"
)

// reloadPollInterval is how often reload --wait polls the status.
var reloadPollInterval = 500 * time.Millisecond

// AdminCommand returns the admin subcommand group.
func AdminCommand() *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "operate the server through its admin HTTP endpoint",
		Subcommands: []*cli.Command{
			{
				Name:   "health",
				Usage:  "check that the server answers",
				Action: adminGet("/health"),
			},
			{
				Name:   "ready",
				Usage:  "check that data is loaded",
				Action: adminGet("/ready"),
			},
			{
				Name:   "status",
				Usage:  "show the published snapshot",
				Action: adminGet("/status"),
			},
			{
				Name:  "reload",
				Usage: "queue a data reload",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "kind",
						Usage: "base or realtime",
						Value: "base",
					},
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "wait until a new snapshot is published",
					},
				},
				Action: adminReload,
			},
		},
	}
}

func adminGet(path string) cli.ActionFunc {
	return func(c *cli.Context) error {
		flags := ParseGlobalFlags(c)
		ctx, cancel := context.WithTimeout(c.Context, flags.Timeout)
		defer cancel()

		result, err := getJSON(ctx, GetConnectionManager(c).Admin(), path)
		if err != nil {
			return err
		}
		return render(c, result)
	}
}

func getJSON(ctx context.Context, admin *connection.HTTPClient, path string) (map[string]any, error) {
	resp, err := admin.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	var result map[string]any
	if err := connection.ParseResponse(resp, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func adminReload(c *cli.Context) error {
	flags := ParseGlobalFlags(c)
	admin := GetConnectionManager(c).Admin()

	ctx, cancel := context.WithTimeout(c.Context, flags.Timeout)
	defer cancel()

	var before float64
	if c.Bool("wait") {
		status, err := getJSON(ctx, admin, "/status")
		if err != nil {
			return err
		}
		before, _ = status["snapshot_id"].(float64)
	}

	resp, err := admin.Post(ctx, "/admin/reload?kind="+c.String("kind"))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	var queued map[string]any
	if err := connection.ParseResponse(resp, &queued); err != nil {
		return err
	}
	if !c.Bool("wait") {
		return render(c, queued)
	}

	spinner := output.NewSpinner(stderr(c), fmt.Sprintf("waiting for %s reload", c.String("kind")))
	spinner.Start()
	status, err := waitForSnapshot(ctx, admin, before, spinner)
	if err != nil {
		spinner.Fail("reload not observed")
		return err
	}
	id, _ := status["snapshot_id"].(float64)
	spinner.Success(fmt.Sprintf("snapshot %d published", int64(id)))
	return render(c, status)
}

// waitForSnapshot polls the status until a snapshot newer than before is
// published and no load is running.
func waitForSnapshot(ctx context.Context, admin *connection.HTTPClient, before float64, spinner *output.Spinner) (map[string]any, error) {
	t := time.NewTicker(reloadPollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
		status, err := getJSON(ctx, admin, "/status")
		if err != nil {
			return nil, err
		}
		id, _ := status["snapshot_id"].(float64)
		loading, _ := status["loading"].(bool)
		if id > before && !loading {
			return status, nil
		}
		if loading {
			spinner.SetMessage(fmt.Sprintf("loading a snapshot newer than %d", int64(before)))
		}
	}
}
