// Package main provides the entry point for kraken-cli.
//
// kraken-cli sends journey planner requests to a kraken broker and drives
// its admin HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/hove-io/navitia-sub004/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
