// Package command defines the kraken-cli commands using urfave/cli/v2.
//
//   - root.go: the application, global flags and connection setup
//   - query.go: journeys, isochrone, nearby, metadata and status through
//     the request broker
//   - admin.go: health, readiness, status and reloads through the admin
//     HTTP server
//   - config.go: the local settings file
package command
