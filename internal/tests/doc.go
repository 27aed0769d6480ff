// Package tests holds end-to-end tests running the whole kraken server in
// process: GTFS loading, snapshot manager, broker and workers, maintenance
// loop and admin HTTP server, driven through pkg/client.
package tests
