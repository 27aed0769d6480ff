// Package connection manages kraken-cli's links to a kraken server: the
// request broker for queries and the admin HTTP server for operations.
package connection
