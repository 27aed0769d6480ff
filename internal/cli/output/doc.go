// Package output renders kraken-cli results.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: tables for journeys, isochrones, places and key/value data
//   - json.go, yaml.go: machine-readable output
//   - spinner.go: progress animation while waiting on the server
package output
