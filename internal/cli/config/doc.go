// Package config holds the kraken-cli settings file (~/.kraken/cli.yaml).
//
// Values in the file are defaults; KRAKEN_* environment variables and
// command line flags override them.
package config
