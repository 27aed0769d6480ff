// Package buildinfo exposes the build metadata of the kraken binaries.
//
// Version is reported by the status API of the server and by the
// version commands of kraken and kraken-cli.
package buildinfo
