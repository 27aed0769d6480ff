// Package handler implements the kraken admin HTTP endpoints.
//
//   - health.go: liveness and readiness
//   - admin.go: snapshot status and reload triggers
//
// Every JSON response uses the Response envelope of types.go.
package handler
