// Package httpserver provides the kraken admin HTTP server.
//
// Endpoints:
//
//   - GET /health: liveness
//   - GET /ready: 503 until data is loaded
//   - GET /status: published snapshot summary
//   - GET /metrics: Prometheus metrics
//   - POST /admin/reload?kind=base|realtime: queue a reload
//
// Middleware chain: Recover, RequestID, AccessLog, and RateLimit on the
// admin routes.
package httpserver
