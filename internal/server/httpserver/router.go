package httpserver

import (
	"net/http"

	"github.com/hove-io/navitia-sub004/internal/server/httpserver/handler"
	"github.com/hove-io/navitia-sub004/internal/telemetry/logger"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	Snapshots handler.Snapshots

	// Reloader receives POST /admin/reload; nil disables it.
	Reloader handler.Reloader

	// Metrics serves GET /metrics; nil disables it.
	Metrics http.Handler

	Logger logger.Logger

	// AdminRateLimit is the per-client limit on /admin routes, in requests
	// per second. Zero disables it.
	AdminRateLimit float64
}

// NewRouter builds the admin routes and their middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	log = log.With("component", "admin")
	h := handler.New(cfg.Snapshots, cfg.Reloader, cfg.Metrics, log)

	base := []Middleware{Recover(log), RequestID(), AccessLog(log)}
	admin := base
	if cfg.AdminRateLimit > 0 {
		admin = append(append([]Middleware(nil), base...), RateLimit(cfg.AdminRateLimit, 1))
	}

	mux := http.NewServeMux()
	mux.Handle("GET /health", Chain(h, base...))
	mux.Handle("GET /ready", Chain(h, base...))
	mux.Handle("GET /status", Chain(h, base...))
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(h, base...))
	}
	mux.Handle("POST /admin/reload", Chain(h, admin...))
	return mux
}

// DefaultRouterConfig returns the default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		AdminRateLimit: 1,
	}
}
