package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hove-io/navitia-sub004/internal/maintenance"
	"github.com/hove-io/navitia-sub004/internal/storage/snapshot"
	"github.com/hove-io/navitia-sub004/internal/telemetry/logger"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// Snapshots is the read side of the snapshot manager.
type Snapshots interface {
	Get() *snapshot.Snapshot
	Loading() bool
	// LastReloadError is the failure of the latest reload, nil after a
	// successful one.
	LastReloadError() error
}

// Reloader accepts reload triggers.
type Reloader interface {
	Trigger(k maintenance.Kind)
}

// Handler serves the admin endpoints.
type Handler struct {
	snaps    Snapshots
	reloader Reloader
	metrics  http.Handler
	logger   logger.Logger
	mux      *http.ServeMux
}

// New creates a Handler. A nil reloader disables POST /admin/reload and a
// nil metrics handler disables GET /metrics.
func New(snaps Snapshots, reloader Reloader, metrics http.Handler, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	h := &Handler{
		snaps:    snaps,
		reloader: reloader,
		metrics:  metrics,
		logger:   log,
		mux:      http.NewServeMux(),
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)
	h.mux.HandleFunc("GET /status", h.handleStatus)
	h.mux.HandleFunc("POST /admin/reload", h.handleReload)
	if h.metrics != nil {
		h.mux.Handle("GET /metrics", h.metrics)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	h.write(w, status, NewResponse(requestID(r), data))
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("X-Error-Code", code)
	h.write(w, status, NewErrorResponse(requestID(r), code, message))
}

func (h *Handler) write(w http.ResponseWriter, status int, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// requestID returns the id set by the RequestID middleware.
func requestID(r *http.Request) string {
	return r.Header.Get(RequestIDHeader)
}
