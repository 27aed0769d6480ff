package handler

import (
	"time"

	"github.com/hove-io/navitia-sub004/internal/core/domain"
)

// Response is the JSON envelope of every admin endpoint except /metrics.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// Response codes.
const (
	CodeOK           = "OK"
	CodeNotReady     = "NOT_READY"
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnavailable  = "UNAVAILABLE"
	CodeInternal     = "INTERNAL"
	CodeTooManyCalls = "TOO_MANY_REQUESTS"
)

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      CodeOK,
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
	}
}

// HealthData is the payload of GET /health.
type HealthData struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyData is the payload of GET /ready.
type ReadyData struct {
	SnapshotID uint64 `json:"snapshot_id"`
	// Loading is set while a newer snapshot is being built.
	Loading bool `json:"loading"`
}

// StatusData is the payload of GET /status.
type StatusData struct {
	domain.Status
	StopPoints      int      `json:"stop_points"`
	VehicleJourneys int      `json:"vehicle_journeys"`
	Contributors    []string `json:"contributors,omitempty"`
	LastReloadError string   `json:"last_reload_error,omitempty"`
}

// ReloadData is the payload of POST /admin/reload.
type ReloadData struct {
	Kind string `json:"kind"`
}
