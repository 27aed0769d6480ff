package handler

import (
	"net/http"
	"time"

	"github.com/hove-io/navitia-sub004/internal/core/domain"
	"github.com/hove-io/navitia-sub004/internal/infra/buildinfo"
	"github.com/hove-io/navitia-sub004/internal/maintenance"
)

// handleStatus handles GET /status.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := h.snaps.Get()
	pub := domain.PublicationDateUnknown
	if snap.Loaded {
		pub = snap.PublicationDate.UTC().Format(time.RFC3339)
	}
	data := StatusData{
		Status: domain.Status{
			SnapshotID:        snap.ID,
			Loaded:            snap.Loaded,
			Loading:           h.snaps.Loading(),
			RealtimeConnected: snap.RealtimeConnected(),
			PublicationDate:   pub,
			Version:           buildinfo.Version,
		},
		Contributors: snap.Contributors,
	}
	if err := h.snaps.LastReloadError(); err != nil {
		data.LastReloadError = err.Error()
	}
	if snap.Data != nil {
		data.StopPoints = len(snap.Data.StopPoints)
		data.VehicleJourneys = len(snap.Data.VehicleJourneys)
	}
	h.writeJSON(w, r, http.StatusOK, data)
}

// handleReload handles POST /admin/reload?kind=base|realtime. The reload
// runs in the background; the call only queues it.
func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	if h.reloader == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "reloads are disabled")
		return
	}
	kind := maintenance.KindBase
	if s := r.URL.Query().Get("kind"); s != "" {
		k, err := maintenance.ParseKind(s)
		if err != nil {
			h.writeError(w, r, http.StatusBadRequest, CodeBadRequest, err.Error())
			return
		}
		kind = k
	}
	h.reloader.Trigger(kind)
	h.logger.Info("reload requested", "kind", kind.String(), "request_id", requestID(r))
	h.writeJSON(w, r, http.StatusAccepted, ReloadData{Kind: kind.String()})
}
