package handler

import (
	"net/http"

	"github.com/hove-io/navitia-sub004/internal/infra/buildinfo"
)

// handleHealth handles GET /health. The process is alive as long as it
// answers; the data state is reported by /ready.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, HealthData{Status: "alive", Version: buildinfo.Version})
}

// handleReady handles GET /ready. It fails until a snapshot with data is
// published, and reports that snapshot once it is.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	snap := h.snaps.Get()
	if !snap.Loaded {
		msg := "no snapshot loaded"
		if h.snaps.Loading() {
			msg = "first snapshot is loading"
		}
		h.writeError(w, r, http.StatusServiceUnavailable, CodeNotReady, msg)
		return
	}
	h.writeJSON(w, r, http.StatusOK, ReadyData{SnapshotID: snap.ID, Loading: h.snaps.Loading()})
}
